package metacmd

import (
	"embed"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

//go:embed docs/*.md
var docFiles embed.FS

// documentation returns the long-form help text for a command, taken from
// the markdown file named after its canonical invoker. Commands without a
// doc file fall back to their one-line description.
func documentation(cmd Command) string {
	name := strings.TrimPrefix(cmd.Invokers()[0], `\`)

	src, err := docFiles.ReadFile("docs/" + name + ".md")
	if err != nil {
		return cmd.Description()
	}

	return renderDocText(src)
}

// renderDocText flattens a markdown document to one line of plain text.
// Inline code spans keep their content, block boundaries become single
// spaces.
func renderDocText(src []byte) string {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
	)

	doc := md.Parser().Parse(text.NewReader(src))

	var blocks []string

	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			blocks = append(blocks, s)
		}

		current.Reset()
	}

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Paragraph, *ast.Heading:
			if !entering {
				flush()
			}
		case *ast.Text:
			if entering {
				segment := node.Segment
				current.Write(src[segment.Start:segment.Stop])

				if node.SoftLineBreak() {
					current.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				current.Write(node.Value)
			}
		}

		return ast.WalkContinue, nil
	})

	flush()

	return strings.Join(blocks, " ")
}
