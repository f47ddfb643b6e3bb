package metacmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	notesql "github.com/shibukawa/notesql"
)

// HelpCommand documents the other commands. It keeps itself out of the full
// listing but answers a direct `\help \help`.
type HelpCommand struct {
	registry *Registry
}

func (*HelpCommand) Invokers() []string { return []string{`\help`} }

func (*HelpCommand) Description() string { return "Help" }

func (*HelpCommand) AcceptsArgs() bool { return true }

func (*HelpCommand) IncludeInHelp() bool { return false }

func (h *HelpCommand) Run(ctx context.Context, inv *Invocation) (*notesql.Table, bool, error) {
	var commands []Command

	switch {
	case len(inv.Args) == 0:
		for _, cmd := range h.registry.Commands() {
			if cmd.IncludeInHelp() {
				commands = append(commands, cmd)
			}
		}

		sort.SliceStable(commands, func(i, j int) bool {
			return commands[i].Description() < commands[j].Description()
		})
	case len(inv.Args) > 1:
		return nil, false, usagef(`Usage: \help [command]`)
	default:
		cmd, ok := h.registry.Lookup(inv.Args[0])
		if !ok {
			return nil, false, usagef("Unknown command %q", inv.Args[0])
		}

		commands = []Command{cmd}
	}

	table := notesql.NewTable("Command", "Description", "Documentation")

	for _, cmd := range commands {
		table.AppendRow(strings.Join(cmd.Invokers(), ", "), cmd.Description(), documentation(cmd))
	}

	fmt.Fprintln(inv.Out, "SQL Introspection Commands")

	if err := table.Render(inv.Out); err != nil {
		return nil, false, err
	}

	return table, true, nil
}
