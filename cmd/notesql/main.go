package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// CLI represents the command-line interface
var CLI struct {
	Config  string `help:"Configuration file path" default:"notesql.yaml"`
	Verbose bool   `help:"Enable verbose output" short:"v"`
	Quiet   bool   `help:"Suppress output" short:"q"`

	Cell        CellCmd        `cmd:"" help:"Run one SQL cell against a datasource"`
	Datasources DatasourcesCmd `cmd:"" help:"List datasources and their bootstrap state"`
	Schema      SchemaCmd      `cmd:"" help:"Export the structure of a datasource"`
	Sync        SyncCmd        `cmd:"" help:"Exchange workspace files with the sync sidecar"`
	Version     VersionCmd     `cmd:"" help:"Show version information"`
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run() error {
	fmt.Println("notesql v0.1.0")
	return nil
}

func main() {
	_ = godotenv.Load()

	parsed := kong.Parse(&CLI)

	appCtx, err := newContext(CLI.Config, CLI.Verbose, CLI.Quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer appCtx.Close()

	err = parsed.Run(appCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
