// Command pf-mines runs the provably fair Mines service and its offline tools.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/MJE43/pf-mines/internal/api"
	"github.com/MJE43/pf-mines/internal/config"
)

type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Run the HTTP and websocket service"`
	Verify  VerifyCmd  `cmd:"" help:"Re-derive a board from disclosed seeds"`
	Hash    HashCmd    `cmd:"" help:"Print the commitment hash of a server seed"`
	Scan    ScanCmd    `cmd:"" help:"Scan a nonce range for boards matching a target"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

func main() {
	// .env has to be in the environment before kong resolves env tags.
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pf-mines"),
		kong.Description("Provably fair Mines engine and service"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.BindTo(os.Stdout, (*io.Writer)(nil)),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// VersionCmd prints build information.
type VersionCmd struct{}

func (c *VersionCmd) Run(out io.Writer) error {
	v := api.GetVersionInfo()
	_, err := fmt.Fprintf(out, "pf-mines %s (commit %s, built %s)\n", v.EngineVersion, v.GitCommit, v.BuildTime)
	return err
}
