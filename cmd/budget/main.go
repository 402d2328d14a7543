package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"budget/internal/cli"
	"budget/internal/commands"
	applog "budget/internal/log"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commands.Register(commander, &commands.Env{
		Open: openLedger,
		Out:  os.Stdout,
		Err:  os.Stderr,
	})

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// openLedger opens the ledger configured by the environment. Logs go to
// stderr so they never mix with command output.
func openLedger(ctx context.Context) (commands.Ledger, func() error, error) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := cli.SetupLogger(cfg, os.Stderr).WithComponent(applog.ComponentCLI)

	store, cleanup, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, cleanup, nil
}
