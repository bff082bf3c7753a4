// Command server runs the family funds API.
//
//	server serve                 start the HTTP and websocket server
//	server expire-invitations    mark overdue invitations expired and exit
//
// All settings come from the environment; see internal/config.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&serveCmd{}, "")
	subcommands.Register(&expireCmd{}, "maintenance")

	flag.Parse()
	if flag.NArg() == 0 {
		// Bare invocation keeps container entrypoints simple.
		os.Exit(int((&serveCmd{sweepEvery: defaultSweepPeriod}).Execute(context.Background(), flag.CommandLine)))
	}
	os.Exit(int(subcommands.Execute(context.Background())))
}
