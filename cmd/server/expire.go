package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/mmynk/familyfunds/internal/config"
	"github.com/mmynk/familyfunds/internal/service"
	"github.com/mmynk/familyfunds/internal/storage/sqlite"
	"github.com/mmynk/familyfunds/pkg/logging"
)

type expireCmd struct{}

func (*expireCmd) Name() string     { return "expire-invitations" }
func (*expireCmd) Synopsis() string { return "mark overdue pending invitations as expired" }
func (*expireCmd) Usage() string {
	return `expire-invitations

  Runs one invitation sweep against DB_PATH and exits. Useful from cron when
  the server runs with -sweep 0.
`
}

func (*expireCmd) SetFlags(*flag.FlagSet) {}

func (*expireCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	logger := logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		return subcommands.ExitUsageError
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	families := service.NewFamilyService(store, nil, nil)
	n, err := families.ExpireInvitations(ctx)
	if err != nil {
		logger.Error("Invitation sweep failed", "error", err)
		return subcommands.ExitFailure
	}
	logger.Info("Expired invitations", "count", n, "database", cfg.DBPath)
	return subcommands.ExitSuccess
}
