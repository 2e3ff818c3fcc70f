// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sqlworker/internal/bridge/natsbus"
	"sqlworker/internal/health"
	"sqlworker/internal/journal"
	"sqlworker/internal/logging"
	"sqlworker/internal/notify"
	"sqlworker/internal/protocol"
	"sqlworker/internal/router"
	"sqlworker/internal/session"
	"sqlworker/internal/sqlexec"
	"sqlworker/internal/worker"
)

// runCmd consumes requests until interrupted.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consume requests from the message bus",
	Long: `The run command connects to NATS JetStream, binds the durable request consumer and
processes requests one at a time until it receives SIGINT or SIGTERM. A request that is
in flight when the signal arrives is finished and answered before the worker exits.

Each request is acknowledged, answered with {"status":"started"} and then with exactly one
of {"status":"completed","data":...} or {"status":"failed"}.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		bus, err := natsbus.Connect(ctx, cfg.Bus, logger)
		if err != nil {
			return errors.New(logging.PresentError("message bus", err))
		}
		defer bus.Close()

		notifier, err := notify.New(cfg.Notify, bus.Conn(), logger)
		if err != nil {
			return fmt.Errorf("notifier: %w", err)
		}
		defer notifier.Close()

		jcfg, err := journalConfig(cfg.Journal)
		if err != nil {
			return err
		}
		jr, err := journal.Open(ctx, jcfg)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer jr.Close()

		resolver := session.NewResolver(cfg.Databases, secrets(cfg, logger), logger)
		rt := router.New(sqlexec.New(resolver, logger).Handlers(), logger)
		emitter := protocol.New(bus, rt, logger,
			protocol.WithNotifier(notifier),
			protocol.WithJournal(jr))
		w := worker.New(bus, emitter, logger)

		var hs worker.Health
		if cfg.Health.Addr != "" {
			s, err := health.Listen(cfg.Health.Addr, logger)
			if err != nil {
				return err
			}
			hs = s
		}

		logger.Info("sqlworker started",
			"version", Version,
			"databases", cfg.DatabaseNames(),
			"subcommands", rt.Supported(),
			"notify", cfg.Notify.Driver,
			"journal", jcfg.Driver)
		return worker.Supervise(ctx, w, hs)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("bus-url", "", "NATS server URL (overrides bus.url)")
	runCmd.Flags().String("health-addr", "", "listen address of the gRPC health endpoint (overrides health.addr)")
	runCmd.Flags().String("journal", "", "journal driver: none, redis or sqlite (overrides journal.driver)")
}
