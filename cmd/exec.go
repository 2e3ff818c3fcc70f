// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sqlworker/internal/bridge"
	"sqlworker/internal/bridge/model"
	"sqlworker/internal/journal"
	"sqlworker/internal/notify"
	"sqlworker/internal/protocol"
	"sqlworker/internal/router"
	"sqlworker/internal/session"
	"sqlworker/internal/sqlexec"
)

var execCorrelationID string

// execCmd runs one envelope through the same protocol the worker uses.
var execCmd = &cobra.Command{
	Use:   "exec [file|-]",
	Short: "Process one request envelope from a file or stdin",
	Long: `The exec command reads one request envelope and processes it exactly as the running
worker would. Responses are printed to stdout as JSON lines and error output goes to
stderr. The command exits with status 1 when the request fails.

Example:
  echo '{"parameters": {"subcommand": "ExecuteSQL", "database": "main", "sql": "SELECT 1"}}' | sqlworker exec -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readEnvelope(cmd, args)
		if err != nil {
			return err
		}
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

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
		emitter := protocol.New(bridge.NewWriterTransport(cmd.OutOrStdout()), rt, logger,
			protocol.WithNotifier(notify.NewLog(logger)),
			protocol.WithJournal(jr))

		d := localDelivery(body, execCorrelationID)
		if emitter.Handle(ctx, d, bridge.WriterOutput{W: cmd.ErrOrStderr()}) == model.StatusFailed {
			return errRequestFailed
		}
		return nil
	},
}

func readEnvelope(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	body, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read envelope: %w", err)
	}
	return body, nil
}

// localDelivery builds a delivery for body. The correlation id comes from
// the flag, then the envelope, then a fresh UUID.
func localDelivery(body []byte, correlationID string) model.Delivery {
	var env model.Envelope
	_ = json.Unmarshal(body, &env)
	if correlationID == "" {
		correlationID = env.CorrelationID
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	replyTo := env.ReplyTo
	if replyTo == "" {
		replyTo = "stdout"
	}
	return model.Delivery{
		Tag:           "local",
		CorrelationID: correlationID,
		ReplyTo:       replyTo,
		Body:          body,
	}
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().StringVar(&execCorrelationID, "correlation-id", "", "correlation id for the request (default: envelope's, else a new UUID)")
}
