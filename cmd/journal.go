// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sqlworker/internal/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the outcome journal",
}

var journalShowCmd = &cobra.Command{
	Use:   "show <correlation-id>",
	Short: "Show the recorded outcome of a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup(cmd)
		if err != nil {
			return err
		}
		jcfg, err := journalConfig(cfg.Journal)
		if err != nil {
			return err
		}
		if jcfg.Driver == "none" || jcfg.Driver == "" {
			return errors.New("the journal is disabled; set journal.driver to redis or sqlite")
		}
		jr, err := journal.Open(cmd.Context(), jcfg)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer jr.Close()

		e, err := jr.Get(cmd.Context(), args[0])
		if errors.Is(err, journal.ErrNotFound) {
			return fmt.Errorf("no journal entry for %s", args[0])
		}
		if err != nil {
			return err
		}

		status := pterm.Green(e.Status)
		if e.Status != "completed" {
			status = pterm.Red(e.Status)
		}
		data := pterm.TableData{
			{"Correlation id", e.CorrelationID},
			{"Status", status},
			{"Subcommand", e.Subcommand},
			{"Database", e.Database},
			{"Started", e.StartedAt.Local().Format(time.RFC3339)},
			{"Duration", e.Duration().Round(time.Millisecond).String()},
		}
		if e.Data != "" {
			data = append(data, []string{"Result", e.Data})
		}
		if e.Error != "" {
			data = append(data, []string{"Error", e.Error})
		}
		return pterm.DefaultTable.WithWriter(cmd.OutOrStdout()).WithData(data).Render()
	},
}

func init() {
	journalCmd.AddCommand(journalShowCmd)
	rootCmd.AddCommand(journalCmd)
}
