// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sqlworker/internal/config"
	"sqlworker/internal/dsn"
	"sqlworker/internal/logging"
	"sqlworker/internal/session"
)

var checkDatabases bool

// databasesCmd lists the configured databases with their URIs masked.
var databasesCmd = &cobra.Command{
	Use:   "databases",
	Short: "List configured databases",
	Long: `The databases command lists every configured database with its engine and its
connection URI, with passwords masked.

With --check each database is opened, pinged and reflected exactly as a request would do
it, and the number of tables found is reported.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		var resolver *session.Resolver
		header := []string{"NAME", "ENGINE", "URI"}
		if checkDatabases {
			resolver = session.NewResolver(cfg.Databases, secrets(cfg, logger), logger)
			header = append(header, "TABLES")
		}

		data := pterm.TableData{header}
		var failures []string
		for _, name := range cfg.DatabaseNames() {
			uri := cfg.Databases[name].URI
			row := []string{name, engineOf(uri), logging.Mask(uri)}
			if resolver != nil {
				s, err := resolver.Resolve(cmd.Context(), name)
				if err != nil {
					row = append(row, pterm.Red("unreachable"))
					failures = append(failures, logging.FormatConnectError(name, err))
				} else {
					row = append(row, strconv.Itoa(len(s.Catalog.Tables())))
					_ = s.Close()
				}
			}
			data = append(data, row)
		}

		if err := pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render(); err != nil {
			return err
		}
		for _, f := range failures {
			pterm.Fprintln(cmd.ErrOrStderr(), "")
			pterm.Fprintln(cmd.ErrOrStderr(), f)
		}
		if len(failures) > 0 {
			return fmt.Errorf("%d of %d databases unreachable", len(failures), len(cfg.Databases))
		}
		return nil
	},
}

func engineOf(uri string) string {
	if strings.HasPrefix(uri, config.KeyringPrefix) {
		return "keyring"
	}
	return string(dsn.DetectDBType(uri))
}

func init() {
	rootCmd.AddCommand(databasesCmd)
	databasesCmd.Flags().BoolVar(&checkDatabases, "check", false, "connect to each database and count its tables")
}
