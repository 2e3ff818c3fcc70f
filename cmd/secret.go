// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sqlworker/internal/config"
	"sqlworker/internal/dsn"
	"sqlworker/internal/keychain"
	"sqlworker/internal/terminal"
)

// secretCmd manages connection URIs kept in the OS keychain.
var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage connection URIs stored in the OS keychain",
	Long: `Connection URIs holding credentials can be kept in the OS keychain instead of the
config file. Store one under a name and refer to it as

  databases:
    main:
      uri: keyring:main`,
}

var secretSetCmd = &cobra.Command{
	Use:   "set <name> [uri]",
	Short: "Store a connection URI",
	Long: `The set command stores a connection URI under name. When uri is not given it is read
from stdin, so it never appears in the shell history.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		var uri string
		if len(args) == 2 {
			uri = args[1]
		} else {
			line, err := terminal.ReadSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Connection URI: ")
			if err != nil {
				return errors.New("connection URI is required")
			}
			uri = line
		}
		uri = strings.TrimSpace(uri)
		if uri == "" {
			return errors.New("connection URI is required")
		}
		if err := dsn.Validate(uri); err != nil {
			return err
		}

		km, err := keychain.NewManager()
		if err != nil {
			return fmt.Errorf("secure storage is not available on this system: %w", err)
		}
		if err := km.SaveDBURI(name, uri); err != nil {
			return fmt.Errorf("failed to save connection URI: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Saved. Use uri: %s%s\n", config.KeyringPrefix, name)
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a stored connection URI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.NewManager()
		if err != nil {
			return fmt.Errorf("secure storage is not available on this system: %w", err)
		}
		if err := km.DeleteDBURI(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Removed %s%s\n", config.KeyringPrefix, args[0])
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd, secretDeleteCmd)
	rootCmd.AddCommand(secretCmd)
}
