// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-walletstore.
//
// go-walletstore is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the walletstore command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(NewConfig())
}

func newRootCmd(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "walletstore",
		Short: "go-walletstore CLI - Encrypted wallet keystore management",
		Long: `go-walletstore CLI manages encrypted wallet keystores: it creates,
imports, exports, selects, renames and removes wallets, keeping each
keystore in OS-level secure storage when available and falling back
to the legacy embedded keystore otherwise.

Secure storage backends:
  - file:    versioned envelopes under <data-dir>/secure
  - keyring: the OS keychain (Keychain, Credential Manager, Secret Service)
  - none:    legacy embedded keystores only`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	root.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "",
		"config file (YAML)")
	root.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", "",
		"data directory (overrides storage.data_dir)")
	root.PersistentFlags().StringVarP(&cfg.OutputFormat, "output", "o", "text",
		"output format (text, json)")
	root.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false,
		"verbose output")

	root.AddCommand(newVersionCmd(cfg))
	root.AddCommand(newWalletCmd(cfg))
	root.AddCommand(newSecureCmd(cfg))
	root.AddCommand(newHealthCmd(cfg))
	return root
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	cfg := NewConfig()
	err := newRootCmd(cfg).Execute()
	if err != nil {
		printer := NewPrinter(cfg.OutputFormat, os.Stderr)
		_ = printer.PrintError(err) // Error printing to stderr is best-effort
	}
	return err
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(cmd *cobra.Command, cfg *Config, format string, args ...interface{}) {
	if cfg.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "[VERBOSE] "+format+"\n", args...)
	}
}
