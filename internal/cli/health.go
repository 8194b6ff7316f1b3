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

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-walletstore/pkg/health"
)

func newHealthCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the wallet store and secure storage backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cfg.openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			checker := health.NewChecker()
			checker.RegisterCheck(health.CheckStorage, health.StorageCheck(s.backend))
			checker.RegisterCheck(health.CheckWalletList, health.WalletListCheck(s.wallets))
			checker.RegisterCheck(health.CheckSecureStorage, health.SecureStorageCheck(s.secure))

			results := checker.Run(cmd.Context())
			status := health.AggregateStatus(results)
			if err := NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintHealth(status, results); err != nil {
				return err
			}
			if status == health.StatusUnhealthy {
				return fmt.Errorf("wallet store is %s", status)
			}
			return nil
		},
	}
}
