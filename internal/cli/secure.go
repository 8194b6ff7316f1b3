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
	"errors"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-walletstore/pkg/wallet"
)

// secureEntry is a secure storage id and the wallet referencing it.
type secureEntry struct {
	ID         string `json:"id"`
	WalletID   int    `json:"wallet_id,omitempty"`
	WalletName string `json:"wallet_name,omitempty"`
}

func newSecureCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secure",
		Short: "Secure storage operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List secure storage entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cfg.openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if s.secure == nil {
				return errors.New("secure storage is disabled")
			}
			ids, err := s.secure.List(cmd.Context())
			if err != nil {
				return err
			}
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).
				PrintSecureEntries(secureEntries(ids, s.service.Wallets()))
		},
	})
	return cmd
}

// secureEntries pairs ids with the wallets that reference them. Ids no
// wallet references are orphaned.
func secureEntries(ids []string, ws wallet.Wallets) []secureEntry {
	owners := make(map[string]wallet.Metadata)
	for _, w := range ws {
		if sw, ok := w.(wallet.SecureWallet); ok {
			owners[sw.SecureKeyID] = sw.Metadata
		}
	}
	entries := make([]secureEntry, len(ids))
	for i, id := range ids {
		entries[i] = secureEntry{ID: id}
		if m, ok := owners[id]; ok {
			entries[i].WalletID = m.ID
			entries[i].WalletName = m.Name
		}
	}
	return entries
}
