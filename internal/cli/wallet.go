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
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/cosmos/go-bip39"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-walletstore/pkg/keychain"
	"github.com/jeremyhahn/go-walletstore/pkg/wallet"
)

func newWalletCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Wallet management operations",
		Long:  `Create, import, export, select, rename, unlock and remove wallets`,
	}
	cmd.AddCommand(
		newWalletCreateCmd(cfg),
		newWalletAddCmd(cfg),
		newWalletImportCmd(cfg),
		newWalletExportCmd(cfg),
		newWalletListCmd(cfg),
		newWalletSelectCmd(cfg),
		newWalletRenameCmd(cfg),
		newWalletRemoveCmd(cfg),
		newWalletUnlockCmd(cfg),
		newWalletValidateCmd(cfg),
		newWalletWatchCmd(cfg),
	)
	return cmd
}

// walletFlags are shared by the commands that create a wallet.
type walletFlags struct {
	name      string
	id        int
	biometric bool
}

func (f *walletFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "wallet name (defaults to \"Wallet <id>\")")
	cmd.Flags().IntVar(&f.id, "id", 0, "wallet id (defaults to the next free id)")
	cmd.Flags().BoolVar(&f.biometric, "biometric", false, "request biometric protection where supported")
}

func (f *walletFlags) resolve(s *session) (int, string) {
	id := f.id
	if id == 0 {
		id = s.service.NextWalletID()
	}
	name := strings.TrimSpace(f.name)
	if name == "" {
		name = wallet.DefaultName(id)
	}
	return id, name
}

func newWalletCreateCmd(cfg *Config) *cobra.Command {
	var flags walletFlags
	var words int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a wallet with a new recovery phrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bits, err := entropyBits(words)
			if err != nil {
				return err
			}
			entropy, err := bip39.NewEntropy(bits)
			if err != nil {
				return fmt.Errorf("failed to generate entropy: %w", err)
			}
			phrase, err := bip39.NewMnemonic(entropy)
			if err != nil {
				return fmt.Errorf("failed to generate recovery phrase: %w", err)
			}

			s, err := cfg.openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			password, err := newPrompter(cmd).newPassword()
			if err != nil {
				return err
			}

			id, name := flags.resolve(s)
			printVerbose(cmd, cfg, "Creating wallet %d (%s)", id, name)
			if err := s.service.AddKeystoreWallet(cmd.Context(), keychain.AddParams{
				Phrase:           phrase,
				Name:             name,
				ID:               id,
				Password:         password,
				BiometricEnabled: flags.biometric,
			}); err != nil {
				return err
			}

			w, _ := s.service.Wallets().Find(id)
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintPhrase(w, phrase)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&words, "words", 24, "recovery phrase length (12 or 24)")
	return cmd
}

func entropyBits(words int) (int, error) {
	switch words {
	case 12:
		return 128, nil
	case 24:
		return 256, nil
	default:
		return 0, fmt.Errorf("unsupported phrase length %d (must be 12 or 24)", words)
	}
}

func newWalletAddCmd(cfg *Config) *cobra.Command {
	var flags walletFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a wallet from an existing recovery phrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cfg.openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			prompt := newPrompter(cmd)
			raw, err := prompt.secret("Recovery phrase: ")
			if err != nil {
				return err
			}
			phrase := strings.Join(strings.Fields(raw), " ")
			if !bip39.IsMnemonicValid(phrase) {
				return errors.New("invalid recovery phrase")
			}
			password, err := prompt.newPassword()
			if err != nil {
				return err
			}

			id, name := flags.resolve(s)
			if err := s.service.AddKeystoreWallet(cmd.Context(), keychain.AddParams{
				Phrase:           phrase,
				Name:             name,
				ID:               id,
				Password:         password,
				BiometricEnabled: flags.biometric,
			}); err != nil {
				return err
			}

			w, _ := s.service.Wallets().Find(id)
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintWallet(w)
		},
	}
	flags.register(cmd)
	return cmd
}

func newWalletImportCmd(cfg *Config) *cobra.Command {
	var flags walletFlags

	cmd := &cobra.Command{
		Use:   "import <keystore-file>",
		Short: "Import an encrypted keystore file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cfg.openSession(cmd.Context(), sessionOptions{
				loader: wallet.PathLoader{Path: args[0]},
			})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			loaded := keychain.Await(cmd.Context(), s.service.LoadKeystore(cmd.Context()))
			switch {
			case loaded.IsFailure():
				return loaded.Err
			case !loaded.IsSuccess():
				return errors.New("import cancelled")
			}

			password, err := newPrompter(cmd).password()
			if err != nil {
				return err
			}

			id, name := flags.resolve(s)
			if err := s.service.ImportKeystore(cmd.Context(), keychain.ImportParams{
				Keystore: loaded.Value,
				Password: password,
				Name:     name,
				ID:       id,
			}); err != nil {
				return err
			}

			w, _ := s.service.Wallets().Find(id)
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintWallet(w)
		},
	}
	flags.register(cmd)
	return cmd
}

func newWalletExportCmd(cfg *Config) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the selected wallet's encrypted keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cfg.openSession(cmd.Context(), sessionOptions{
				exporter: wallet.DirExporter{Dir: dir},
			})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			path, err := s.service.ExportKeystore(cmd.Context())
			if err != nil {
				return err
			}
			printer := NewPrinter(cfg.OutputFormat, cmd.OutOrStdout())
			if path == "" {
				return printer.PrintSuccess("Export cancelled")
			}
			return printer.PrintSuccess(fmt.Sprintf("Keystore exported to %s", path))
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "destination directory")
	return cmd
}

func newWalletListCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List wallets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cfg.openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintWalletList(s.service.Wallets())
		},
	}
}

func newWalletSelectCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "select <id>",
		Short: "Select the current wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid wallet id %q", args[0])
			}
			s, err := cfg.openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if err := awaitDone(cmd, s.service.ChangeKeystoreWallet(cmd.Context(), id)); err != nil {
				return err
			}
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).
				PrintSuccess(fmt.Sprintf("Selected wallet %d (%s)", id, s.service.State().Name()))
		},
	}
}

func newWalletRenameCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <new-name>",
		Short: "Rename the selected wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cfg.openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			id, err := unlockCurrent(cmd, s)
			if err != nil {
				return err
			}
			if err := awaitDone(cmd, s.service.RenameKeystoreWallet(cmd.Context(), id, args[0])); err != nil {
				return err
			}
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).
				PrintSuccess(fmt.Sprintf("Renamed wallet %d to %s", id, args[0]))
		},
	}
}

func newWalletRemoveCmd(cfg *Config) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove the selected wallet",
		Long: `Remove the selected wallet and its secure storage entry. The recovery
phrase is lost unless it was written down or the keystore exported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cfg.openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			state := s.service.State()
			if state.IsNone() {
				return keychain.ErrNoKeystore
			}
			if !yes {
				answer, err := newPrompter(cmd).secret(fmt.Sprintf("Type %q to confirm removal: ", state.Name()))
				if err != nil {
					return err
				}
				if answer != state.Name() {
					return errors.New("removal not confirmed")
				}
			}

			remaining, err := s.service.RemoveKeystoreWallet(cmd.Context())
			if err != nil {
				return err
			}
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).
				PrintSuccess(fmt.Sprintf("Removed wallet %s, %d remaining", state.Name(), remaining))
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newWalletUnlockCmd(cfg *Config) *cobra.Command {
	var showPhrase bool

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Unlock the selected wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cfg.openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if _, err := unlockCurrent(cmd, s); err != nil {
				return err
			}
			printer := NewPrinter(cfg.OutputFormat, cmd.OutOrStdout())
			if !showPhrase {
				return printer.PrintSuccess(fmt.Sprintf("Wallet %s unlocked", s.service.State().Name()))
			}
			phrase, err := s.service.State().Phrase()
			if err != nil {
				return err
			}
			w, _ := s.service.Wallets().Selected()
			return printer.PrintPhrase(w, phrase)
		},
	}
	cmd.Flags().BoolVar(&showPhrase, "show-phrase", false, "print the recovery phrase")
	return cmd
}

// awaitDone waits for an operation stream and converts anything but a
// success into an error.
func awaitDone[T any](cmd *cobra.Command, ch <-chan keychain.Result[T]) error {
	r := keychain.Await(cmd.Context(), ch)
	switch {
	case r.IsSuccess():
		return nil
	case r.Err != nil:
		return r.Err
	default:
		return errors.New("operation did not complete")
	}
}

// unlockCurrent prompts for the password and unlocks the selected wallet.
func unlockCurrent(cmd *cobra.Command, s *session) (int, error) {
	id, ok := s.service.State().ID()
	if !ok {
		return 0, keychain.ErrNoKeystore
	}
	password, err := newPrompter(cmd).password()
	if err != nil {
		return 0, err
	}
	if err := s.service.Unlock(cmd.Context(), password); err != nil {
		return 0, err
	}
	return id, nil
}

func newWalletValidateCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a password against the selected wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cfg.openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			password, err := newPrompter(cmd).secret("Password: ")
			if err != nil {
				return err
			}
			r := keychain.Await(cmd.Context(), s.service.ValidatePassword(cmd.Context(), password))
			switch {
			case r.IsFailure():
				return fmt.Errorf("password is not valid: %w", r.Err)
			case !r.IsSuccess():
				return errors.New("no password given")
			}
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintSuccess("Password is valid")
		},
	}
}

func newWalletWatchCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the wallet list whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			s, err := cfg.openSession(ctx, sessionOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			watcher := wallet.NewWatcher(s.cfg.WalletsDir(), defaultWatchDebounce, s.logger)
			if err := s.service.WatchWallets(ctx, watcher); err != nil {
				return err
			}

			printer := NewPrinter(cfg.OutputFormat, cmd.OutOrStdout())
			updates := s.service.WalletsUIUpdates(ctx)
			for {
				select {
				case <-ctx.Done():
					return nil
				case _, ok := <-updates:
					if !ok {
						return nil
					}
					if err := printer.PrintWalletList(s.service.Wallets()); err != nil {
						return err
					}
				}
			}
		},
	}
}
