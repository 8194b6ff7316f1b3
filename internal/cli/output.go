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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jeremyhahn/go-walletstore/pkg/health"
	"github.com/jeremyhahn/go-walletstore/pkg/wallet"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintWalletList prints the wallet list without key material
func (p *Printer) PrintWalletList(ws wallet.Wallets) error {
	switch p.format {
	case OutputFormatJSON:
		list := make([]map[string]interface{}, len(ws))
		for i, w := range ws {
			list[i] = walletJSON(w)
		}
		return p.printJSON(map[string]interface{}{
			"wallets": list,
		})
	case OutputFormatText:
		if len(ws) == 0 {
			fmt.Fprintln(p.writer, "No wallets found")
			return nil
		}
		fmt.Fprintf(p.writer, "  %-6s %-30s %-8s\n", "ID", "NAME", "STORAGE")
		fmt.Fprintln(p.writer, strings.Repeat("-", 48))
		for _, w := range ws {
			m := w.Meta()
			marker := " "
			if m.Selected {
				marker = "*"
			}
			fmt.Fprintf(p.writer, "%s %-6d %-30s %-8s\n", marker, m.ID, m.Name, w.Mode())
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintWallet prints a single wallet entry
func (p *Printer) PrintWallet(w wallet.Wallet) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(walletJSON(w))
	case OutputFormatText:
		m := w.Meta()
		fmt.Fprintf(p.writer, "ID:       %d\n", m.ID)
		fmt.Fprintf(p.writer, "Name:     %s\n", m.Name)
		fmt.Fprintf(p.writer, "Selected: %t\n", m.Selected)
		fmt.Fprintf(p.writer, "Storage:  %s\n", w.Mode())
		if sw, ok := w.(wallet.SecureWallet); ok {
			fmt.Fprintf(p.writer, "Biometric: %t\n", sw.BiometricEnabled)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func walletJSON(w wallet.Wallet) map[string]interface{} {
	m := w.Meta()
	out := map[string]interface{}{
		"id":       m.ID,
		"name":     m.Name,
		"selected": m.Selected,
		"storage":  string(w.Mode()),
	}
	if sw, ok := w.(wallet.SecureWallet); ok {
		out["biometric_enabled"] = sw.BiometricEnabled
		if sw.LastSecureWriteAt != "" {
			out["last_secure_write_at"] = sw.LastSecureWriteAt
		}
		if sw.LastExportAction != nil {
			out["last_export_action"] = string(*sw.LastExportAction)
		}
	}
	return out
}

// PrintPhrase prints a newly generated recovery phrase
func (p *Printer) PrintPhrase(w wallet.Wallet, phrase string) error {
	switch p.format {
	case OutputFormatJSON:
		out := walletJSON(w)
		out["phrase"] = phrase
		return p.printJSON(out)
	case OutputFormatText:
		if err := p.PrintWallet(w); err != nil {
			return err
		}
		fmt.Fprintln(p.writer)
		fmt.Fprintln(p.writer, "Recovery phrase (write it down, it is shown only once):")
		fmt.Fprintf(p.writer, "  %s\n", phrase)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSecureEntries prints secure storage ids and the wallets using them
func (p *Printer) PrintSecureEntries(entries []secureEntry) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"entries": entries,
		})
	case OutputFormatText:
		if len(entries) == 0 {
			fmt.Fprintln(p.writer, "No secure entries found")
			return nil
		}
		fmt.Fprintln(p.writer, "Secure entries:")
		for _, e := range entries {
			if e.WalletID == 0 {
				fmt.Fprintf(p.writer, "  - %s (orphaned)\n", e.ID)
				continue
			}
			fmt.Fprintf(p.writer, "  - %s (wallet %d, %s)\n", e.ID, e.WalletID, e.WalletName)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintHealth prints health check results
func (p *Printer) PrintHealth(status health.Status, results []health.CheckResult) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": status,
			"checks": results,
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Status: %s\n", status)
		for _, r := range results {
			line := fmt.Sprintf("  %-16s %-10s %s", r.Name, r.Status, r.Message)
			if r.Error != "" {
				line += " (" + r.Error + ")"
			}
			fmt.Fprintln(p.writer, strings.TrimRight(line, " "))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
