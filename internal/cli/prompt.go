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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// prompter reads secrets from a terminal without echo, or line by line
// from piped input.
type prompter struct {
	in    io.Reader
	out   io.Writer
	lines *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: cmd.InOrStdin(), out: cmd.ErrOrStderr()}
}

func (p *prompter) secret(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		defer fmt.Fprintln(p.out)
		raw, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		s := string(raw)
		clear(raw)
		return s, nil
	}
	return p.line()
}

func (p *prompter) line() (string, error) {
	if p.lines == nil {
		p.lines = bufio.NewReader(p.in)
	}
	s, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		if errors.Is(err, io.EOF) {
			return "", errors.New("no input provided")
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// password reads an existing password.
func (p *prompter) password() (string, error) {
	pw, err := p.secret("Password: ")
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", errors.New("password cannot be empty")
	}
	return pw, nil
}

// newPassword reads a password twice.
func (p *prompter) newPassword() (string, error) {
	pw, err := p.password()
	if err != nil {
		return "", err
	}
	confirm, err := p.secret("Confirm password: ")
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}
