// Package auth resolves portal credentials and checks the login state of the
// browser session.
package auth

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

// KeyringService is the service name secrets are stored under.
const KeyringService = "enotifikasi-exporter"

var (
	// ErrNoUsername is returned when no account name is configured.
	ErrNoUsername = errors.New("no portal username configured")
	// ErrNoSecret is returned when neither the environment nor the keyring
	// holds a password for the account.
	ErrNoSecret = errors.New("no portal password found")
)

// Source tells where a secret was found.
type Source string

const (
	SourceConfig  Source = "config"
	SourceKeyring Source = "keyring"
)

// Credentials are the portal sign-in values. The secret is never logged.
type Credentials struct {
	Username string
	Secret   string
	Source   Source
}

// Resolve returns credentials for username. A non-empty configured secret
// (config file or environment) wins over the keyring.
func Resolve(username, configured string) (Credentials, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Credentials{}, ErrNoUsername
	}
	if configured != "" {
		return Credentials{Username: username, Secret: configured, Source: SourceConfig}, nil
	}

	secret, err := keyring.Get(KeyringService, username)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Credentials{}, fmt.Errorf("%w for %q; run 'credentials set' or set ENOTIF_PASSWORD", ErrNoSecret, username)
		}
		return Credentials{}, fmt.Errorf("failed to read keyring: %w", err)
	}
	return Credentials{Username: username, Secret: secret, Source: SourceKeyring}, nil
}

// Store saves secret for username in the system keyring.
func Store(username, secret string) error {
	if strings.TrimSpace(username) == "" {
		return ErrNoUsername
	}
	if secret == "" {
		return errors.New("refusing to store an empty password")
	}
	if err := keyring.Set(KeyringService, username, secret); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Forget removes the stored secret for username. Removing a secret that
// does not exist is not an error.
func Forget(username string) error {
	if err := keyring.Delete(KeyringService, username); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// ReadSecret prompts on out and reads a line from in. Echo is disabled when
// in is a terminal.
func ReadSecret(in *os.File, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)

	if term.IsTerminal(int(in.Fd())) {
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := readLine(in)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return line, nil
}

// readLine reads up to the first newline without buffering past it.
func readLine(r io.Reader) (string, error) {
	var (
		sb  strings.Builder
		buf [1]byte
	)
	for {
		n, err := r.Read(buf[:])
		if n == 1 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if err == io.EOF {
			if sb.Len() == 0 {
				return "", io.ErrUnexpectedEOF
			}
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.TrimRight(sb.String(), "\r"), nil
}
