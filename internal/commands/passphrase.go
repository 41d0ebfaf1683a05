package commands

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/pgseal/pgseal/internal/config"
)

// passphraseFunc builds the passphrase callback: a file when configured,
// otherwise an interactive double prompt on the terminal.
func passphraseFunc(cfg *config.Config) func() ([]byte, error) {
	if cfg.PassphraseFile != "" {
		return func() ([]byte, error) {
			return readPassphraseFile(cfg.PassphraseFile)
		}
	}

	return promptPassphrase
}

// readPassphraseFile returns the first line of the file, without the line
// ending.
func readPassphraseFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening passphrase file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading passphrase file: %w", err)
		}

		return nil, fmt.Errorf("passphrase file %q is empty", path)
	}

	return append([]byte(nil), scanner.Bytes()...), nil
}

// promptPassphrase asks for the passphrase twice without echo.
func promptPassphrase() ([]byte, error) {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("standard input is not a terminal; use --passphrase-file")
	}

	fmt.Fprint(os.Stderr, "Enter passphrase: ")

	first, err := term.ReadPassword(fd)

	fmt.Fprintln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}

	fmt.Fprint(os.Stderr, "Repeat passphrase: ")

	second, err := term.ReadPassword(fd)

	fmt.Fprintln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}

	if !bytes.Equal(first, second) {
		return nil, fmt.Errorf("passphrases do not match")
	}

	for i := range second {
		second[i] = 0
	}

	return first, nil
}
