package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadSecret prints prompt on stderr and reads one line from the terminal
// without echo, for security codes.
func ReadSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("cannot read security code: stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading security code: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

// IsTerminal reports whether stdin is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ClearScreen clears stdout and homes the cursor. Redirected output is left
// alone.
func ClearScreen() error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil
	}
	_, err := fmt.Fprint(os.Stdout, "\033[2J\033[H")
	return err
}
