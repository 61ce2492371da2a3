package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// resolvePassword implements the -w PWFILE / interactive-prompt password
// input of spec §6. An empty pwFile with encryption selected prompts on
// the controlling terminal (golang.org/x/term, same pattern the corpus
// uses for passphrase entry), echo disabled.
func resolvePassword(pwFile string, confirm bool) ([]byte, error) {
	if pwFile != "" {
		f, err := os.Open(pwFile)
		if err != nil {
			return nil, fmt.Errorf("open password file: %w", err)
		}
		defer f.Close()
		line, err := bufio.NewReader(f).ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("read password file: %w", err)
		}
		return []byte(strings.TrimRight(line, "\r\n")), nil
	}

	fmt.Fprint(os.Stderr, "Enter password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	if confirm {
		fmt.Fprint(os.Stderr, "Confirm password: ")
		pw2, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		if string(pw) != string(pw2) {
			return nil, fmt.Errorf("passwords do not match")
		}
	}
	return pw, nil
}
