package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/vajiraw/rencfs/content"
	"github.com/vajiraw/rencfs/crypto"
	"github.com/vajiraw/rencfs/vault"
	"golang.org/x/term"
)

// stdinPasswordProvider implements rencfs.PasswordProvider by prompting on
// the controlling terminal, reading without echo when stdin is a tty and
// falling back to a plain line read otherwise (piped input, tests).
type stdinPasswordProvider struct {
	cached *string
}

func (p *stdinPasswordProvider) Password(ctx context.Context) (string, bool) {
	if p.cached != nil {
		return *p.cached, true
	}
	fmt.Print("password: ")
	pw, err := readPassword()
	if err != nil {
		return "", false
	}
	p.cached = &pw
	return pw, true
}

func readPassword() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return readLine()
}

func readLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}

// rotatePassword implements the -change-password path: it re-wraps the
// master key under newPassword without mounting the full engine.
func rotatePassword(dataDir string, cipher crypto.Cipher, oldPassword, newPassword string) error {
	if err := vault.CheckStructure(dataDir); err != nil {
		return err
	}
	layout := content.New(dataDir)
	return vault.ChangePassword(layout, cipher, oldPassword, newPassword)
}
