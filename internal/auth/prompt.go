// internal/auth/prompt.go
package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// NeedsUsername reports whether provider authenticates with a username
// next to its token. GitLab sends the token alone.
func NeedsUsername(provider string) bool {
	return provider != "gitlab"
}

// Prompt asks for credentials for provider, interactively when stdin is
// a terminal and line by line otherwise.
func Prompt(provider string) (Credentials, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return promptForm(provider)
	}
	return ReadCredentials(os.Stdin, NeedsUsername(provider))
}

func promptForm(provider string) (Credentials, error) {
	var cred Credentials
	notEmpty := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("required")
		}
		return nil
	}

	var fields []huh.Field
	if NeedsUsername(provider) {
		fields = append(fields, huh.NewInput().
			Title(fmt.Sprintf("%s username", provider)).
			Value(&cred.Username).
			Validate(notEmpty))
	}
	fields = append(fields, huh.NewInput().
		Title(fmt.Sprintf("%s access token", provider)).
		EchoMode(huh.EchoModePassword).
		Value(&cred.AccessToken).
		Validate(notEmpty))

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return Credentials{}, fmt.Errorf("prompt credentials: %w", err)
	}
	cred.Username = strings.TrimSpace(cred.Username)
	cred.AccessToken = strings.TrimSpace(cred.AccessToken)
	return cred, nil
}

// ReadCredentials reads an optional username line followed by a token
// line from r.
func ReadCredentials(r io.Reader, withUsername bool) (Credentials, error) {
	scanner := bufio.NewScanner(r)
	next := func() string {
		if !scanner.Scan() {
			return ""
		}
		return strings.TrimSpace(scanner.Text())
	}

	var cred Credentials
	if withUsername {
		cred.Username = next()
	}
	cred.AccessToken = next()
	if err := scanner.Err(); err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	if cred.AccessToken == "" {
		return Credentials{}, ErrNoCredentials
	}
	return cred, nil
}
