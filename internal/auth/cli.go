// internal/auth/cli.go
package auth

import (
	"net/url"
	"os/exec"
	"strings"
)

// GhCLIToken attempts to get a GitHub token from the gh CLI tool.
func GhCLIToken() (string, bool) {
	return commandToken("gh", "auth", "token")
}

// GlabCLIToken attempts to get a GitLab token from the glab CLI tool for
// host, defaulting to gitlab.com. A full URL is reduced to its host.
func GlabCLIToken(host string) (string, bool) {
	return commandToken("glab", "config", "get", "token", "--host", glabHost(host))
}

func glabHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return "gitlab.com"
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil || u.Host == "" {
		return "gitlab.com"
	}
	return u.Host
}

// commandToken runs name and returns its trimmed output. Returns false
// when the tool is missing, fails or prints nothing.
func commandToken(name string, args ...string) (string, bool) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", false
	}
	return token, true
}
