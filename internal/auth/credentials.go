// internal/auth/credentials.go
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrNoCredentials = errors.New("no credentials found")

// Credentials holds the token used against one provider and, for
// providers authenticating with basic auth, the matching username.
type Credentials struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username,omitempty"`
}

type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func DefaultStorePath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "contribcount", "credentials.json")
}

func (s *FileStore) Save(provider string, cred Credentials) error {
	all, _ := s.loadAll()
	if all == nil {
		all = make(map[string]Credentials)
	}
	all[provider] = cred

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func (s *FileStore) Load(provider string) (Credentials, error) {
	all, err := s.loadAll()
	if err != nil {
		return Credentials{}, ErrNoCredentials
	}
	cred, ok := all[provider]
	if !ok || cred.AccessToken == "" {
		return Credentials{}, ErrNoCredentials
	}
	return cred, nil
}

// LoadWithEnv resolves credentials for provider, preferring
// CONTRIBCOUNT_<PROVIDER>_TOKEN, then the store, then the gh or glab
// CLI for GitHub and GitLab. gitlabHost selects the glab host.
func (s *FileStore) LoadWithEnv(provider, gitlabHost string) (Credentials, error) {
	prefix := "CONTRIBCOUNT_" + strings.ToUpper(provider)
	if token := os.Getenv(prefix + "_TOKEN"); token != "" {
		return Credentials{
			AccessToken: token,
			Username:    os.Getenv(prefix + "_USERNAME"),
		}, nil
	}
	cred, err := s.Load(provider)
	if err == nil {
		return cred, nil
	}
	switch provider {
	case "github":
		if token, ok := GhCLIToken(); ok {
			return Credentials{AccessToken: token}, nil
		}
	case "gitlab":
		if token, ok := GlabCLIToken(gitlabHost); ok {
			return Credentials{AccessToken: token}, nil
		}
	}
	return Credentials{}, ErrNoCredentials
}

func (s *FileStore) loadAll() (map[string]Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var all map[string]Credentials
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	return all, nil
}
