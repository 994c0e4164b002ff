// ABOUTME: Backend profile loading for guildpost-syncd
// ABOUTME: Loads TOML credentials from XDG path with environment variable expansion

package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/guildpost/guildpost/internal/config"
)

// Profile holds backend endpoint credentials. It lives beside the main
// config so tokens can be rotated without touching engine tuning.
type Profile struct {
	Backend BackendProfile `toml:"backend"`
}

type BackendProfile struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// getProfilePath returns the path to the backend profile file.
// Priority: GUILDPOST_PROFILE env var > XDG_CONFIG_HOME/guildpost/profile.toml > ~/.config/guildpost/profile.toml
func getProfilePath() string {
	if envPath := os.Getenv("GUILDPOST_PROFILE"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "profile.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "guildpost", "profile.toml")
}

// loadProfile reads the backend profile, expanding environment variables.
// A missing profile file is not an error; the main config's api section is
// used instead.
func loadProfile() (*Profile, error) {
	path := getProfilePath()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile file: %w", err)
	}

	// Expand environment variables (${VAR} syntax)
	expanded := expandEnvVars(string(data))

	var p Profile
	if _, err := toml.Decode(expanded, &p); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validating profile: %w", err)
	}

	return &p, nil
}

// Validate checks that the profile's URL parses when present.
func (p *Profile) Validate() error {
	if p.Backend.URL != "" {
		u, err := url.Parse(p.Backend.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("backend.url %q is not a valid absolute URL", p.Backend.URL)
		}
	}
	return nil
}

// resolveBackend merges the profile over the main config's api section.
func resolveBackend(cfg *config.Config, profile *Profile) (baseURL, token string) {
	baseURL = cfg.API.BaseURL
	token = cfg.API.AuthToken
	if profile != nil {
		if profile.Backend.URL != "" {
			baseURL = profile.Backend.URL
		}
		if profile.Backend.Token != "" {
			token = profile.Backend.Token
		}
	}
	return baseURL, token
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}
