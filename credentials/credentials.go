// Package credentials loads embedding provider API keys from a local
// credentials.toml, falling back to the providers' usual environment variables.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInsecurePermissions is returned when the credentials file is readable by
// anyone but its owner.
var ErrInsecurePermissions = fmt.Errorf("credentials file has insecure permissions")

// Credentials holds one entry per provider section plus an optional
// [embedding] section used when a provider has none of its own.
type Credentials struct {
	Embedding *ProviderCreds
	providers map[string]*ProviderCreds
}

// ProviderCreds holds credentials for a single provider.
type ProviderCreds struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// StandardPaths returns the credential file locations in priority order.
func StandardPaths() []string {
	paths := []string{"credentials.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "matchkit", "credentials.toml"),
			filepath.Join(home, ".matchkit", "credentials.toml"),
		)
	}
	return paths
}

// Load reads the first credentials file found in StandardPaths. A missing
// file is not an error; the returned Credentials is then nil and lookups go
// straight to the environment.
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			creds, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return creds, path, nil
		}
	}
	return nil, "", nil
}

// LoadFile reads credentials from path. The file must be mode 0400 on Unix.
func LoadFile(path string) (*Credentials, error) {
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if mode := info.Mode().Perm(); mode != 0400 {
			return nil, fmt.Errorf("%w: %s has mode %04o (must be 0400)",
				ErrInsecurePermissions, path, mode)
		}
	}

	var sections map[string]ProviderCreds
	if _, err := toml.DecodeFile(path, &sections); err != nil {
		return nil, err
	}

	creds := &Credentials{providers: make(map[string]*ProviderCreds)}
	for name, section := range sections {
		if section.APIKey == "" && section.BaseURL == "" {
			continue
		}
		section := section
		if name == "embedding" {
			creds.Embedding = &section
			continue
		}
		creds.providers[normalize(name)] = &section
	}
	return creds, nil
}

// GetAPIKey returns the API key for a provider.
// Priority: [provider] section > [embedding] section > environment variable.
func (c *Credentials) GetAPIKey(provider string) string {
	if c != nil {
		if p, ok := c.providers[normalize(provider)]; ok && p.APIKey != "" {
			return p.APIKey
		}
		if c.Embedding != nil && c.Embedding.APIKey != "" {
			return c.Embedding.APIKey
		}
	}
	for _, env := range envVarsForProvider(provider) {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return ""
}

// GetBaseURL returns a provider's base_url override, or "".
func (c *Credentials) GetBaseURL(provider string) string {
	if c == nil {
		return ""
	}
	if p, ok := c.providers[normalize(provider)]; ok {
		return p.BaseURL
	}
	return ""
}

func normalize(provider string) string {
	return strings.ToLower(strings.ReplaceAll(provider, "-", ""))
}

// envVarsForProvider lists the environment variables checked for a provider, in order.
func envVarsForProvider(provider string) []string {
	switch normalize(provider) {
	case "openai", "openaicompat":
		return []string{"OPENAI_API_KEY"}
	case "google", "gemini":
		return []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}
	case "ollama":
		return []string{"OLLAMA_API_KEY"}
	default:
		return []string{strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_API_KEY"}
	}
}
