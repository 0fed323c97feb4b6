package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Transfer    TransferConfig    `toml:"transfer"`
}

// CredentialsConfig contains the Spotify app credentials and per-role tokens.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Source  TokenConfig   `toml:"source"`
	Dest    TokenConfig   `toml:"dest"`
}

// SpotifyConfig contains Spotify API credentials shared by both account roles.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// Map converts the Spotify credentials to the map form consumed by the services package.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// TokenConfig holds the OAuth2 tokens persisted for one account role.
type TokenConfig struct {
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	Expiry       time.Time `toml:"expiry"`
}

// Update replaces the stored tokens with a freshly issued [oauth2.Token].
func (t *TokenConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}
	t.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		t.RefreshToken = token.RefreshToken
	}
	t.Expiry = token.Expiry
	return nil
}

// Token converts the stored tokens back to an [oauth2.Token].
func (t TokenConfig) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// Empty reports whether no token has been stored for this role.
func (t TokenConfig) Empty() bool {
	return t.AccessToken == ""
}

// ForRole returns a pointer to the token section for the given role.
func (c *CredentialsConfig) ForRole(role Role) *TokenConfig {
	if role == RoleDest {
		return &c.Dest
	}
	return &c.Source
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// TransferConfig contains pacing knobs for extraction and transfer runs.
//
// Zero values fall back to the engine defaults; a negative delay disables
// that pacing.
type TransferConfig struct {
	PageSize      int `toml:"page_size"`
	PageDelayMS   int `toml:"page_delay_ms"`
	ItemDelayMS   int `toml:"item_delay_ms"`
	BatchSize     int `toml:"batch_size"`
	BatchDelayMS  int `toml:"batch_delay_ms"`
	ProgressEvery int `toml:"progress_every"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// SaveConfig writes the configuration back to disk as TOML.
//
// Used after OAuth flows to persist freshly issued tokens.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
