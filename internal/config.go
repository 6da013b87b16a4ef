package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/halvard/muninn/internal/fetch"
	"github.com/halvard/muninn/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Source   SourceConfig      `yaml:"source"`
	Fetch    FetchConfig       `yaml:"fetch"`
	Cache    CacheConfig       `yaml:"cache"`
	Seed     SeedConfig        `yaml:"seed"`
	Snapshot SnapshotConfig    `yaml:"snapshot"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.Fetch.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Seed.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SourceConfig locates the corpus repository. The defaults point at
// GitHub; all three bases are configurable so tests and mirrors can
// redirect them.
type SourceConfig struct {
	Owner    string     `yaml:"owner"`
	Repo     string     `yaml:"repo"`
	Branch   string     `yaml:"branch"`
	APIBase  string     `yaml:"api_base"`
	RawBase  string     `yaml:"raw_base"`
	HTMLBase string     `yaml:"html_base"`
	Token    string     `yaml:"token"`
	Dirs     DirsConfig `yaml:"dirs"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Owner, validation.Required),
		validation.Field(&c.Repo, validation.Required),
		validation.Field(&c.Branch, validation.Required),
		validation.Field(&c.APIBase, validation.Required),
		validation.Field(&c.RawBase, validation.Required),
		validation.Field(&c.HTMLBase, validation.Required),
	)
}

// FetchSource converts the configuration into a fetch.Source.
func (c *SourceConfig) FetchSource() fetch.Source {
	return fetch.Source{
		APIBase:  c.APIBase,
		RawBase:  c.RawBase,
		HTMLBase: c.HTMLBase,
		Owner:    c.Owner,
		Repo:     c.Repo,
		Branch:   c.Branch,
	}
}

// DirsConfig overrides the repository directory per category. Empty
// fields keep the category default (risks, mitigations, frameworks).
type DirsConfig struct {
	Risks       string `yaml:"risks"`
	Mitigations string `yaml:"mitigations"`
	Frameworks  string `yaml:"frameworks"`
}

// Overrides returns the non-empty directory overrides keyed by category.
func (c *DirsConfig) Overrides() map[models.Category]string {
	out := make(map[models.Category]string)
	if c.Risks != "" {
		out[models.CategoryRisk] = c.Risks
	}
	if c.Mitigations != "" {
		out[models.CategoryMitigation] = c.Mitigations
	}
	if c.Frameworks != "" {
		out[models.CategoryFramework] = c.Frameworks
	}
	return out
}

// FetchConfig holds HTTP fetch client configuration. Zero values fall
// back to the fetch package defaults, so only negatives are rejected.
type FetchConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxAttempts    int     `yaml:"max_attempts"`
	BackoffBaseMS  int     `yaml:"backoff_base_ms"`
	BackoffFactor  float64 `yaml:"backoff_factor"`
}

// Validate validates the fetch configuration.
func (c *FetchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TimeoutSeconds, validation.Min(0)),
		validation.Field(&c.MaxAttempts, validation.Min(0)),
		validation.Field(&c.BackoffBaseMS, validation.Min(0)),
		validation.Field(&c.BackoffFactor, validation.Min(0.0)),
	)
}

// ClientConfig converts the configuration into a fetch.Config.
func (c *FetchConfig) ClientConfig(token string) fetch.Config {
	return fetch.Config{
		Timeout:       time.Duration(c.TimeoutSeconds) * time.Second,
		MaxAttempts:   c.MaxAttempts,
		BackoffBase:   time.Duration(c.BackoffBaseMS) * time.Millisecond,
		BackoffFactor: c.BackoffFactor,
		Token:         token,
	}
}

// CacheConfig holds in-memory cache configuration.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
	MaxEntries int `yaml:"max_entries"`
}

// TTL returns the entry lifetime as a duration.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TTLSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxEntries, validation.Required, validation.Min(1)),
	)
}

// SeedConfig holds the fallback seed list configuration. An empty Path
// uses the compiled-in seed list; Watch reloads the file on change.
type SeedConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the seed configuration.
func (c *SeedConfig) Validate() error {
	if c.Watch && c.Path == "" {
		return fmt.Errorf("seed: watch enabled but path is empty")
	}
	return nil
}

// SnapshotConfig holds the SQLite snapshot configuration. An empty
// Path disables persistence.
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Source: SourceConfig{
			Owner:    "halvard",
			Repo:     "governance-docs",
			Branch:   "main",
			APIBase:  "https://api.github.com",
			RawBase:  "https://raw.githubusercontent.com",
			HTMLBase: "https://github.com",
		},
		Fetch: FetchConfig{
			TimeoutSeconds: 30,
			MaxAttempts:    3,
			BackoffBaseMS:  500,
			BackoffFactor:  2,
		},
		Cache: CacheConfig{
			TTLSeconds: 900,
			MaxEntries: 256,
		},
		Snapshot: SnapshotConfig{
			Path: "./muninn.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
