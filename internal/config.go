package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/seroka/quill/internal/storage"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Store StoreConfig       `yaml:"store"`
	Auth  AuthConfig        `yaml:"auth"`
	CORS  CORSConfig        `yaml:"cors"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
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

// StoreConfig selects and configures the storage backend.
//
// Backend controls where posts and the admin record live:
//   - "json" (default): two pretty-printed JSON documents under DataDir.
//   - "memory": in-process only; state is lost on exit. Useful for demos
//     and deployments without a writable filesystem.
//   - "sqlite": a single database file at SQLitePath.
type StoreConfig struct {
	Backend    string `yaml:"backend"`
	DataDir    string `yaml:"data_dir"`
	UploadsDir string `yaml:"uploads_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = storage.BackendJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required,
			validation.In(storage.BackendJSON, storage.BackendMemory, storage.BackendSQLite)),
		validation.Field(&c.UploadsDir, validation.Required),
	); err != nil {
		return err
	}
	if c.Backend == storage.BackendJSON && c.DataDir == "" {
		return fmt.Errorf("store: backend is %q but data_dir is empty", storage.BackendJSON)
	}
	if c.Backend == storage.BackendSQLite && c.SQLitePath == "" {
		return fmt.Errorf("store: backend is %q but sqlite_path is empty", storage.BackendSQLite)
	}
	return nil
}

// AuthConfig holds authentication configuration. BootstrapUsername and
// BootstrapPassword seed the admin record on first run only; once the record
// exists they are ignored.
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	BootstrapUsername string        `yaml:"bootstrap_username"`
	BootstrapPassword string        `yaml:"bootstrap_password"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.TokenTTL == 0 {
		c.TokenTTL = 24 * time.Hour
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.JWTSecret, validation.Required),
	); err != nil {
		return err
	}
	if c.TokenTTL < 0 {
		return fmt.Errorf("auth: token_ttl must be positive")
	}
	return nil
}

// CORSConfig holds the CORS allow-list.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Origins returns the configured origins, defaulting to allow-all.
func (c *CORSConfig) Origins() []string {
	if len(c.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return c.AllowedOrigins
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
		Store: StoreConfig{
			Backend:    storage.BackendJSON,
			DataDir:    "./data",
			UploadsDir: "./data/uploads",
			SQLitePath: "./quill.db",
		},
		Auth: AuthConfig{
			TokenTTL:          24 * time.Hour,
			BootstrapUsername: "admin",
		},
	}
}
