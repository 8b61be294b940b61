package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverBadger = "badger"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app" json:"app"`
	Store   StoreConfig       `yaml:"store" json:"store"`
	Catalog CatalogConfig     `yaml:"catalog" json:"catalog"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return c.Catalog.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" json:"log_level"`
	HTTP     HTTPConfig `yaml:"http" json:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
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

// StoreConfig selects the record store backend.
//
// Driver controls which backend is opened:
//   - "sqlite" (default): a single SQLite file at SQLitePath, schema managed by migrations.
//   - "badger": a Badger key-value directory at BadgerPath.
type StoreConfig struct {
	Driver     string `yaml:"driver" json:"driver"`
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
	BadgerPath string `yaml:"badger_path" json:"badger_path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = StoreDriverSQLite
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StoreDriverSQLite, StoreDriverBadger)),
		validation.Field(&c.SQLitePath, validation.When(c.Driver == StoreDriverSQLite, validation.Required)),
		validation.Field(&c.BadgerPath, validation.When(c.Driver == StoreDriverBadger, validation.Required)),
	)
}

// CatalogConfig holds the YAML threat catalog directory.
type CatalogConfig struct {
	Path  string `yaml:"path" json:"path"`
	Watch bool   `yaml:"watch" json:"watch"`
	// AnalysisThrottle bounds how often analysis.updated is pushed to
	// event subscribers.
	AnalysisThrottle time.Duration `yaml:"analysis_throttle" json:"analysis_throttle"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.AnalysisThrottle, validation.Min(time.Duration(0))),
	)
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
			Driver:     StoreDriverSQLite,
			SQLitePath: "./threat_model.db",
			BadgerPath: "./data/badger",
		},
		Catalog: CatalogConfig{
			Path:             "./catalog",
			Watch:            true,
			AnalysisThrottle: 2 * time.Second,
		},
	}
}
