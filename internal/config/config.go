// Package config loads the per-device meshrota.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DeviceConfig identifies the device's owner and where its state lives.
type DeviceConfig struct {
	ParticipantID string `yaml:"participantId" validate:"required"`
	// DataDir anchors every relative path below. Defaults to the current
	// directory.
	DataDir string `yaml:"dataDir,omitempty"`
}

// PolicyConfig is the camp's trade policy. The lead-approval flag is
// stamped into each proposal at emit time, so a device with a stale copy
// of this file still folds every trade the same way as everyone else.
type PolicyConfig struct {
	LeadApprovalRequired *bool `yaml:"leadApprovalRequired,omitempty"`
	TradeTTLHours        int   `yaml:"tradeTTLHours,omitempty" validate:"omitempty,min=1"`
}

// CatalogConfig points at the shared reference files.
type CatalogConfig struct {
	ShiftsFile string `yaml:"shiftsFile" validate:"required"`
	RosterFile string `yaml:"rosterFile" validate:"required"`
}

// MeshConfig configures the radio gateway spool.
type MeshConfig struct {
	SpoolDir           string `yaml:"spoolDir,omitempty"`
	RebroadcastSeconds int    `yaml:"rebroadcastSeconds,omitempty" validate:"omitempty,min=1"`
}

// StorageConfig configures the local event store and the optional base
// station archive.
type StorageConfig struct {
	SQLiteFile string `yaml:"sqliteFile,omitempty"`
	ArchiveDSN string `yaml:"archiveDSN,omitempty"`
}

// MetricsConfig configures the sync daemon's prometheus endpoint. An empty
// address disables it.
type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr,omitempty"`
}

// Config represents the application configuration.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Policy  PolicyConfig  `yaml:"policy,omitempty"`
	Catalog CatalogConfig `yaml:"catalog"`
	Mesh    MeshConfig    `yaml:"mesh,omitempty"`
	Storage StorageConfig `yaml:"storage,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from meshrota.yaml.
// It looks for the config file in the current directory first, then in the
// user's home directory.
func Load() (*Config, error) {
	configPath, err := findConfigFile()
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Device.DataDir == "" {
		cfg.Device.DataDir = "."
	}
	if cfg.Policy.LeadApprovalRequired == nil {
		leadRequired := true
		cfg.Policy.LeadApprovalRequired = &leadRequired
	}
	if cfg.Policy.TradeTTLHours == 0 {
		cfg.Policy.TradeTTLHours = 24
	}
	if cfg.Mesh.SpoolDir == "" {
		cfg.Mesh.SpoolDir = "spool"
	}
	if cfg.Mesh.RebroadcastSeconds == 0 {
		cfg.Mesh.RebroadcastSeconds = 60
	}
	if cfg.Storage.SQLiteFile == "" {
		cfg.Storage.SQLiteFile = "events.db"
	}
}

// LeadApprovalRequired resolves the pointer set by applyDefaults.
func (c *Config) LeadApprovalRequired() bool {
	return c.Policy.LeadApprovalRequired == nil || *c.Policy.LeadApprovalRequired
}

// TradeTTL returns the trade time-to-live as a duration.
func (c *Config) TradeTTL() time.Duration {
	return time.Duration(c.Policy.TradeTTLHours) * time.Hour
}

// DigestInterval returns the anti-entropy period for the sync daemon.
func (c *Config) DigestInterval() time.Duration {
	return time.Duration(c.Mesh.RebroadcastSeconds) * time.Second
}

// SQLitePath resolves the event store file against DataDir.
func (c *Config) SQLitePath() string {
	return c.resolve(c.Storage.SQLiteFile)
}

// SpoolPath resolves the gateway spool directory against DataDir.
func (c *Config) SpoolPath() string {
	return c.resolve(c.Mesh.SpoolDir)
}

// ShiftsPath resolves the shift catalog file against DataDir.
func (c *Config) ShiftsPath() string {
	return c.resolve(c.Catalog.ShiftsFile)
}

// RosterPath resolves the roster file against DataDir.
func (c *Config) RosterPath() string {
	return c.resolve(c.Catalog.RosterFile)
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Device.DataDir, path)
}

// findConfigFile searches for meshrota.yaml in current directory and home
// directory.
func findConfigFile() (string, error) {
	configFileName := "meshrota.yaml"

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
