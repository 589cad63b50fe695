// Package config loads agent and sync server settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config is the full configuration of both binaries.
type Config struct {
	Agent     AgentConfig     `mapstructure:"agent"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Network   NetworkConfig   `mapstructure:"network"`
	Documents DocumentsConfig `mapstructure:"documents"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
}

// AgentConfig identifies the field agent.
type AgentConfig struct {
	ID int64 `mapstructure:"id"`
	// Code overrides the derived AGnnn code.
	Code      string `mapstructure:"code"`
	Name      string `mapstructure:"name"`
	SessionID string `mapstructure:"session_id"`
}

// StorageConfig selects the local store.
type StorageConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path"`
}

// RemoteConfig configures the sync endpoint client.
type RemoteConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Compress          bool          `mapstructure:"compress"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// SyncConfig tunes the sync manager.
type SyncConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	AutoStart   bool          `mapstructure:"auto_start"`
	// CleanupDays drops synced documents older than this at startup; 0 keeps them.
	CleanupDays int `mapstructure:"cleanup_days"`
}

// NetworkConfig tunes the connectivity detector.
type NetworkConfig struct {
	CheckInterval    time.Duration `mapstructure:"check_interval"`
	CheckTimeout     time.Duration `mapstructure:"check_timeout"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
}

// DocumentsConfig holds document creation defaults.
type DocumentsConfig struct {
	TaxRate          string           `mapstructure:"tax_rate"`
	ValidityDays     int              `mapstructure:"validity_days"`
	Location         string           `mapstructure:"location"`
	LocationDest     string           `mapstructure:"location_dest"`
	CompanyPartnerID int64            `mapstructure:"company_partner_id"`
	Numbering        string           `mapstructure:"numbering"`
	DeliveryNote     DeliveryDefaults `mapstructure:"delivery_note"`
}

// DeliveryDefaults fill empty transport fields of new delivery notes.
type DeliveryDefaults struct {
	Reason     string `mapstructure:"reason"`
	Appearance string `mapstructure:"appearance"`
	Condition  string `mapstructure:"condition"`
	Method     string `mapstructure:"method"`
	Packages   string `mapstructure:"packages"`
}

// HTTPConfig configures the local API.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ServerConfig configures cmd/syncserver.
type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	DatabaseURL string `mapstructure:"database_url"`
	MaxConns    int32  `mapstructure:"max_conns"`
}

// Storage backends accepted by Validate.
var backends = map[string]bool{"auto": true, "sqlite": true, "badger": true}

// Validate checks the agent settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Agent.ID <= 0 {
		errs = append(errs, errors.New("agent.id must be positive"))
	}
	if !backends[c.Storage.Backend] {
		errs = append(errs, fmt.Errorf("storage.backend %q must be one of auto, sqlite, badger", c.Storage.Backend))
	}
	if c.Remote.BaseURL != "" {
		if u, err := url.Parse(c.Remote.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("remote.base_url %q is not an absolute URL", c.Remote.BaseURL))
		}
	}
	if c.Sync.MaxAttempts <= 0 {
		errs = append(errs, errors.New("sync.max_attempts must be positive"))
	}
	if c.Sync.Interval <= 0 {
		errs = append(errs, errors.New("sync.interval must be positive"))
	}
	if c.Documents.ValidityDays < 0 {
		errs = append(errs, errors.New("documents.validity_days must not be negative"))
	}
	switch c.Documents.Numbering {
	case "strict", "reserved":
	default:
		errs = append(errs, fmt.Errorf("documents.numbering %q must be strict or reserved", c.Documents.Numbering))
	}
	return errors.Join(errs...)
}

// ValidateServer checks the sync server settings.
func (c *Config) ValidateServer() error {
	if c.Server.DatabaseURL == "" {
		return errors.New("server.database_url is required")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	return nil
}
