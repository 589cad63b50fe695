package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. RACCOLTA_AGENT_ID.
const EnvPrefix = "RACCOLTA"

// Load reads configPath (optional; empty skips the file), then applies
// RACCOLTA_* environment overrides over the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.id", 0)
	v.SetDefault("agent.code", "")
	v.SetDefault("agent.name", "")
	v.SetDefault("agent.session_id", "")

	v.SetDefault("storage.backend", "auto")
	v.SetDefault("storage.sqlite_path", "data/raccolta.db")
	v.SetDefault("storage.badger_path", "data/badger")

	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("remote.compress", true)
	v.SetDefault("remote.requests_per_second", 10.0)
	v.SetDefault("remote.burst", 1)

	v.SetDefault("sync.interval", 30*time.Second)
	v.SetDefault("sync.max_attempts", 3)
	v.SetDefault("sync.auto_start", true)
	v.SetDefault("sync.cleanup_days", 0)

	v.SetDefault("network.check_interval", 15*time.Second)
	v.SetDefault("network.check_timeout", 5*time.Second)
	v.SetDefault("network.failure_threshold", 2)

	v.SetDefault("documents.tax_rate", "0.22")
	v.SetDefault("documents.validity_days", 30)
	v.SetDefault("documents.location", "stock")
	v.SetDefault("documents.location_dest", "customer")
	v.SetDefault("documents.company_partner_id", 1)
	v.SetDefault("documents.numbering", "strict")
	v.SetDefault("documents.delivery_note.reason", "Vendita")
	v.SetDefault("documents.delivery_note.appearance", "Colli N.1")
	v.SetDefault("documents.delivery_note.condition", "Porto Assegnato")
	v.SetDefault("documents.delivery_note.method", "Destinatario")
	v.SetDefault("documents.delivery_note.packages", "1")

	v.SetDefault("http.addr", "127.0.0.1:8069")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("server.addr", ":8070")
	v.SetDefault("server.database_url", "")
	v.SetDefault("server.max_conns", 10)
}
