package mrd

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mikey-austin/media_remote/internal/adapters/config"
	"github.com/mikey-austin/media_remote/internal/core"
)

// Config is the top-level configuration for mrd.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Core    CoreConfig    `toml:"core"`
	Modules ModulesConfig `toml:"modules"`
}

// ServerConfig defines shared server settings.
type ServerConfig struct {
	HubURL    string     `toml:"hub_url"`
	HubToken  string     `toml:"hub_token"`
	RetryMS   int64      `toml:"hub_retry_ms"`
	Broker    string     `toml:"broker"`
	Identity  string     `toml:"identity"`
	TopicBase string     `toml:"topic_base"`
	LogLevel  string     `toml:"log_level"`
	LogFormat string     `toml:"log_format"`
	LogOutput string     `toml:"log_output"`
	LogSource bool       `toml:"log_source"`
	LogUTC    bool       `toml:"log_utc"`
	LogColor  bool       `toml:"log_color"`
	TLS       TLSConfig  `toml:"tls"`
	Auth      AuthConfig `toml:"auth"`
}

// TLSConfig holds TLS paths for MQTT.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// CoreConfig holds resolver and playback tuning, in the same shape as the
// CLI config file.
type CoreConfig struct {
	Aliases  map[string]string `toml:"aliases"`
	Resolver config.Resolver   `toml:"resolver"`
	Playback config.Playback   `toml:"playback"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	Bridge       BridgeConfig       `toml:"bridge"`
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
}

// BridgeConfig configures the MQTT bridge module.
type BridgeConfig struct {
	Enabled      bool   `toml:"enabled"`
	NodeID       string `toml:"node_id"`
	Name         string `toml:"name"`
	VolumeLockMS int64  `toml:"volume_lock_ms"`
	ToggleLockMS int64  `toml:"toggle_lock_ms"`
	TickMS       int64  `toml:"tick_ms"`
	VisibleTTLMS int64  `toml:"visible_ttl_ms"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool               `toml:"enabled"`
	Listen         string             `toml:"listen"`
	AllowAnonymous bool               `toml:"allow_anonymous"`
	Username       string             `toml:"username"`
	Password       string             `toml:"password"`
	Clients        []ClientCredential `toml:"clients"`
	TLSCA          string             `toml:"tls_ca"`
	TLSCert        string             `toml:"tls_cert"`
	TLSKey         string             `toml:"tls_key"`
}

// ClientCredential is a presentation client login for the embedded broker.
type ClientCredential struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// CoreSettings converts the [core] section and hub settings into core
// configuration.
func (c Config) CoreSettings() core.Config {
	aliases := c.Core.Aliases
	if aliases == nil {
		aliases = map[string]string{}
	}
	return core.Config{
		HubURL:   c.Server.HubURL,
		Token:    c.Server.HubToken,
		Aliases:  aliases,
		Resolver: c.Core.Resolver.Core(),
		Playback: c.Core.Playback.Core(),
	}
}

// ControlsSettings returns the bridge control lock windows.
func (b BridgeConfig) ControlsSettings() core.ControlsConfig {
	return core.ControlsConfig{
		VolumeLock: time.Duration(b.VolumeLockMS) * time.Millisecond,
		ToggleLock: time.Duration(b.ToggleLockMS) * time.Millisecond,
	}.WithDefaults()
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Server.HubToken == "" {
		cfg.Server.HubToken = os.Getenv(config.TokenEnv)
	}
	return cfg, nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "mr", "mrd.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mr", "mrd.toml"), nil
}
