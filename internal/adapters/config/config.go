package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mikey-austin/media_remote/internal/core"
)

// TokenEnv names the environment fallback for the hub token.
const TokenEnv = "MR_HUB_TOKEN"

// Config holds CLI configuration from config.toml.
type Config struct {
	HubURL   string            `toml:"hub_url"`
	Token    string            `toml:"token"`
	Aliases  map[string]string `toml:"aliases"`
	Resolver Resolver          `toml:"resolver"`
	Playback Playback          `toml:"playback"`
}

// Resolver configures logical player resolution.
type Resolver struct {
	Overrides         map[string]string `toml:"overrides"`
	PrimaryPrefix     string            `toml:"primary_prefix"`
	AlternatePrefixes []string          `toml:"alternate_prefixes"`
	StripPrefixes     []string          `toml:"strip_prefixes"`
}

// Playback configures the strategy chain and transfers.
type Playback struct {
	CastMarkers   []string `toml:"cast_markers"`
	GroupMarkers  []string `toml:"group_markers"`
	BridgeEntity  string   `toml:"bridge_entity"`
	ContentScheme string   `toml:"content_scheme"`
	DeepLinkHost  string   `toml:"deep_link_host"`
	WarmupMS      int      `toml:"warmup_ms"`
	GroupWarmupMS int      `toml:"group_warmup_ms"`
	SettleMS      int      `toml:"settle_ms"`
}

// Load loads config.toml if present. Missing file returns an empty config.
func Load() (Config, error) {
	path, err := configPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(path)
}

// LoadFile loads a config file. Missing file returns an empty config.
func LoadFile(path string) (Config, error) {
	var cfg Config
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, err
	case info.IsDir():
		return Config{}, errors.New("config path is a directory")
	default:
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if cfg.Aliases == nil {
		cfg.Aliases = map[string]string{}
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv(TokenEnv)
	}
	return cfg, nil
}

// Core converts the file config into core configuration.
func (c Config) Core() core.Config {
	return core.Config{
		HubURL:   c.HubURL,
		Token:    c.Token,
		Aliases:  c.Aliases,
		Resolver: c.Resolver.Core(),
		Playback: c.Playback.Core(),
	}
}

// Core converts resolver settings.
func (r Resolver) Core() core.ResolverConfig {
	return core.ResolverConfig{
		Overrides:         r.Overrides,
		PrimaryPrefix:     r.PrimaryPrefix,
		AlternatePrefixes: r.AlternatePrefixes,
		StripPrefixes:     r.StripPrefixes,
	}.WithDefaults()
}

// Core converts playback settings.
func (p Playback) Core() core.PlaybackConfig {
	return core.PlaybackConfig{
		CastMarkers:   p.CastMarkers,
		GroupMarkers:  p.GroupMarkers,
		BridgeEntity:  p.BridgeEntity,
		ContentScheme: p.ContentScheme,
		DeepLinkHost:  p.DeepLinkHost,
		Warmup:        millis(p.WarmupMS),
		GroupWarmup:   millis(p.GroupWarmupMS),
		Settle:        millis(p.SettleMS),
	}.WithDefaults()
}

func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func configPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "mr", "config.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mr", "config.toml"), nil
}
