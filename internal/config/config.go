// Package config loads engine configuration from a file plus FIXGATE_*
// environment overrides and converts it to session settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/rsouth/fixgate/internal/fix"
	"github.com/rsouth/fixgate/internal/session"
)

// Config is the top-level engine configuration.
type Config struct {
	LogLevel       string `mapstructure:"log_level"`
	ListenAddress  string `mapstructure:"listen_address"`
	MetricsAddress string `mapstructure:"metrics_address"`

	Store    StoreConfig     `mapstructure:"store"`
	Sessions []SessionConfig `mapstructure:"sessions" validate:"dive"`
}

// StoreConfig selects and parameterises the message store backend.
type StoreConfig struct {
	// Backend is one of memory, file, badger.
	Backend string `mapstructure:"backend" validate:"oneof=memory file badger"`
	// Path is the data directory for the file and badger backends.
	Path string `mapstructure:"path"`
}

// SessionConfig is the file form of one session's settings.
type SessionConfig struct {
	BeginString  string `mapstructure:"begin_string" validate:"required"`
	SenderCompID string `mapstructure:"sender_comp_id" validate:"required"`
	TargetCompID string `mapstructure:"target_comp_id" validate:"required"`
	// Role is initiator or acceptor.
	Role    string `mapstructure:"role" validate:"oneof=initiator acceptor"`
	Address string `mapstructure:"address"`

	HeartbeatSeconds int  `mapstructure:"heartbeat_seconds"`
	ResetOnLogon     bool `mapstructure:"reset_on_logon"`

	// ActiveStart/ActiveEnd are optional HH:MM[:SS] UTC wall-clock bounds.
	ActiveStart string `mapstructure:"active_start"`
	ActiveEnd   string `mapstructure:"active_end"`

	ReconnectSeconds int `mapstructure:"reconnect_seconds"`
}

var validate = validator.New()

// Load reads the config file at path (any format viper understands) with
// environment overrides applied.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("FIXGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("listen_address", ":9876")
	v.SetDefault("metrics_address", ":9102")
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", "data")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	if cfg.Store.Backend != "memory" && cfg.Store.Path == "" {
		return nil, fmt.Errorf("config: store.path required for backend %q", cfg.Store.Backend)
	}
	return &cfg, nil
}

// Settings converts one session entry into validated session settings.
func (sc SessionConfig) Settings() (session.Settings, error) {
	role := session.Initiator
	if sc.Role == "acceptor" {
		role = session.Acceptor
	}
	heartbeat := 30 * time.Second
	if sc.HeartbeatSeconds > 0 {
		heartbeat = time.Duration(sc.HeartbeatSeconds) * time.Second
	}
	s := session.Settings{
		BeginString:       fix.BeginString(sc.BeginString),
		SenderCompID:      sc.SenderCompID,
		TargetCompID:      sc.TargetCompID,
		Role:              role,
		Address:           sc.Address,
		HeartbeatInterval: heartbeat,
		ResetOnLogon:      sc.ResetOnLogon,
		ReconnectInterval: time.Duration(sc.ReconnectSeconds) * time.Second,
	}
	if sc.ActiveStart != "" || sc.ActiveEnd != "" {
		start, err := session.ParseTimeOfDay(sc.ActiveStart)
		if err != nil {
			return session.Settings{}, fmt.Errorf("config: active_start: %w", err)
		}
		end, err := session.ParseTimeOfDay(sc.ActiveEnd)
		if err != nil {
			return session.Settings{}, fmt.Errorf("config: active_end: %w", err)
		}
		s.Window = &session.ActiveWindow{Start: start, End: end}
	}
	if role == session.Initiator && s.Address == "" {
		return session.Settings{}, fmt.Errorf("config: initiator session %s-%s requires address",
			sc.SenderCompID, sc.TargetCompID)
	}
	if err := s.Validate(); err != nil {
		return session.Settings{}, err
	}
	return s, nil
}
