// Package config manages the ridgebreaker daemon configuration using
// koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete ridgebreaker daemon configuration.
type Config struct {
	Control  ControlConfig     `koanf:"control"`
	Metrics  MetricsConfig     `koanf:"metrics"`
	Log      LogConfig         `koanf:"log"`
	BGP      []BGPPeerConfig   `koanf:"bgp"`
	LDP      []LDPPeerConfig   `koanf:"ldp"`
	ISIS     []ISISIfaceConfig `koanf:"isis"`
}

// ControlConfig holds the JSON control-channel server configuration
// (spec.md §6 "Control channel").
type ControlConfig struct {
	// Addr is the HTTP listen address (e.g., ":8080").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// BGPPeerConfig describes one declarative BGP peer session.
type BGPPeerConfig struct {
	Local        string `koanf:"local"`
	Peer         string `koanf:"peer"`
	RouterID     string `koanf:"router_id"`
	LocalAS      uint32 `koanf:"local_as"`
	HoldTime     uint16 `koanf:"hold_time"`
	StartTraffic bool   `koanf:"start_traffic"`
	RawUpdateFile string `koanf:"raw_update_file"`
}

// SessionKey returns a unique identifier for diffing sessions on reload.
func (bc BGPPeerConfig) SessionKey() string { return bc.Local + "|" + bc.Peer }

// PeerAddr parses Peer as a netip.Addr.
func (bc BGPPeerConfig) PeerAddr() (netip.Addr, error) {
	if bc.Peer == "" {
		return netip.Addr{}, fmt.Errorf("bgp peer: %w", ErrInvalidPeerAddr)
	}
	addr, err := netip.ParseAddr(bc.Peer)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse bgp peer %q: %w", bc.Peer, err)
	}
	return addr, nil
}

// LocalAddr parses Local as a netip.Addr.
func (bc BGPPeerConfig) LocalAddr() (netip.Addr, error) {
	if bc.Local == "" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(bc.Local)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse bgp local %q: %w", bc.Local, err)
	}
	return addr, nil
}

// LDPPeerConfig describes one declarative LDP peer session.
type LDPPeerConfig struct {
	Local         string `koanf:"local"`
	Peer          string `koanf:"peer"`
	LSRID         string `koanf:"lsr_id"`
	KeepaliveTime uint16 `koanf:"keepalive_time"`
	MaxPDULen     uint16 `koanf:"max_pdu_len"`
	StartTraffic  bool   `koanf:"start_traffic"`
	Reconnect     bool   `koanf:"reconnect"`
	RawUpdateFile string `koanf:"raw_update_file"`
}

// SessionKey returns a unique identifier for diffing sessions on reload.
func (lc LDPPeerConfig) SessionKey() string { return lc.Local + "|" + lc.Peer }

// PeerAddr parses Peer as a netip.Addr.
func (lc LDPPeerConfig) PeerAddr() (netip.Addr, error) {
	if lc.Peer == "" {
		return netip.Addr{}, fmt.Errorf("ldp peer: %w", ErrInvalidPeerAddr)
	}
	addr, err := netip.ParseAddr(lc.Peer)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse ldp peer %q: %w", lc.Peer, err)
	}
	return addr, nil
}

// LocalAddr parses Local as a netip.Addr.
func (lc LDPPeerConfig) LocalAddr() (netip.Addr, error) {
	if lc.Local == "" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(lc.Local)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse ldp local %q: %w", lc.Local, err)
	}
	return addr, nil
}

// ISISIfaceConfig describes one configured IS-IS interface (spec.md §4.3
// "for each interface configured to a level mask").
type ISISIfaceConfig struct {
	Interface    string `koanf:"interface"`
	LevelMask    uint8  `koanf:"level_mask"` // 1, 2, or 3 (both)
	Broadcast    bool   `koanf:"broadcast"`
	L1Priority   uint8  `koanf:"l1_priority"`
	L2Priority   uint8  `koanf:"l2_priority"`
	L1Metric     uint32 `koanf:"l1_metric"`
	L2Metric     uint32 `koanf:"l2_metric"`
	AdjacencySID uint32 `koanf:"adjacency_sid"`
	LSPTxWindow  uint16 `koanf:"lsp_tx_window_size"`
}

// SessionKey returns a unique identifier for diffing interfaces on reload.
func (ic ISISIfaceConfig) SessionKey() string { return ic.Interface }

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Control: ControlConfig{
			Addr: ":8080",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for ridgebreaker
// configuration. Variables are named RIDGEBREAKER_<section>_<key>, e.g.,
// RIDGEBREAKER_CONTROL_ADDR.
const envPrefix = "RIDGEBREAKER_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (RIDGEBREAKER_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	RIDGEBREAKER_CONTROL_ADDR -> control.addr
//	RIDGEBREAKER_METRICS_ADDR -> metrics.addr
//	RIDGEBREAKER_METRICS_PATH -> metrics.path
//	RIDGEBREAKER_LOG_LEVEL    -> log.level
//	RIDGEBREAKER_LOG_FORMAT   -> log.format
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms RIDGEBREAKER_CONTROL_ADDR -> control.addr.
// Strips the envPrefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"control.addr": defaults.Control.Addr,
		"metrics.addr": defaults.Metrics.Addr,
		"metrics.path": defaults.Metrics.Path,
		"log.level":    defaults.Log.Level,
		"log.format":   defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyControlAddr indicates the control channel listen address is empty.
	ErrEmptyControlAddr = errors.New("control.addr must not be empty")

	// ErrInvalidPeerAddr indicates a session has an invalid peer address.
	ErrInvalidPeerAddr = errors.New("session peer address is invalid")

	// ErrInvalidLevelMask indicates an IS-IS interface's level mask is outside 1..3.
	ErrInvalidLevelMask = errors.New("isis interface level_mask must be 1, 2, or 3")

	// ErrDuplicateSessionKey indicates two sessions share the same (peer, local) key.
	ErrDuplicateSessionKey = errors.New("duplicate session key")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Control.Addr == "" {
		return ErrEmptyControlAddr
	}

	if err := validateBGP(cfg.BGP); err != nil {
		return err
	}
	if err := validateLDP(cfg.LDP); err != nil {
		return err
	}
	if err := validateISIS(cfg.ISIS); err != nil {
		return err
	}

	return nil
}

func validateBGP(sessions []BGPPeerConfig) error {
	seen := make(map[string]struct{}, len(sessions))
	for i, sc := range sessions {
		if _, err := sc.PeerAddr(); err != nil {
			return fmt.Errorf("bgp[%d]: %w: %w", i, ErrInvalidPeerAddr, err)
		}
		key := sc.SessionKey()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("bgp[%d] key %q: %w", i, key, ErrDuplicateSessionKey)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func validateLDP(sessions []LDPPeerConfig) error {
	seen := make(map[string]struct{}, len(sessions))
	for i, sc := range sessions {
		if _, err := sc.PeerAddr(); err != nil {
			return fmt.Errorf("ldp[%d]: %w: %w", i, ErrInvalidPeerAddr, err)
		}
		key := sc.SessionKey()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("ldp[%d] key %q: %w", i, key, ErrDuplicateSessionKey)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func validateISIS(ifaces []ISISIfaceConfig) error {
	seen := make(map[string]struct{}, len(ifaces))
	for i, ic := range ifaces {
		if ic.LevelMask == 0 || ic.LevelMask > 3 {
			return fmt.Errorf("isis[%d]: %w", i, ErrInvalidLevelMask)
		}
		key := ic.SessionKey()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("isis[%d] key %q: %w", i, key, ErrDuplicateSessionKey)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
