package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Node        NodeConfig        `yaml:"node"`
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Transport   TransportConfig   `yaml:"transport"`
	Access      AccessConfig      `yaml:"access"`
	Security    SecurityConfig    `yaml:"security"`
	Events      EventsConfig      `yaml:"events"`
	Logging     LoggingConfig     `yaml:"logging"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// NodeConfig identifies this device. An empty agent key means one is
// generated under the state dir on first start.
type NodeConfig struct {
	AgentKey string `yaml:"agent_key"`
	Name     string `yaml:"name"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address        string    `yaml:"address"`
	Port           int       `yaml:"port"`
	DBPath         string    `yaml:"db_path"`
	MaxRequestBody SizeBytes `yaml:"max_request_body"`
	TLS            TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// StoreConfig selects the log backend by DSN: pebble://, sqlite://, postgres://, memory://.
type StoreConfig struct {
	DSN        string    `yaml:"dsn"`
	SyncWrites *bool     `yaml:"sync_writes"`
	CacheSize  SizeBytes `yaml:"cache_size"`
}

// TransportConfig holds the peer directory and remote call limits.
type TransportConfig struct {
	Timeout         Duration     `yaml:"timeout"`
	MaxConnsPerPeer int          `yaml:"max_conns_per_peer"`
	Peers           []PeerConfig `yaml:"peers"`
}

type PeerConfig struct {
	Agent string `yaml:"agent"`
	URL   string `yaml:"url"`
}

// AccessConfig maps peer-callable operation names onto access levels
// (unrestricted, peers, none).
type AccessConfig struct {
	Operations map[string]string `yaml:"operations"`
}

// SecurityConfig guards the local client API and the peer endpoint.
type SecurityConfig struct {
	APIKeys   []string `yaml:"api_keys"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// EventsConfig configures the websocket signal stream listener.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Buffer  int    `yaml:"buffer"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MaintenanceConfig schedules log compaction.
type MaintenanceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// SensorConfig holds disk watch tuning knobs.
type SensorConfig struct {
	PollInterval   Duration `yaml:"poll_interval"`
	DiskHighPct    int      `yaml:"disk_high_pct"`
	DiskLowPct     int      `yaml:"disk_low_pct"`
	RecoveryWindow Duration `yaml:"recovery_window"`
}

// TelemetryConfig controls per-operation step timing traces written under state/telemetry.
type TelemetryConfig struct {
	Enabled       bool      `yaml:"enabled"`
	FlushInterval Duration  `yaml:"flush_interval"`
	MaxFileSize   SizeBytes `yaml:"max_file_size"`
	QueueSize     int       `yaml:"queue_size"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	v, err := ParseSizeBytes(node.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseSizeBytes(raw string) (SizeBytes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		return SizeBytes(v), nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return SizeBytes(i), nil
	}
	return 0, fmt.Errorf("invalid size value: %q", raw)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	v, err := ParseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func ParseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		return Duration(td), nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(f * float64(time.Second))), nil
	}
	return 0, fmt.Errorf("invalid duration value: %q", raw)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
