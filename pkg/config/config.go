package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 7420
	defaultDBPath         = "./data"
	defaultMaxRequestBody = 32 * 1024 * 1024 // file payloads travel inline
	defaultStoreCacheSize = 64 * 1024 * 1024

	defaultTransportTimeout = 10 * time.Second
	defaultMaxConnsPerPeer  = 16

	defaultRateRPS   = 50
	defaultRateBurst = 100

	defaultEventsAddress = "127.0.0.1:7421"
	defaultEventsBuffer  = 64

	defaultMaintenanceCron = "0 3 * * *" // daily at 03:00

	defaultSensorPollInterval   = 30 * time.Second
	defaultSensorDiskHighPct    = 90
	defaultSensorDiskLowPct     = 80
	defaultSensorRecoveryWindow = 5 * time.Minute

	defaultTelemetryFlush     = 2 * time.Second
	defaultTelemetryMaxFile   = 16 * 1024 * 1024
	defaultTelemetryQueueSize = 1024
)

// Addr returns the HTTP server address as host:port.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	port := c.Server.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// SyncWrites reports whether appends fsync before returning. Defaults to true.
func (c *Config) SyncWrites() bool {
	if c.Store.SyncWrites == nil {
		return true
	}
	return *c.Store.SyncWrites
}

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills in every unset value.
func (c *Config) ApplyDefaults() {
	if c.Server.DBPath == "" {
		c.Server.DBPath = defaultDBPath
	}
	if c.Server.MaxRequestBody <= 0 {
		c.Server.MaxRequestBody = SizeBytes(defaultMaxRequestBody)
	}
	if c.Store.CacheSize <= 0 {
		c.Store.CacheSize = SizeBytes(defaultStoreCacheSize)
	}
	if c.Transport.Timeout.Duration() <= 0 {
		c.Transport.Timeout = Duration(defaultTransportTimeout)
	}
	if c.Transport.MaxConnsPerPeer <= 0 {
		c.Transport.MaxConnsPerPeer = defaultMaxConnsPerPeer
	}
	if c.Security.RateLimit.RPS <= 0 {
		c.Security.RateLimit.RPS = defaultRateRPS
	}
	if c.Security.RateLimit.Burst <= 0 {
		c.Security.RateLimit.Burst = defaultRateBurst
	}
	if c.Events.Address == "" {
		c.Events.Address = defaultEventsAddress
	}
	if c.Events.Buffer <= 0 {
		c.Events.Buffer = defaultEventsBuffer
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Maintenance.Cron == "" {
		c.Maintenance.Cron = defaultMaintenanceCron
	}
	if c.Sensor.PollInterval.Duration() == 0 {
		c.Sensor.PollInterval = Duration(defaultSensorPollInterval)
	}
	if c.Sensor.DiskHighPct == 0 {
		c.Sensor.DiskHighPct = defaultSensorDiskHighPct
	}
	if c.Sensor.DiskLowPct == 0 {
		c.Sensor.DiskLowPct = defaultSensorDiskLowPct
	}
	if c.Sensor.RecoveryWindow.Duration() == 0 {
		c.Sensor.RecoveryWindow = Duration(defaultSensorRecoveryWindow)
	}
	if c.Telemetry.FlushInterval.Duration() <= 0 {
		c.Telemetry.FlushInterval = Duration(defaultTelemetryFlush)
	}
	if c.Telemetry.MaxFileSize <= 0 {
		c.Telemetry.MaxFileSize = SizeBytes(defaultTelemetryMaxFile)
	}
	if c.Telemetry.QueueSize <= 0 {
		c.Telemetry.QueueSize = defaultTelemetryQueueSize
	}
}

// StoreDSN resolves the log DSN, defaulting to pebble under the state store dir.
func (c *Config) StoreDSN(storeDir string) string {
	dsn := strings.TrimSpace(c.Store.DSN)
	if dsn == "" || dsn == "pebble://" {
		return "pebble://" + storeDir
	}
	return dsn
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv(envPrefix + "CONFIG"); p != "" {
		return p
	}
	return flagPath
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
