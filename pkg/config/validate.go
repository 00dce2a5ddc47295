package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"p2pmessage/pkg/models"

	"github.com/adhocore/gronx"
)

// access level names accepted under access.operations
var accessLevels = map[string]bool{"unrestricted": true, "peers": true, "none": true}

// fail fast on values the node cannot start with
func ValidateConfig(eff EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("effective config is nil")
	}
	if p := eff.DBPath; p == "" {
		return fmt.Errorf("data path is empty: set --db flag, %sDB_PATH env, or server.db_path in config", envPrefix)
	}

	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if k := strings.TrimSpace(cfg.Node.AgentKey); k != "" {
		if _, err := models.ParseAgentKey(k); err != nil {
			return fmt.Errorf("invalid node.agent_key: %w", err)
		}
	}

	if dsn := strings.TrimSpace(cfg.Store.DSN); dsn != "" {
		scheme, _, ok := strings.Cut(dsn, "://")
		if !ok {
			return fmt.Errorf("invalid store.dsn %q: missing scheme", dsn)
		}
		switch scheme {
		case "pebble", "sqlite", "postgres", "postgresql", "memory":
		default:
			return fmt.Errorf("invalid store.dsn: unsupported scheme %q", scheme)
		}
	}

	seen := make(map[models.AgentKey]bool, len(cfg.Transport.Peers))
	for i, p := range cfg.Transport.Peers {
		agent, err := models.ParseAgentKey(p.Agent)
		if err != nil {
			return fmt.Errorf("transport.peers[%d].agent: %w", i, err)
		}
		if seen[agent] {
			return fmt.Errorf("transport.peers[%d]: duplicate agent %s", i, p.Agent)
		}
		seen[agent] = true
		u, err := url.Parse(p.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("transport.peers[%d].url: %q is not an http(s) url", i, p.URL)
		}
	}

	for op, level := range cfg.Access.Operations {
		if !accessLevels[strings.ToLower(level)] {
			return fmt.Errorf("access.operations.%s: unknown level %q", op, level)
		}
	}

	if cfg.Sensor.DiskLowPct > cfg.Sensor.DiskHighPct {
		return fmt.Errorf("sensor.disk_low_pct (%d) above disk_high_pct (%d)", cfg.Sensor.DiskLowPct, cfg.Sensor.DiskHighPct)
	}

	if cfg.Maintenance.Enabled {
		gron := gronx.New()
		if !gron.IsValid(cfg.Maintenance.Cron) {
			return fmt.Errorf("invalid maintenance.cron: not a valid cron expression")
		}
	}

	return nil
}
