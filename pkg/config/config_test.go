package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
node:
  name: laptop
server:
  address: 127.0.0.1
  port: 9000
  db_path: /var/lib/p2pmessage
  max_request_body: 8MB
store:
  dsn: sqlite:///var/lib/p2pmessage/log.db
transport:
  timeout: 2500ms
  peers:
    - agent: 0101010101010101010101010101010101010101010101010101010101010101
      url: http://10.0.0.2:7420
access:
  operations:
    typing: none
maintenance:
  enabled: true
  cron: "*/5 * * * *"
`

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParseConfigYAML(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "laptop", cfg.Node.Name)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, SizeBytes(8_000_000), cfg.Server.MaxRequestBody)
	assert.Equal(t, 2500*time.Millisecond, cfg.Transport.Timeout.Duration())
	require.Len(t, cfg.Transport.Peers, 1)
	assert.Equal(t, "none", cfg.Access.Operations["typing"])
}

func TestEffectiveConfigPrecedence(t *testing.T) {
	fileCfg, err := ParseConfig([]byte(sampleYAML))
	require.NoError(t, err)

	tests := []struct {
		name       string
		flags      Flags
		env        map[string]string
		wantAddr   string
		wantDB     string
		wantSource string
	}{
		{
			name:       "file only",
			flags:      Flags{Set: map[string]bool{}},
			wantAddr:   "127.0.0.1:9000",
			wantDB:     "/var/lib/p2pmessage",
			wantSource: "config",
		},
		{
			name:       "env overrides file",
			flags:      Flags{Set: map[string]bool{}},
			env:        map[string]string{"P2PMESSAGE_ADDR": "0.0.0.0:7000", "P2PMESSAGE_DB_PATH": "/tmp/x"},
			wantAddr:   "0.0.0.0:7000",
			wantDB:     "/tmp/x",
			wantSource: "env",
		},
		{
			name:       "flags override env",
			flags:      Flags{Addr: ":8088", DB: "/srv/p2p", Set: map[string]bool{"addr": true, "db": true}},
			env:        map[string]string{"P2PMESSAGE_ADDR": "0.0.0.0:7000"},
			wantAddr:   "0.0.0.0:8088",
			wantDB:     "/srv/p2p",
			wantSource: "flags",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff, err := LoadEffectiveConfig(tt.flags, fileCfg, true, envMap(tt.env))
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, eff.Addr)
			assert.Equal(t, tt.wantDB, eff.DBPath)
			assert.Equal(t, tt.wantSource, eff.Source)
			require.NoError(t, ValidateConfig(eff))
		})
	}
}

func TestEffectiveConfigDefaults(t *testing.T) {
	eff, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, &Config{}, false, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "defaults", eff.Source)
	assert.Equal(t, "0.0.0.0:7420", eff.Addr)
	assert.Equal(t, defaultTransportTimeout, eff.Config.Transport.Timeout.Duration())
	assert.True(t, eff.Config.SyncWrites())
	assert.Equal(t, "pebble:///data/store", eff.Config.StoreDSN("/data/store"))
	require.NoError(t, ValidateConfig(eff))
}

func TestMissingExplicitConfigFile(t *testing.T) {
	_, err := LoadEffectiveConfig(Flags{Config: "nope.yaml", Set: map[string]bool{"config": true}}, &Config{}, false, envMap(nil))
	require.Error(t, err)
}

func TestApplyEnvsPeersAndErrors(t *testing.T) {
	cfg := &Config{}
	res, err := ApplyEnvs(cfg, envMap(map[string]string{
		"P2PMESSAGE_PEERS":             "0202020202020202020202020202020202020202020202020202020202020202=http://peer:7420",
		"P2PMESSAGE_STORE_SYNC_WRITES": "false",
	}))
	require.NoError(t, err)
	assert.True(t, res.EnvUsed)
	require.Len(t, cfg.Transport.Peers, 1)
	assert.Equal(t, "http://peer:7420", cfg.Transport.Peers[0].URL)
	assert.False(t, cfg.SyncWrites())

	_, err = ApplyEnvs(&Config{}, envMap(map[string]string{"P2PMESSAGE_RATE_BURST": "lots"}))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "P2PMESSAGE_RATE_BURST"))
}

func TestValidateConfigRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad agent key", func(c *Config) { c.Node.AgentKey = "zz" }},
		{"bad dsn scheme", func(c *Config) { c.Store.DSN = "mysql://x" }},
		{"peer url", func(c *Config) {
			c.Transport.Peers = []PeerConfig{{Agent: strings.Repeat("03", 32), URL: "ftp://x"}}
		}},
		{"access level", func(c *Config) { c.Access.Operations = map[string]string{"typing": "sometimes"} }},
		{"cron", func(c *Config) { c.Maintenance.Enabled = true; c.Maintenance.Cron = "every day" }},
		{"tls half", func(c *Config) { c.Server.TLS.CertFile = "cert.pem" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)
			err := ValidateConfig(EffectiveConfigResult{Config: cfg, DBPath: cfg.Server.DBPath})
			require.Error(t, err)
		})
	}
}
