package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"p2pmessage/pkg/config"
	"p2pmessage/pkg/models"
	"p2pmessage/pkg/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEff(t *testing.T) config.EffectiveConfigResult {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, state.Init(root))

	cfg := &config.Config{}
	cfg.Server.Address = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.DBPath = state.PathsVar.Root
	cfg.Store.DSN = "memory://"
	cfg.Maintenance.Enabled = true
	cfg.Telemetry.Enabled = true
	cfg.Sensor.DiskHighPct = 100
	cfg.ApplyDefaults()
	return config.EffectiveConfigResult{Config: cfg, Addr: "127.0.0.1:0", DBPath: state.PathsVar.Root, Source: "defaults"}
}

func TestNewRunShutdown(t *testing.T) {
	eff := testEff(t)
	a, err := New(eff, "test", "abc123", "today")
	require.NoError(t, err)
	assert.False(t, a.Self().IsZero())
	assert.Error(t, a.ready())

	// the generated identity is persisted and reused
	raw, err := os.ReadFile(filepath.Join(state.PathsVar.Identity, "agent.key"))
	require.NoError(t, err)
	key, err := models.ParseAgentKey(string(raw[:64]))
	require.NoError(t, err)
	assert.Equal(t, a.Self(), key)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	require.Eventually(t, func() bool { return a.ready() == nil }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	require.NoError(t, a.Shutdown(sctx))
	assert.ErrorContains(t, a.ready(), "stopped")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	eff := testEff(t)
	eff.Config.Store.DSN = "floppy://a"
	_, err := New(eff, "test", "none", "unknown")
	require.Error(t, err)
}

func TestResolveIdentityFromConfig(t *testing.T) {
	want := "0101010101010101010101010101010101010101010101010101010101010101"
	key, err := resolveIdentity(config.NodeConfig{AgentKey: want}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, want, key.String())

	_, err = resolveIdentity(config.NodeConfig{AgentKey: "nope"}, t.TempDir())
	assert.Error(t, err)
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://***@db:5432/p2p", redactDSN("postgres://user:pw@db:5432/p2p"))
	assert.Equal(t, "pebble:///data/store", redactDSN("pebble:///data/store"))
	assert.Equal(t, "sqlite", schemeOf("sqlite:///x.db"))
}
