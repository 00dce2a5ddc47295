package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/valyala/fasthttp"

	"p2pmessage/internal/maintenance"
	"p2pmessage/pkg/api"
	"p2pmessage/pkg/assembly"
	"p2pmessage/pkg/config"
	"p2pmessage/pkg/delivery"
	"p2pmessage/pkg/models"
	"p2pmessage/pkg/signals"
	"p2pmessage/pkg/state"
	"p2pmessage/pkg/state/logger"
	"p2pmessage/pkg/state/sensor"
	"p2pmessage/pkg/state/telemetry"
	"p2pmessage/pkg/store"
	"p2pmessage/pkg/transport"
)

// App wires one node: log, engines, transport, HTTP surfaces and background jobs.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string
	paths     state.Paths

	self   models.AgentKey
	log    store.Log
	hub    *signals.Hub
	coord  *delivery.Coordinator
	api    *api.Server
	maint  *maintenance.Manager
	sensor *sensor.Sensor
	tel    *telemetry.Telemetry

	maintCancel context.CancelFunc
	srvFast     *fasthttp.Server
	events      *http.Server

	mu    sync.Mutex
	state string
}

// New opens the log and builds every component. Nothing listens until Run.
// Callers run state.Init first.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	if err := config.ValidateConfig(eff); err != nil {
		return nil, err
	}
	paths := state.PathsVar
	if paths.Store == "" {
		return nil, fmt.Errorf("state paths not initialized")
	}
	cfg := eff.Config

	self, err := resolveIdentity(cfg.Node, paths.Identity)
	if err != nil {
		return nil, err
	}

	dsn := cfg.StoreDSN(paths.Store)
	log, err := store.Open(context.Background(), dsn, store.Options{
		SyncWrites: cfg.SyncWrites(),
		CacheSize:  cfg.Store.CacheSize.Int64(),
	})
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", redactDSN(dsn), err)
	}
	logger.Info("log_opened", "backend", schemeOf(dsn))

	a, err := build(eff, self, log, paths, version)
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	a.commit, a.buildDate = commit, buildDate
	return a, nil
}

func build(eff config.EffectiveConfigResult, self models.AgentKey, log store.Log, paths state.Paths, version string) (*App, error) {
	cfg := eff.Config
	dir, err := transport.DirectoryFromConfig(cfg.Transport.Peers)
	if err != nil {
		return nil, err
	}
	policy, err := transport.PolicyFromConfig(cfg.Access.Operations)
	if err != nil {
		return nil, err
	}

	var tel *telemetry.Telemetry
	if cfg.Telemetry.Enabled {
		tel, err = telemetry.New(paths.Telemetry, telemetry.Options{
			FlushInterval: cfg.Telemetry.FlushInterval.Duration(),
			MaxFileSize:   cfg.Telemetry.MaxFileSize.Int64(),
			QueueSize:     cfg.Telemetry.QueueSize,
		})
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		logger.Info("telemetry_enabled", "dir", paths.Telemetry)
	}

	hub := signals.NewHub(cfg.Events.Buffer)
	client := transport.NewClient(self, dir, transport.ClientOptions{
		Timeout:         cfg.Transport.Timeout.Duration(),
		MaxConnsPerPeer: cfg.Transport.MaxConnsPerPeer,
	})
	coord := delivery.New(delivery.Options{Self: self, Log: log, Invoker: client, Emitter: hub, Telemetry: tel})

	a := &App{eff: eff, version: version, paths: paths, self: self, log: log, hub: hub, coord: coord, tel: tel, state: "initialized"}
	a.api = api.New(api.Deps{
		Assembler: assembly.New(log, self, nil),
		Messenger: coord,
		Directory: dir,
		Policy:    policy,
		Hub:       hub,
		Log:       log,
		APIKeys:   cfg.Security.APIKeys,
		RateLimit: api.RateLimit{RPS: cfg.Security.RateLimit.RPS, Burst: cfg.Security.RateLimit.Burst},
		NodeName:  cfg.Node.Name,
		Version:   version,
		Ready:     a.ready,
	})

	if cfg.Maintenance.Enabled {
		m, err := maintenance.New(maintenance.Options{Cron: cfg.Maintenance.Cron, Log: log, DiskPath: paths.Store})
		if err != nil {
			tel.Close()
			return nil, err
		}
		a.maint = m
	} else {
		logger.Info("maintenance_disabled")
	}

	a.sensor = sensor.New(sensor.Config{
		Path:           paths.Store,
		PollInterval:   cfg.Sensor.PollInterval.Duration(),
		DiskHighPct:    cfg.Sensor.DiskHighPct,
		DiskLowPct:     cfg.Sensor.DiskLowPct,
		RecoveryWindow: cfg.Sensor.RecoveryWindow.Duration(),
	}, nil)
	return a, nil
}

func resolveIdentity(node config.NodeConfig, dir string) (models.AgentKey, error) {
	if k := strings.TrimSpace(node.AgentKey); k != "" {
		return models.ParseAgentKey(k)
	}
	key, created, err := state.LoadOrCreateAgentKey(dir)
	if err != nil {
		return models.AgentKey{}, err
	}
	if created {
		logger.Info("identity_generated", "agent", key.String())
	}
	return key, nil
}

// Run starts the servers and background jobs, then blocks until ctx is
// cancelled or a server fails.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	if a.maint != nil {
		a.maintCancel = a.maint.Start(ctx)
	}
	a.sensor.Start()

	errCh := a.startHTTP(ctx)
	a.setState("running")
	logger.Info("node_started", "agent", a.self.Short(), "addr", a.eff.Addr)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) Self() models.AgentKey { return a.self }

func (a *App) setState(s string) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// ready backs /readyz.
func (a *App) ready() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != "running" {
		return fmt.Errorf("node is %s", a.state)
	}
	if a.sensor != nil && a.sensor.Degraded() {
		return fmt.Errorf("disk usage %.0f%% above high watermark", a.sensor.Last().UsedPct())
	}
	return nil
}

func schemeOf(dsn string) string {
	scheme, _, _ := strings.Cut(dsn, "://")
	return scheme
}

// redactDSN hides credentials in postgres DSNs before logging.
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***@" + rest[at+1:]
	}
	return dsn
}
