package sensor

import (
	"sync"
	"time"

	"p2pmessage/pkg/state"
	"p2pmessage/pkg/state/logger"
	"p2pmessage/pkg/timeutil"

	"github.com/dustin/go-humanize"
)

// Sensor watches free space on the volume holding the local log.
type Sensor struct {
	config   Config
	clock    timeutil.Clock
	usage    func(string) (state.DiskUsage, error)
	stopCh   chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	diskAlert bool
	lastAlert time.Time
	last      state.DiskUsage
}

type Config struct {
	Path           string
	PollInterval   time.Duration
	DiskHighPct    int
	DiskLowPct     int
	RecoveryWindow time.Duration
}

func New(cfg Config, clock timeutil.Clock) *Sensor {
	if clock == nil {
		clock = timeutil.System
	}
	return &Sensor{
		config: cfg,
		clock:  clock,
		usage:  state.DiskUsageAt,
		stopCh: make(chan struct{}),
	}
}

func (s *Sensor) Start() {
	if s.config.PollInterval <= 0 {
		return
	}
	s.Check()
	go s.run()
}

func (s *Sensor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// Degraded is true while disk usage sits above the high watermark.
func (s *Sensor) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diskAlert
}

func (s *Sensor) Last() state.DiskUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Sensor) run() {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Check()
		case <-s.stopCh:
			return
		}
	}
}

// Check samples disk usage once and updates the alert state.
func (s *Sensor) Check() {
	now := s.clock.Now()
	du, err := s.usage(s.config.Path)
	if err != nil {
		logger.Error("disk_stat_failed", "path", s.config.Path, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = du
	usedPct := du.UsedPct()

	if usedPct > float64(s.config.DiskHighPct) {
		if !s.diskAlert {
			logger.Warn("disk_usage_high", "usage_pct", usedPct, "free", humanize.IBytes(du.Free), "threshold", s.config.DiskHighPct)
			s.diskAlert = true
		}
		s.lastAlert = now
		return
	}
	if s.diskAlert && usedPct < float64(s.config.DiskLowPct) && now.Sub(s.lastAlert) >= s.config.RecoveryWindow {
		logger.Info("disk_usage_recovered", "usage_pct", usedPct, "free", humanize.IBytes(du.Free), "threshold", s.config.DiskLowPct)
		s.diskAlert = false
	}
}
