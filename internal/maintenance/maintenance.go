// Package maintenance runs scheduled compaction of the local log.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"p2pmessage/pkg/state"
	"p2pmessage/pkg/state/logger"
	"p2pmessage/pkg/store"
	"p2pmessage/pkg/timeutil"

	"github.com/adhocore/gronx"
	"github.com/dustin/go-humanize"
)

// ErrBusy is returned by RunNow while another run is in progress.
var ErrBusy = errors.New("maintenance run already in progress")

type Options struct {
	Cron string
	Log  store.Log
	// DiskPath is where free space is measured; empty skips the disk report.
	DiskPath string
	Clock    timeutil.Clock
}

// Report describes one finished run.
type Report struct {
	RunID      string
	Compacted  bool
	Took       time.Duration
	SizeBefore uint64
	SizeAfter  uint64
}

type Manager struct {
	cron     string
	log      store.Log
	diskPath string
	clock    timeutil.Clock
	usage    func(string) (state.DiskUsage, error)

	mu      sync.Mutex
	running bool
	last    Report
}

func New(opts Options) (*Manager, error) {
	if opts.Log == nil {
		return nil, fmt.Errorf("maintenance: log is required")
	}
	if !gronx.New().IsValid(opts.Cron) {
		return nil, fmt.Errorf("maintenance: invalid cron %q", opts.Cron)
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.System
	}
	return &Manager{
		cron:     opts.Cron,
		log:      opts.Log,
		diskPath: opts.DiskPath,
		clock:    opts.Clock,
		usage:    state.DiskUsageAt,
	}, nil
}

// Start runs the schedule until ctx is cancelled or the returned cancel is called.
func (m *Manager) Start(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	logger.Info("maintenance_enabled", "cron", m.cron)
	go m.scheduleLoop(ctx)
	return cancel
}

// nextWait is how long until the next tick after now.
func (m *Manager) nextWait(now time.Time) (time.Duration, error) {
	next, err := gronx.NextTickAfter(m.cron, now, false)
	if err != nil {
		return 0, err
	}
	return next.Sub(now), nil
}

func (m *Manager) scheduleLoop(ctx context.Context) {
	for {
		wait, err := m.nextWait(m.clock.Now())
		if err != nil {
			logger.Error("maintenance_nexttick_failed", "cron", m.cron, "error", err)
			wait = 30 * time.Second
		} else if wait <= 0 {
			wait = time.Second
		}

		select {
		case <-time.After(wait):
			if err == nil {
				if _, err := m.RunNow(ctx); err != nil && !errors.Is(err, ErrBusy) {
					logger.Error("maintenance_run_error", "error", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// RunNow compacts the log if its backend supports it. Overlapping runs are
// refused with ErrBusy.
func (m *Manager) RunNow(ctx context.Context) (Report, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return Report{}, ErrBusy
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	started := m.clock.Now()
	rep := Report{RunID: fmt.Sprintf("run-%d", started.UnixNano())}
	logger.Info("maintenance_run_start", "run_id", rep.RunID)

	sizer, hasSize := m.log.(store.Sizer)
	if hasSize {
		rep.SizeBefore = sizer.DiskUsage()
	}
	if c, ok := m.log.(store.Compactor); ok {
		if err := c.Compact(ctx); err != nil {
			return rep, fmt.Errorf("compact: %w", err)
		}
		rep.Compacted = true
	} else {
		logger.Debug("maintenance_compaction_unsupported", "run_id", rep.RunID)
	}
	if hasSize {
		rep.SizeAfter = sizer.DiskUsage()
	}
	rep.Took = m.clock.Now().Sub(started)

	args := []any{
		"run_id", rep.RunID,
		"compacted", rep.Compacted,
		"took", rep.Took,
		"size_before", humanize.IBytes(rep.SizeBefore),
		"size_after", humanize.IBytes(rep.SizeAfter),
	}
	if m.diskPath != "" {
		if du, err := m.usage(m.diskPath); err == nil {
			args = append(args, "disk_free", humanize.IBytes(du.Free))
		}
	}
	logger.Info("maintenance_run_done", args...)

	m.mu.Lock()
	m.last = rep
	m.mu.Unlock()
	return rep, nil
}

// Last returns the most recent completed run.
func (m *Manager) Last() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
