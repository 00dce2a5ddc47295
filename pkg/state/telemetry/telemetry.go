// Package telemetry records step timings of node operations as JSON lines,
// one file per operation name.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"p2pmessage/pkg/state/logger"
	"p2pmessage/pkg/timeutil"
)

const bufferSize = 64 * 1024

type Step struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration_ms"`
}

type Trace struct {
	Name    string    `json:"name"`
	Start   time.Time `json:"start"`
	Steps   []Step    `json:"steps"`
	TotalMS float64   `json:"total_ms"`
	Outcome string    `json:"outcome,omitempty"`

	lastMark time.Time
	tel      *Telemetry
}

type Options struct {
	FlushInterval time.Duration
	MaxFileSize   int64
	QueueSize     int
	Clock         timeutil.Clock
}

// Telemetry owns the trace files and the goroutine that writes them.
type Telemetry struct {
	dir     string
	opts    Options
	traces  chan *Trace
	stopCh  chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// touched only by writerLoop
	files   map[string]*os.File
	buffers map[string]*bufio.Writer
}

func New(dir string, opts Options) (*Telemetry, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.System
	}
	t := &Telemetry{
		dir:     dir,
		opts:    opts,
		traces:  make(chan *Trace, opts.QueueSize),
		stopCh:  make(chan struct{}),
		files:   make(map[string]*os.File),
		buffers: make(map[string]*bufio.Writer),
	}
	t.wg.Add(1)
	go t.writerLoop()
	return t, nil
}

// Track starts a trace. A nil Telemetry hands out traces that record nothing.
func (t *Telemetry) Track(name string) *Trace {
	clock := timeutil.System
	if t != nil {
		clock = t.opts.Clock
	}
	now := clock.Now()
	return &Trace{Name: name, Start: now, lastMark: now, tel: t}
}

// Dropped counts traces discarded because the write queue was full.
func (t *Telemetry) Dropped() uint64 {
	if t == nil {
		return 0
	}
	return t.dropped.Load()
}

func (tr *Trace) now() time.Time {
	if tr.tel != nil {
		return tr.tel.opts.Clock.Now()
	}
	return time.Now()
}

// Mark closes the step running since the previous mark.
func (tr *Trace) Mark(label string) {
	now := tr.now()
	tr.Steps = append(tr.Steps, Step{Name: label, Duration: ms(now.Sub(tr.lastMark))})
	tr.lastMark = now
}

// Fail tags the trace with an error outcome before Finish.
func (tr *Trace) Fail(err error) {
	if err != nil {
		tr.Outcome = "error"
	}
}

// Finish queues the trace for writing. Later calls are no-ops.
func (tr *Trace) Finish() {
	t := tr.tel
	if t == nil {
		return
	}
	tr.tel = nil
	end := t.opts.Clock.Now()
	tr.TotalMS = ms(end.Sub(tr.Start))
	if rest := ms(end.Sub(tr.lastMark)); rest > 0.001 {
		tr.Steps = append(tr.Steps, Step{Name: "unmarked", Duration: rest})
	}
	if tr.Outcome == "" {
		tr.Outcome = "ok"
	}
	select {
	case t.traces <- tr:
	default:
		t.dropped.Add(1)
	}
}

func ms(d time.Duration) float64 { return d.Seconds() * 1000 }

func (t *Telemetry) writerLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case tr := <-t.traces:
			t.write(tr)
		case <-ticker.C:
			t.flush()
		case <-t.stopCh:
			for {
				select {
				case tr := <-t.traces:
					t.write(tr)
				default:
					t.closeFiles()
					return
				}
			}
		}
	}
}

func (t *Telemetry) write(tr *Trace) {
	data, err := json.Marshal(tr)
	if err != nil {
		return
	}
	b := t.bufferFor(tr.Name)
	if b == nil {
		return
	}
	_, _ = b.Write(data)
	_ = b.WriteByte('\n')
}

// flush writes buffers out and starts over any file past MaxFileSize.
func (t *Telemetry) flush() {
	for name, b := range t.buffers {
		_ = b.Flush()
		if t.opts.MaxFileSize <= 0 {
			continue
		}
		f := t.files[name]
		fi, err := f.Stat()
		if err != nil || fi.Size() <= t.opts.MaxFileSize {
			continue
		}
		if err := f.Truncate(0); err != nil {
			logger.Warn("telemetry_truncate_failed", "op", name, "error", err)
			continue
		}
		logger.Info("telemetry_truncated", "op", name, "limit_bytes", t.opts.MaxFileSize)
	}
}

func (t *Telemetry) closeFiles() {
	for name, b := range t.buffers {
		_ = b.Flush()
		f := t.files[name]
		_ = f.Sync()
		_ = f.Close()
	}
}

func (t *Telemetry) bufferFor(op string) *bufio.Writer {
	if b, ok := t.buffers[op]; ok {
		return b
	}
	path := filepath.Join(t.dir, fmt.Sprintf("%s.jsonl", op))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		logger.Warn("telemetry_open_failed", "path", path, "error", err)
		return nil
	}
	b := bufio.NewWriterSize(f, bufferSize)
	t.files[op] = f
	t.buffers[op] = b
	return b
}

// Close drains queued traces and closes every file.
func (t *Telemetry) Close() {
	if t == nil {
		return
	}
	t.stop.Do(func() {
		close(t.stopCh)
		t.wg.Wait()
	})
}
