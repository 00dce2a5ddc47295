package store

import (
	"context"
	"sync"

	"p2pmessage/pkg/models"
	"p2pmessage/pkg/timeutil"
)

// MemoryLog keeps records in process memory. Used by tests and memory:// DSNs.
type MemoryLog struct {
	mu      sync.RWMutex
	clock   timeutil.Clock
	records []Record
	next    Position
	closed  bool
}

func NewMemoryLog(clock timeutil.Clock) *MemoryLog {
	if clock == nil {
		clock = timeutil.System
	}
	return &MemoryLog{clock: clock, next: 1}
}

func (m *MemoryLog) Scan(ctx context.Context, opts ScanOptions, fn ScanFunc) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	snapshot := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if r.Kind == opts.Kind {
			snapshot = append(snapshot, r)
		}
	}
	m.mu.RUnlock()

	n := len(snapshot)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := snapshot[i]
		if opts.Order == NewestFirst {
			rec = snapshot[n-1-i]
		}
		if !opts.Materialize {
			rec.Content = nil
		}
		if done, err := stop(fn(rec)); done {
			return err
		}
	}
	return nil
}

func (m *MemoryLog) Append(ctx context.Context, kind EntryKind, value any) (Position, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	content, err := encode(kind, value)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	pos := m.next
	m.next++
	m.records = append(m.records, Record{
		Kind:       kind,
		Position:   pos,
		AppendedAt: models.TimestampFrom(m.clock.Now()),
		Content:    content,
	})
	return pos, nil
}

func (m *MemoryLog) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Len is the total number of records of every kind.
func (m *MemoryLog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
