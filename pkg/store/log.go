// Package store is the append-only local log the node scans and appends to.
// Backends are interchangeable behind Log; every query is a full scan of
// one entry kind.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"p2pmessage/pkg/models"
)

type EntryKind string

const (
	KindMessage   EntryKind = "message"
	KindReceipt   EntryKind = "receipt"
	KindFileBytes EntryKind = "file_bytes"
)

func (k EntryKind) Valid() bool {
	switch k {
	case KindMessage, KindReceipt, KindFileBytes:
		return true
	}
	return false
}

type Order int

const (
	OldestFirst Order = iota
	NewestFirst
)

func (o Order) String() string {
	if o == NewestFirst {
		return "newest_first"
	}
	return "oldest_first"
}

// Position is a record's place in the log. Strictly increasing across kinds.
type Position uint64

type Record struct {
	Kind       EntryKind
	Position   Position
	AppendedAt models.Timestamp
	// nil unless the scan asked for content
	Content []byte
}

type ScanOptions struct {
	Kind        EntryKind
	Order       Order
	Materialize bool
}

// ErrStopScan ends a scan early when returned from a ScanFunc. Scan itself returns nil.
var ErrStopScan = errors.New("stop scan")

// ErrClosed is returned by operations on a closed log.
var ErrClosed = errors.New("log closed")

type ScanFunc func(Record) error

// Log is the local, append-only, per-agent event log.
type Log interface {
	// Scan visits every record of one kind in order. A scan sees a
	// consistent snapshot and never observes appends made while it runs.
	Scan(ctx context.Context, opts ScanOptions, fn ScanFunc) error
	// Append JSON-encodes value as a new record of kind.
	Append(ctx context.Context, kind EntryKind, value any) (Position, error)
	Close() error
}

// Compactor is implemented by backends that can reclaim space.
type Compactor interface {
	Compact(ctx context.Context) error
}

// Sizer reports on-disk size in bytes, where the backend knows it.
type Sizer interface {
	DiskUsage() uint64
}

// ContentHash is the log's content-addressing function.
func ContentHash(record any) (models.ContentHash, error) {
	return models.HashOf(record)
}

// ScanAs decodes each record's content into T before calling fn.
func ScanAs[T any](ctx context.Context, l Log, kind EntryKind, order Order, fn func(T, Record) error) error {
	return l.Scan(ctx, ScanOptions{Kind: kind, Order: order, Materialize: true}, func(rec Record) error {
		var v T
		if err := json.Unmarshal(rec.Content, &v); err != nil {
			return fmt.Errorf("decode %s at %d: %w", kind, rec.Position, err)
		}
		return fn(v, rec)
	})
}

// Collect returns every record of kind decoded into T.
func Collect[T any](ctx context.Context, l Log, kind EntryKind, order Order) ([]T, error) {
	var out []T
	err := ScanAs(ctx, l, kind, order, func(v T, _ Record) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

func encode(kind EntryKind, value any) ([]byte, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entry kind %q", kind)
	}
	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return b, nil
}

// stop reports whether err from a ScanFunc ends the scan, and what Scan should return.
func stop(err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	if errors.Is(err, ErrStopScan) {
		return true, nil
	}
	return true, err
}
