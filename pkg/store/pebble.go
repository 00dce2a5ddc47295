package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"p2pmessage/pkg/models"
	"p2pmessage/pkg/state/logger"
	"p2pmessage/pkg/store/keys"
	"p2pmessage/pkg/timeutil"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type PebbleOptions struct {
	// FS overrides the filesystem; vfs.NewMem() in tests.
	FS         vfs.FS
	SyncWrites bool
	CacheSize  int64
	Clock      timeutil.Clock
	// ReadOnly opens an existing log for offline inspection; Append fails.
	ReadOnly bool
}

// stored value for one entry
type pebbleEntry struct {
	At   models.Timestamp `json:"at"`
	Data json.RawMessage  `json:"data"`
}

// PebbleLog stores entries under log:<kind>:<pos> with the position
// counter persisted in the same batch as each entry.
type PebbleLog struct {
	db       *pebble.DB
	path     string
	sync     bool
	readOnly bool
	clock    timeutil.Clock

	// held shared by every operation, exclusively by Close
	closeMu sync.RWMutex
	mu      sync.Mutex // guards next
	next    uint64
}

// opens/creates the pebble log and restores the position counter
func OpenPebble(path string, opts PebbleOptions) (*PebbleLog, error) {
	popts := &pebble.Options{ReadOnly: opts.ReadOnly}
	if opts.FS != nil {
		popts.FS = opts.FS
	}
	if opts.CacheSize > 0 {
		cache := pebble.NewCache(opts.CacheSize)
		defer cache.Unref()
		popts.Cache = cache
	}
	db, err := pebble.Open(path, popts)
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, fmt.Errorf("open pebble log: %w", err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.System
	}
	l := &PebbleLog{db: db, path: path, sync: opts.SyncWrites, readOnly: opts.ReadOnly, clock: clock}

	last, err := l.readPosition()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l.next = last + 1
	if err := l.checkLayout(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("pebble_log_opened", "path", path, "next_position", l.next, "sync_writes", l.sync)
	return l, nil
}

func (l *PebbleLog) readPosition() (uint64, error) {
	v, closer, err := l.db.Get([]byte(keys.MetaPositionKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read log position: %w", err)
	}
	defer closer.Close()
	if len(v) != 8 {
		return 0, fmt.Errorf("corrupt log position: %d bytes", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func (l *PebbleLog) checkLayout() error {
	v, closer, err := l.db.Get([]byte(keys.MetaVersionKey))
	if errors.Is(err, pebble.ErrNotFound) {
		if l.readOnly {
			return nil
		}
		return l.db.Set([]byte(keys.MetaVersionKey), []byte(keys.LayoutVersion), l.writeOpt())
	}
	if err != nil {
		return fmt.Errorf("read log layout: %w", err)
	}
	defer closer.Close()
	if string(v) != keys.LayoutVersion {
		return fmt.Errorf("log layout %q not supported (want %q)", v, keys.LayoutVersion)
	}
	return nil
}

func (l *PebbleLog) writeOpt() *pebble.WriteOptions {
	if l.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (l *PebbleLog) Append(ctx context.Context, kind EntryKind, value any) (Position, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if l.readOnly {
		return 0, fmt.Errorf("append %s: %w", kind, pebble.ErrReadOnly)
	}
	content, err := encode(kind, value)
	if err != nil {
		return 0, err
	}
	entry, err := json.Marshal(pebbleEntry{At: models.TimestampFrom(l.clock.Now()), Data: content})
	if err != nil {
		return 0, fmt.Errorf("encode entry: %w", err)
	}

	l.closeMu.RLock()
	defer l.closeMu.RUnlock()
	if l.db == nil {
		return 0, ErrClosed
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	pos := l.next
	var posBuf [8]byte
	binary.BigEndian.PutUint64(posBuf[:], pos)

	batch := l.db.NewBatch()
	defer batch.Close()
	if err := batch.Set([]byte(keys.GenEntryKey(string(kind), pos)), entry, nil); err != nil {
		return 0, err
	}
	if err := batch.Set([]byte(keys.MetaPositionKey), posBuf[:], nil); err != nil {
		return 0, err
	}
	if err := l.db.Apply(batch, l.writeOpt()); err != nil {
		logger.Error("pebble_apply_batch_failed", "kind", kind, "position", pos, "error", err)
		return 0, fmt.Errorf("append %s: %w", kind, err)
	}
	l.next++
	return Position(pos), nil
}

func (l *PebbleLog) Scan(ctx context.Context, opts ScanOptions, fn ScanFunc) error {
	l.closeMu.RLock()
	defer l.closeMu.RUnlock()
	db := l.db
	if db == nil {
		return ErrClosed
	}

	prefix := keys.GenEntryPrefix(string(opts.Kind))
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keys.UpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", opts.Kind, err)
	}
	defer iter.Close()

	valid := iter.First()
	advance := iter.Next
	if opts.Order == NewestFirst {
		valid = iter.Last()
		advance = iter.Prev
	}
	for ; valid; valid = advance() {
		if err := ctx.Err(); err != nil {
			return err
		}
		parts, err := keys.ParseEntryKey(string(iter.Key()))
		if err != nil {
			logger.Warn("pebble_skip_bad_key", "key", string(iter.Key()), "error", err)
			continue
		}
		var entry pebbleEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return fmt.Errorf("decode entry %d: %w", parts.Position, err)
		}
		rec := Record{Kind: opts.Kind, Position: Position(parts.Position), AppendedAt: entry.At}
		if opts.Materialize {
			rec.Content = append([]byte(nil), entry.Data...)
		}
		if done, err := stop(fn(rec)); done {
			return err
		}
	}
	return iter.Error()
}

// Compact flushes memtables and compacts the whole entry keyspace.
func (l *PebbleLog) Compact(ctx context.Context) error {
	l.closeMu.RLock()
	defer l.closeMu.RUnlock()
	db := l.db
	if db == nil {
		return ErrClosed
	}
	if err := db.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := db.Compact([]byte("log:"), keys.UpperBound("log:"), true); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	return nil
}

func (l *PebbleLog) DiskUsage() uint64 {
	l.closeMu.RLock()
	defer l.closeMu.RUnlock()
	if l.db == nil {
		return 0
	}
	return l.db.Metrics().DiskSpaceUsage()
}

// DB exposes the handle for offline tooling.
func (l *PebbleLog) DB() *pebble.DB { return l.db }

func (l *PebbleLog) Close() error {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if l.db == nil {
		return nil
	}
	if l.readOnly {
		err := l.db.Close()
		l.db = nil
		return err
	}
	if err := l.db.Flush(); err != nil {
		logger.Error("pebble_flush_on_close_failed", "error", err)
	}
	err := l.db.Close()
	l.db = nil
	return err
}
