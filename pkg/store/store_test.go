package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"p2pmessage/pkg/models"
	"p2pmessage/pkg/timeutil"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	N int `json:"n"`
}

type backend struct {
	name string
	open func(t *testing.T) Log
}

func backends() []backend {
	clock := timeutil.NewManual(time.Unix(1_700_000_000, 0))
	return []backend{
		{"memory", func(t *testing.T) Log { return NewMemoryLog(clock) }},
		{"pebble", func(t *testing.T) Log {
			l, err := OpenPebble("log", PebbleOptions{FS: vfs.NewMem(), SyncWrites: true, Clock: clock})
			require.NoError(t, err)
			return l
		}},
		{"sqlite", func(t *testing.T) Log {
			l, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "log.db"), clock)
			require.NoError(t, err)
			return l
		}},
	}
}

func TestLogAppendAndScanOrder(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			l := b.open(t)
			defer l.Close()

			var positions []Position
			for i := 1; i <= 3; i++ {
				pos, err := l.Append(ctx, KindMessage, note{N: i})
				require.NoError(t, err)
				positions = append(positions, pos)
				_, err = l.Append(ctx, KindReceipt, note{N: -i})
				require.NoError(t, err)
			}
			assert.Less(t, positions[0], positions[1])
			assert.Less(t, positions[1], positions[2])

			oldest, err := Collect[note](ctx, l, KindMessage, OldestFirst)
			require.NoError(t, err)
			assert.Equal(t, []note{{1}, {2}, {3}}, oldest)

			newest, err := Collect[note](ctx, l, KindMessage, NewestFirst)
			require.NoError(t, err)
			assert.Equal(t, []note{{3}, {2}, {1}}, newest)

			receipts, err := Collect[note](ctx, l, KindReceipt, OldestFirst)
			require.NoError(t, err)
			assert.Len(t, receipts, 3)
		})
	}
}

func TestLogScanStopsEarly(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			l := b.open(t)
			defer l.Close()
			for i := 0; i < 5; i++ {
				_, err := l.Append(ctx, KindMessage, note{N: i})
				require.NoError(t, err)
			}
			seen := 0
			err := l.Scan(ctx, ScanOptions{Kind: KindMessage, Order: NewestFirst}, func(rec Record) error {
				seen++
				assert.Nil(t, rec.Content)
				if seen == 2 {
					return ErrStopScan
				}
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, 2, seen)

			boom := errors.New("boom")
			err = l.Scan(ctx, ScanOptions{Kind: KindMessage}, func(Record) error { return boom })
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestLogRejectsUnknownKind(t *testing.T) {
	l := NewMemoryLog(nil)
	_, err := l.Append(context.Background(), EntryKind("thread"), note{})
	require.Error(t, err)
}

func TestPebbleLogRestoresPosition(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMem()
	l, err := OpenPebble("log", PebbleOptions{FS: fs})
	require.NoError(t, err)
	first, err := l.Append(ctx, KindMessage, note{N: 1})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = OpenPebble("log", PebbleOptions{FS: fs})
	require.NoError(t, err)
	defer l.Close()
	second, err := l.Append(ctx, KindReceipt, note{N: 2})
	require.NoError(t, err)
	assert.Equal(t, first+1, second)

	require.NoError(t, l.Compact(ctx))
	all, err := Collect[note](ctx, l, KindMessage, OldestFirst)
	require.NoError(t, err)
	assert.Equal(t, []note{{1}}, all)
}

func TestClosedLog(t *testing.T) {
	l := NewMemoryLog(nil)
	require.NoError(t, l.Close())
	_, err := l.Append(context.Background(), KindMessage, note{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenFromDSN(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tests := []struct {
		dsn     string
		wantErr bool
	}{
		{"memory://", false},
		{"pebble://" + filepath.Join(dir, "store"), false},
		{"sqlite://" + filepath.Join(dir, "log.db"), false},
		{"mysql://localhost/db", true},
		{"no-scheme", true},
		{"pebble://", true},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			l, err := Open(ctx, tt.dsn, Options{SyncWrites: true})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, err = l.Append(ctx, KindMessage, note{N: 1})
			require.NoError(t, err)
			require.NoError(t, l.Close())
		})
	}
}

func TestContentHashDelegatesToModels(t *testing.T) {
	r := models.Receipt{Status: models.Sent()}
	a, err := ContentHash(r)
	require.NoError(t, err)
	b, err := r.Hash()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPostgresLog(t *testing.T) {
	dsn := os.Getenv("P2PMESSAGE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("P2PMESSAGE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	l, err := OpenPostgres(ctx, dsn, nil)
	require.NoError(t, err)
	defer l.Close()
	_, err = l.db.ExecContext(ctx, "TRUNCATE log_entries")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		_, err := l.Append(ctx, KindMessage, note{N: i})
		require.NoError(t, err)
	}
	got, err := Collect[note](ctx, l, KindMessage, NewestFirst)
	require.NoError(t, err)
	assert.Equal(t, []note{{3}, {2}, {1}}, got)
}
