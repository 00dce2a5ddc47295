package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"p2pmessage/pkg/state"
	"p2pmessage/pkg/store"
	"p2pmessage/pkg/timeutil"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadCron(t *testing.T) {
	_, err := New(Options{Cron: "every tuesday", Log: store.NewMemoryLog(nil)})
	require.Error(t, err)
	_, err = New(Options{Cron: "0 3 * * *"})
	require.Error(t, err)
}

func TestNextWait(t *testing.T) {
	m, err := New(Options{Cron: "0 3 * * *", Log: store.NewMemoryLog(nil)})
	require.NoError(t, err)
	now := time.Date(2024, 5, 1, 2, 30, 0, 0, time.UTC)
	wait, err := m.nextWait(now)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, wait)
}

func TestRunNowCompactsPebble(t *testing.T) {
	l, err := store.OpenPebble("log", store.PebbleOptions{FS: vfs.NewMem()})
	require.NoError(t, err)
	defer l.Close()
	for i := 0; i < 20; i++ {
		_, err := l.Append(context.Background(), store.KindMessage, map[string]int{"n": i})
		require.NoError(t, err)
	}

	m, err := New(Options{Cron: "0 3 * * *", Log: l, DiskPath: t.TempDir()})
	require.NoError(t, err)
	rep, err := m.RunNow(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Compacted)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, rep, m.Last())
}

func TestRunNowWithoutCompactor(t *testing.T) {
	m, err := New(Options{Cron: "@daily", Log: store.NewMemoryLog(nil)})
	require.NoError(t, err)
	m.usage = func(string) (state.DiskUsage, error) { return state.DiskUsage{}, errors.New("no disk") }
	m.diskPath = "/nowhere"
	rep, err := m.RunNow(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Compacted)
}

type blockingLog struct {
	store.Log
	entered chan struct{}
	release chan struct{}
	err     error
}

func (b *blockingLog) Compact(ctx context.Context) error {
	close(b.entered)
	<-b.release
	return b.err
}

func TestRunNowRefusesOverlap(t *testing.T) {
	bl := &blockingLog{Log: store.NewMemoryLog(nil), entered: make(chan struct{}), release: make(chan struct{}), err: errors.New("disk full")}
	m, err := New(Options{Cron: "0 3 * * *", Log: bl, Clock: timeutil.NewManual(time.Unix(0, 0))})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := m.RunNow(context.Background())
		done <- err
	}()
	<-bl.entered

	_, err = m.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(bl.release)
	assert.ErrorContains(t, <-done, "disk full")
	assert.Equal(t, Report{}, m.Last())
}

func TestStartStops(t *testing.T) {
	m, err := New(Options{Cron: "0 3 * * *", Log: store.NewMemoryLog(nil)})
	require.NoError(t, err)
	cancel := m.Start(context.Background())
	cancel()
}
