package shutdown

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContinuesPastFailures(t *testing.T) {
	var order []string
	step := func(name string, err error) Step {
		return Step{Name: name, Fn: func(context.Context) error {
			order = append(order, name)
			return err
		}}
	}
	err := Run(context.Background(), step("http", nil), step("maintenance", errors.New("stuck")), Step{Name: "noop"}, step("log", nil))
	require.Error(t, err)
	assert.ErrorContains(t, err, "maintenance: stuck")
	assert.Equal(t, []string{"http", "maintenance", "log"}, order)
}

func TestRunStopsAtDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	err := Run(ctx,
		Step{Name: "first", Fn: func(context.Context) error { cancel(); return nil }},
		Step{Name: "second", Fn: func(context.Context) error { ran = true; return nil }},
	)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestWriteCrashDump(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteCrashDump(dir, "failed to open log", errors.New("locked"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "state", "crash"), filepath.Dir(path))
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "failed to open log")
	assert.Contains(t, string(body), "goroutine")
}

func TestSignalHandlerCancel(t *testing.T) {
	ctx, cancel := SetupSignalHandler(context.Background())
	cancel()
	<-ctx.Done()
}
