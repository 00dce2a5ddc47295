package telemetry

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"p2pmessage/pkg/timeutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readTraces(t *testing.T, path string) []Trace {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []Trace
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var tr Trace
		require.NoError(t, json.Unmarshal(sc.Bytes(), &tr))
		out = append(out, tr)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestTraceStepsAndFiles(t *testing.T) {
	dir := t.TempDir()
	clock := timeutil.NewManual(time.Unix(100, 0))
	tel, err := New(dir, Options{FlushInterval: time.Hour, Clock: clock})
	require.NoError(t, err)

	tr := tel.Track("send_message")
	clock.Advance(5 * time.Millisecond)
	tr.Mark("remote")
	clock.Advance(2 * time.Millisecond)
	tr.Mark("commit")
	clock.Advance(1 * time.Millisecond)
	tr.Finish()
	tr.Finish()

	failed := tel.Track("read_message")
	failed.Fail(errors.New("unreachable"))
	failed.Finish()

	tel.Close()
	tel.Close()

	sends := readTraces(t, filepath.Join(dir, "send_message.jsonl"))
	require.Len(t, sends, 1)
	got := sends[0]
	assert.Equal(t, "ok", got.Outcome)
	assert.InDelta(t, 8.0, got.TotalMS, 0.0001)
	require.Len(t, got.Steps, 3)
	assert.Equal(t, "remote", got.Steps[0].Name)
	assert.InDelta(t, 5.0, got.Steps[0].Duration, 0.0001)
	assert.Equal(t, "unmarked", got.Steps[2].Name)

	reads := readTraces(t, filepath.Join(dir, "read_message.jsonl"))
	require.Len(t, reads, 1)
	assert.Equal(t, "error", reads[0].Outcome)
}

func TestNilTelemetryIsInert(t *testing.T) {
	var tel *Telemetry
	tr := tel.Track("send_message")
	tr.Mark("remote")
	tr.Finish()
	tel.Close()
	assert.Zero(t, tel.Dropped())
	assert.Len(t, tr.Steps, 1)
}

func TestFullQueueDrops(t *testing.T) {
	tel := &Telemetry{opts: Options{Clock: timeutil.System}, traces: make(chan *Trace, 1)}
	tel.Track("a").Finish()
	tel.Track("b").Finish()
	assert.Equal(t, uint64(1), tel.Dropped())
}

func TestFlushTruncatesOversizedFile(t *testing.T) {
	dir := t.TempDir()
	tel := &Telemetry{
		dir:     dir,
		opts:    Options{MaxFileSize: 10, Clock: timeutil.System},
		files:   map[string]*os.File{},
		buffers: map[string]*bufio.Writer{},
	}
	tel.write(&Trace{Name: "op", Outcome: "ok"})
	tel.flush()
	tel.closeFiles()

	fi, err := os.Stat(filepath.Join(dir, "op.jsonl"))
	require.NoError(t, err)
	assert.Zero(t, fi.Size())
}
