package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var Log *slog.Logger

// Audit records inbound peer calls. nil until a logs dir is attached.
var Audit *slog.Logger

var (
	auditMu   sync.Mutex
	auditFile *os.File
)

// ParseLevel maps a config level name onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init sets up the console logger and, when logsDir is non-empty, the audit sink.
func Init(level string, logsDir string) {
	Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLevel(level)}))
	if logsDir != "" {
		attachAuditLogger(logsDir)
	}
}

// InitWriter is Init for tests and tools that want output somewhere else.
func InitWriter(w io.Writer, level string) {
	Log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

func attachAuditLogger(logsDir string) {
	fname := filepath.Join(logsDir, "audit.log")
	if fi, err := os.Stat(fname); err == nil {
		const maxSize = 10 * 1024 * 1024
		if fi.Size() > maxSize {
			bak := fname + "." + fi.ModTime().UTC().Format("20060102T150405Z")
			_ = os.Rename(fname, bak)
		}
	}
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open audit log file: %v\n", err)
		return
	}
	auditMu.Lock()
	auditFile = f
	auditMu.Unlock()
	Audit = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	Audit.Info("audit_sink_attached", "path", fname)
}

// Sync flushes and closes the audit sink.
func Sync() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		_ = auditFile.Sync()
		_ = auditFile.Close()
		auditFile = nil
		Audit = nil
	}
}

func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}

// AuditCall logs one inbound peer operation to the audit sink.
func AuditCall(op, peer, requestID, outcome string) {
	if Audit == nil {
		return
	}
	Audit.Info("peer_call", "op", op, "peer", peer, "request_id", requestID, "outcome", outcome)
}
