package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"p2pmessage/pkg/models"
	"p2pmessage/pkg/state/logger"
	"p2pmessage/pkg/timeutil"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const sqlTableName = "log_entries"

type dialect struct {
	driver      string
	schema      []string
	insert      string
	returningID bool
	vacuum      string
}

var (
	sqliteDialect = dialect{
		driver: "sqlite",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS log_entries (
				position    INTEGER PRIMARY KEY AUTOINCREMENT,
				kind        TEXT    NOT NULL,
				appended_at INTEGER NOT NULL,
				content     BLOB    NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS log_entries_kind ON log_entries (kind, position)`,
		},
		insert: `INSERT INTO log_entries (kind, appended_at, content) VALUES (?, ?, ?)`,
		vacuum: `VACUUM`,
	}
	postgresDialect = dialect{
		driver: "postgres",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS log_entries (
				position    BIGSERIAL PRIMARY KEY,
				kind        TEXT   NOT NULL,
				appended_at BIGINT NOT NULL,
				content     BYTEA  NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS log_entries_kind ON log_entries (kind, position)`,
		},
		insert:      `INSERT INTO log_entries (kind, appended_at, content) VALUES ($1, $2, $3) RETURNING position`,
		returningID: true,
		vacuum:      `VACUUM ANALYZE log_entries`,
	}
)

func (d dialect) scanQuery(order Order, materialize bool) string {
	cols := "position, appended_at"
	if materialize {
		cols += ", content"
	}
	dir := "ASC"
	if order == NewestFirst {
		dir = "DESC"
	}
	placeholder := "?"
	if d.driver == "postgres" {
		placeholder = "$1"
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE kind = %s ORDER BY position %s", cols, sqlTableName, placeholder, dir)
}

// SQLLog keeps the log in one table, on sqlite or postgres.
type SQLLog struct {
	db      *sql.DB
	dialect dialect
	clock   timeutil.Clock
}

// OpenSQLite opens (creating if needed) a sqlite log file.
func OpenSQLite(ctx context.Context, path string, clock timeutil.Clock) (*SQLLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite log: %w", err)
	}
	// a single writer connection serializes positions
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = FULL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}
	return newSQLLog(ctx, db, sqliteDialect, clock)
}

// OpenPostgres connects to a postgres log.
func OpenPostgres(ctx context.Context, dsn string, clock timeutil.Clock) (*SQLLog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres log: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres log: %w", err)
	}
	return newSQLLog(ctx, db, postgresDialect, clock)
}

func newSQLLog(ctx context.Context, db *sql.DB, d dialect, clock timeutil.Clock) (*SQLLog, error) {
	if clock == nil {
		clock = timeutil.System
	}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s schema: %w", d.driver, err)
		}
	}
	logger.Info("sql_log_opened", "driver", d.driver)
	return &SQLLog{db: db, dialect: d, clock: clock}, nil
}

func (l *SQLLog) Append(ctx context.Context, kind EntryKind, value any) (Position, error) {
	content, err := encode(kind, value)
	if err != nil {
		return 0, err
	}
	at := int64(models.TimestampFrom(l.clock.Now()))
	if l.dialect.returningID {
		var pos int64
		if err := l.db.QueryRowContext(ctx, l.dialect.insert, string(kind), at, content).Scan(&pos); err != nil {
			return 0, fmt.Errorf("append %s: %w", kind, err)
		}
		return Position(pos), nil
	}
	res, err := l.db.ExecContext(ctx, l.dialect.insert, string(kind), at, content)
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", kind, err)
	}
	pos, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append %s: position: %w", kind, err)
	}
	return Position(pos), nil
}

func (l *SQLLog) Scan(ctx context.Context, opts ScanOptions, fn ScanFunc) error {
	rows, err := l.db.QueryContext(ctx, l.dialect.scanQuery(opts.Order, opts.Materialize), string(opts.Kind))
	if err != nil {
		return fmt.Errorf("scan %s: %w", opts.Kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pos int64
			at  int64
			rec = Record{Kind: opts.Kind}
		)
		dest := []any{&pos, &at}
		if opts.Materialize {
			dest = append(dest, &rec.Content)
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan %s row: %w", opts.Kind, err)
		}
		rec.Position = Position(pos)
		rec.AppendedAt = models.Timestamp(at)
		if done, err := stop(fn(rec)); done {
			return err
		}
	}
	return rows.Err()
}

func (l *SQLLog) Compact(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, l.dialect.vacuum); err != nil {
		return fmt.Errorf("%s vacuum: %w", l.dialect.driver, err)
	}
	return nil
}

func (l *SQLLog) Close() error {
	return l.db.Close()
}

func isPostgresScheme(s string) bool {
	s = strings.ToLower(s)
	return s == "postgres" || s == "postgresql"
}
