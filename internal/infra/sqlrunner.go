package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor is the query surface used by the journal and privilege stores.
// *pgxpool.Pool satisfies it.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// ErrMissingMarker is returned for statements without a --sql <uuid> first line.
var ErrMissingMarker = errors.New("sql marker missing or invalid")

// DefaultSlowStatement is the duration above which a statement is logged at
// warn level.
const DefaultSlowStatement = 250 * time.Millisecond

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// SQLRunner rejects statements that lack an audit marker, strips the marker,
// and forwards the rest to a backend. Statements are logged by marker and
// duration, never by text or arguments.
type SQLRunner struct {
	backend SQLExecutor
	logger  zerolog.Logger
	slow    time.Duration
	now     func() time.Time
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return newSQLRunner(pool, logger)
}

func newSQLRunner(backend SQLExecutor, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{backend: backend, logger: logger, slow: DefaultSlowStatement, now: time.Now}
}

// SetSlowThreshold changes when a statement is reported as slow. Zero or
// negative disables slow reporting.
func (r *SQLRunner) SetSlowThreshold(d time.Duration) { r.slow = d }

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, stmt, err := ExtractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := r.clock()
	tag, err := r.backend.Exec(ctx, stmt, args...)
	r.finish("exec", marker, start, err).Int64("rows", tag.RowsAffected()).Send()
	return tag, err
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, stmt, err := ExtractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return &timedRow{runner: r, marker: marker, start: r.clock(), row: r.backend.QueryRow(ctx, stmt, args...)}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, stmt, err := ExtractMarker(query)
	if err != nil {
		return nil, err
	}
	start := r.clock()
	rows, err := r.backend.Query(ctx, stmt, args...)
	if err != nil {
		r.finish("query", marker, start, err).Send()
		return nil, err
	}
	return &timedRows{Rows: rows, runner: r, marker: marker, start: start}, nil
}

func (r *SQLRunner) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

// finish picks the log level for a completed statement. No-row results are
// ordinary outcomes, not failures.
func (r *SQLRunner) finish(op, marker string, start time.Time, err error) *zerolog.Event {
	elapsed := r.clock().Sub(start)
	var ev *zerolog.Event
	switch {
	case err != nil && !IsNoRows(err):
		ev = r.logger.Error().Err(err)
	case r.slow > 0 && elapsed > r.slow:
		ev = r.logger.Warn().Bool("slow", true)
	default:
		ev = r.logger.Debug()
	}
	return ev.Str("op", op).Str("sql", marker).Dur("elapsed", elapsed)
}

type timedRow struct {
	runner *SQLRunner
	marker string
	start  time.Time
	row    pgx.Row
}

func (t *timedRow) Scan(dest ...any) error {
	err := t.row.Scan(dest...)
	t.runner.finish("query_row", t.marker, t.start, err).Bool("found", err == nil).Send()
	return err
}

type timedRows struct {
	pgx.Rows
	runner *SQLRunner
	marker string
	start  time.Time
	count  int
	done   bool
}

func (t *timedRows) Next() bool {
	if t.Rows.Next() {
		t.count++
		return true
	}
	return false
}

func (t *timedRows) Close() {
	t.Rows.Close()
	if t.done {
		return
	}
	t.done = true
	t.runner.finish("query", t.marker, t.start, t.Rows.Err()).Int("rows", t.count).Send()
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// ExtractMarker splits a statement into its audit marker and executable SQL.
func ExtractMarker(query string) (marker, stmt string, err error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errors.New("empty query")
	}
	first, rest, _ := strings.Cut(trimmed, "\n")
	first = strings.TrimSpace(first)
	if !markerRegexp.MatchString(first) {
		return "", "", ErrMissingMarker
	}
	return strings.TrimPrefix(first, "--sql "), strings.TrimSpace(rest), nil
}

// ValidMarker reports whether line is a well-formed --sql <uuid> marker.
func ValidMarker(line string) bool {
	return markerRegexp.MatchString(strings.TrimSpace(line))
}

var _ SQLExecutor = (*SQLRunner)(nil)
