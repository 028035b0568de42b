package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dejo1307/swiftmetrics/internal/report"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
	// Fixed-width so that timestamps sort lexically.
	tsLayout = "2006-01-02T15:04:05.000000000Z"
)

// Run is the stored summary of one analysis.
type Run struct {
	ID           string    `json:"run_id"`
	Root         string    `json:"root"`
	Timestamp    time.Time `json:"timestamp"`
	DurationMS   int64     `json:"duration_ms"`
	Files        int       `json:"files"`
	Modules      int       `json:"modules"`
	TestModules  int       `json:"test_modules"`
	SharedFiles  int       `json:"shared_files"`
	LOC          int       `json:"loc"`
	NOC          int       `json:"noc"`
	POC          float64   `json:"poc"`
	SharedLOC    int       `json:"shared_loc"`
	MeanDistance float64   `json:"mean_distance"`
}

// ModulePoint is one module's metrics in one run. Coupling fields are nil
// for test modules.
type ModulePoint struct {
	RunID        string    `json:"run_id"`
	Timestamp    time.Time `json:"timestamp"`
	Module       string    `json:"module"`
	IsTest       bool      `json:"is_test"`
	LOC          int       `json:"loc"`
	NOC          int       `json:"noc"`
	POC          float64   `json:"poc"`
	FanIn        *int      `json:"fan_in,omitempty"`
	FanOut       *int      `json:"fan_out,omitempty"`
	Instability  *float64  `json:"i,omitempty"`
	Abstractness *float64  `json:"a,omitempty"`
	Distance     *float64  `json:"d_3,omitempty"`
}

// Store persists report summaries in SQLite.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	log.Printf("[history] opened %s", cleanPath)
	return &Store{path: cleanPath, db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Record stores the run totals and every module's metrics. Recording the
// same run ID again replaces the earlier rows.
func (s *Store) Record(ctx context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := r.Meta
	if meta.RunID == "" {
		meta.RunID = uuid.NewString()
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now().UTC()
	}
	total := r.Aggregate.Total

	return s.withRetry("record run", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM module_metrics WHERE run_id = ?`, meta.RunID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, meta.RunID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (
  run_id, root, ts_utc, duration_ms, file_count, module_count, test_module_count,
  shared_file_count, loc, noc, poc, shared_loc, mean_distance
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			meta.RunID, meta.Root, meta.GeneratedAt.UTC().Format(tsLayout), meta.DurationMS,
			meta.Files, meta.Modules, meta.TestModules, meta.SharedFiles,
			total.LOC, total.CommentCount, total.POC, r.Aggregate.Shared.LOC,
			r.MainSequence.MeanDistance,
		); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO module_metrics (
  run_id, module, is_test, loc, noc, poc, fan_in, fan_out, instability, abstractness, distance
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, group := range [][]report.ModuleEntry{r.NonTest, r.Tests} {
			for _, e := range group {
				b := e.Body
				if _, err := stmt.ExecContext(ctx,
					meta.RunID, e.Name, e.IsTest, b.LOC, b.NOC, b.POC,
					nullInt(b.FanIn), nullInt(b.FanOut), nullFloat(b.I), nullFloat(b.A), nullFloat(b.D3),
				); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	})
}

// Runs returns the most recent runs, oldest first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT run_id, root, ts_utc, duration_ms, file_count, module_count, test_module_count,
  shared_file_count, loc, noc, poc, shared_loc, mean_distance
FROM runs ORDER BY seq DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			run   Run
			tsRaw string
		)
		if err := rows.Scan(&run.ID, &run.Root, &tsRaw, &run.DurationMS, &run.Files, &run.Modules,
			&run.TestModules, &run.SharedFiles, &run.LOC, &run.NOC, &run.POC, &run.SharedLOC,
			&run.MeanDistance); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if run.Timestamp, err = parseTS(tsRaw); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	reverse(runs)
	return runs, nil
}

// Trend returns a module's metrics over its most recent runs, oldest first.
// limit <= 0 returns all.
func (s *Store) Trend(ctx context.Context, module string, limit int) ([]ModulePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT m.run_id, r.ts_utc, m.module, m.is_test, m.loc, m.noc, m.poc,
  m.fan_in, m.fan_out, m.instability, m.abstractness, m.distance
FROM module_metrics m JOIN runs r ON r.run_id = m.run_id
WHERE m.module = ?
ORDER BY r.seq DESC`
	args := []any{module}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("load module trend", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]ModulePoint, 0)
	for rows.Next() {
		var (
			p              ModulePoint
			tsRaw          string
			fanIn, fanOut  sql.NullInt64
			inst, abs, dst sql.NullFloat64
		)
		if err := rows.Scan(&p.RunID, &tsRaw, &p.Module, &p.IsTest, &p.LOC, &p.NOC, &p.POC,
			&fanIn, &fanOut, &inst, &abs, &dst); err != nil {
			return nil, fmt.Errorf("scan module row: %w", err)
		}
		if p.Timestamp, err = parseTS(tsRaw); err != nil {
			return nil, err
		}
		p.FanIn, p.FanOut = intPtr(fanIn), intPtr(fanOut)
		p.Instability, p.Abstractness, p.Distance = floatPtr(inst), floatPtr(abs), floatPtr(dst)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate module rows: %w", err)
	}

	reverse(points)
	return points, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func parseTS(raw string) (time.Time, error) {
	ts, err := time.Parse(tsLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
