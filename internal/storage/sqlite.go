package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps run metadata in a table and each run's thermo series
// as a JSON payload. A path of ":memory:" gives a private in-memory
// database.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if s.path == ":memory:" {
		// every pooled connection would otherwise see its own database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			mode TEXT NOT NULL,
			methods TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			n INTEGER NOT NULL,
			dt REAL NOT NULL,
			steps INTEGER NOT NULL,
			elapsed_ns INTEGER NOT NULL,
			metrics BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS thermo (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, meta RunMetadata, thermo *Thermo) (string, error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}
	if err := prepare(&meta, thermo); err != nil {
		return "", err
	}

	metrics, err := json.Marshal(meta.Metrics)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(thermo)
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, name, mode, methods, created_at, seed, n, dt, steps, elapsed_ns, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			mode = excluded.mode,
			methods = excluded.methods,
			created_at = excluded.created_at,
			seed = excluded.seed,
			n = excluded.n,
			dt = excluded.dt,
			steps = excluded.steps,
			elapsed_ns = excluded.elapsed_ns,
			metrics = excluded.metrics
	`, meta.ID, meta.Name, meta.Mode, strings.Join(meta.Methods, ","), meta.Timestamp.UnixNano(),
		meta.Seed, meta.N, meta.Dt, int64(meta.Steps), int64(meta.Elapsed), metrics)
	if err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO thermo (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET payload = excluded.payload
	`, meta.ID, payload)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

const selectRuns = `SELECT id, name, mode, methods, created_at, seed, n, dt, steps, elapsed_ns, metrics FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunMetadata, error) {
	var (
		meta             RunMetadata
		methods          string
		created, elapsed int64
		steps            int64
		metrics          []byte
	)
	err := row.Scan(&meta.ID, &meta.Name, &meta.Mode, &methods, &created, &meta.Seed,
		&meta.N, &meta.Dt, &steps, &elapsed, &metrics)
	if err != nil {
		return RunMetadata{}, err
	}
	if methods != "" {
		meta.Methods = strings.Split(methods, ",")
	}
	meta.Timestamp = time.Unix(0, created).UTC()
	meta.Steps = uint64(steps)
	meta.Elapsed = time.Duration(elapsed)
	if err := json.Unmarshal(metrics, &meta.Metrics); err != nil {
		return RunMetadata{}, fmt.Errorf("decode %s metrics: %w", meta.ID, err)
	}
	return meta, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]RunMetadata, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectRuns+` ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*RunMetadata, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	meta, err := scanRun(db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &meta, nil
}

func (s *SQLiteStore) LoadThermo(ctx context.Context, id string) (*Thermo, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM thermo WHERE run_id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	var thermo Thermo
	if err := json.Unmarshal(payload, &thermo); err != nil {
		return nil, fmt.Errorf("decode %s thermo: %w", id, err)
	}
	return &thermo, nil
}
