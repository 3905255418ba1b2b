package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/entityscan/pkg/types"
)

var (
	// ErrNotFound is returned when a requested scan doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode so review tools can read while a scan is written
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens or creates the export database at dbPath and
// applies pending migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Scan operations

// SaveScan inserts scan and its hits atomically. scan.ID, EntityCount and
// CreatedAt are set on success.
func (s *SQLiteStorage) SaveScan(ctx context.Context, scan *Scan, hits []types.EntityHit) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	scan.EntityCount = len(hits)
	if err = s.insertScanWithQuerier(ctx, tx, scan); err != nil {
		return err
	}
	if err = s.insertEntitiesWithQuerier(ctx, tx, scan.ID, hits); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scan: %w", err)
	}
	return nil
}

// insertScanWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertScanWithQuerier(ctx context.Context, q querier, scan *Scan) error {
	query := `
		INSERT INTO scans (file_path, content_hash, size_bytes, chunk_size, engine,
		                   entity_count, chunk_count, skipped_chunks, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx, query,
		scan.FilePath, scan.ContentHash[:], scan.SizeBytes, scan.ChunkSize, scan.Engine,
		scan.EntityCount, scan.ChunkCount, scan.SkippedChunks, scan.Duration.Milliseconds(), now)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	scan.ID = id
	scan.CreatedAt = now
	return nil
}

// insertEntitiesWithQuerier stores hits with their output position as seq
func (s *SQLiteStorage) insertEntitiesWithQuerier(ctx context.Context, q querier, scanID int64, hits []types.EntityHit) error {
	if len(hits) == 0 {
		return nil
	}

	query := `
		INSERT INTO entities (scan_id, seq, text, label, line_number, start_offset, end_offset,
		                      prev_line, hit_line, next_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for seq, hit := range hits {
		_, err := q.ExecContext(ctx, query,
			scanID, seq, hit.Text, hit.Label, hit.HitLinePosition, hit.Start, hit.End,
			nullString(hit.PrevLine), hit.HitLine, nullString(hit.NextLine))
		if err != nil {
			return fmt.Errorf("failed to insert entity %d: %w", seq, err)
		}
	}
	return nil
}

const scanColumns = `
	id, file_path, content_hash, size_bytes, chunk_size, engine,
	entity_count, chunk_count, skipped_chunks, duration_ms, created_at
`

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanScan(row rowScanner) (*Scan, error) {
	var (
		scan       Scan
		hash       []byte
		durationMs sql.NullInt64
		sizeBytes  sql.NullInt64
	)
	err := row.Scan(
		&scan.ID, &scan.FilePath, &hash, &sizeBytes, &scan.ChunkSize, &scan.Engine,
		&scan.EntityCount, &scan.ChunkCount, &scan.SkippedChunks, &durationMs, &scan.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	copy(scan.ContentHash[:], hash)
	scan.SizeBytes = sizeBytes.Int64
	scan.Duration = time.Duration(durationMs.Int64) * time.Millisecond
	return &scan, nil
}

func (s *SQLiteStorage) GetScan(ctx context.Context, scanID int64) (*Scan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, scanID)
	scan, err := scanScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan %d: %w", scanID, err)
	}
	return scan, nil
}

// GetLatestScan returns the most recent scan of filePath
func (s *SQLiteStorage) GetLatestScan(ctx context.Context, filePath string) (*Scan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM scans WHERE file_path = ? ORDER BY id DESC LIMIT 1`, filePath)
	scan, err := scanScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest scan: %w", err)
	}
	return scan, nil
}

// ListScans returns up to limit scans, newest first. limit <= 0 means all.
func (s *SQLiteStorage) ListScans(ctx context.Context, limit int) ([]*Scan, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanColumns+` FROM scans ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	scans := make([]*Scan, 0)
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

// DeleteScan removes a scan and, through the foreign key, its entities
func (s *SQLiteStorage) DeleteScan(ctx context.Context, scanID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, scanID)
	if err != nil {
		return fmt.Errorf("failed to delete scan %d: %w", scanID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Entity operations

// ListEntities returns the hits of a scan in their original output order
func (s *SQLiteStorage) ListEntities(ctx context.Context, scanID int64) ([]types.EntityHit, error) {
	query := `
		SELECT text, label, line_number, start_offset, end_offset, prev_line, hit_line, next_line
		FROM entities
		WHERE scan_id = ?
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]types.EntityHit, 0)
	for rows.Next() {
		var (
			hit        types.EntityHit
			prev, next sql.NullString
		)
		if err := rows.Scan(&hit.Text, &hit.Label, &hit.HitLinePosition, &hit.Start, &hit.End,
			&prev, &hit.HitLine, &next); err != nil {
			return nil, err
		}
		hit.PrevLine = stringPtr(prev)
		hit.NextLine = stringPtr(next)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// CountEntitiesByLabel returns the number of hits per label in a scan
func (s *SQLiteStorage) CountEntitiesByLabel(ctx context.Context, scanID int64) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label, COUNT(*) FROM entities WHERE scan_id = ? GROUP BY label`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
