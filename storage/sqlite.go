package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"davos_stays/models"
)

// SQLiteStore keeps a local history of runs and downloaded media.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		source TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		rows_seen INTEGER DEFAULT 0,
		properties INTEGER DEFAULT 0,
		pricing_rules INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		remote_status TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT NOT NULL,
		timestamp DATETIME,
		level TEXT,
		row INTEGER,
		message TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS media (
		original_url TEXT PRIMARY KEY,
		local_path TEXT,
		content_hash TEXT,
		size_bytes INTEGER,
		mime_type TEXT,
		remote_key TEXT,
		downloaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_run_logs_run ON run_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind, started_at);
	CREATE INDEX IF NOT EXISTS idx_media_hash ON media(content_hash);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ImportRun) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, kind, source, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID.String(), run.Kind, run.Source, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) FinishRun(run *models.ImportRun) error {
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}
	_, err := s.db.Exec(`
		UPDATE runs SET finished_at = ?, status = ?, rows_seen = ?, properties = ?,
			pricing_rules = ?, errors_count = ?, remote_status = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.RowsSeen, run.Properties,
		run.PricingRules, run.ErrorsCount, run.RemoteStatus, run.ID.String())
	return err
}

func (s *SQLiteStore) GetRun(id uuid.UUID) (*models.ImportRun, error) {
	row := s.db.QueryRow(`
		SELECT id, kind, source, started_at, finished_at, status, rows_seen, properties,
			pricing_rules, errors_count, remote_status
		FROM runs WHERE id = ?`, id.String())

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) Log(runID uuid.UUID, level models.LogLevel, row int, message string) error {
	_, err := s.db.Exec(`
		INSERT INTO run_logs (run_id, timestamp, level, row, message)
		VALUES (?, ?, ?, ?, ?)`,
		runID.String(), time.Now(), level, row, message)
	return err
}

func (s *SQLiteStore) GetRunLogs(runID uuid.UUID) ([]models.RunLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, row, message
		FROM run_logs WHERE run_id = ? ORDER BY id`, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.RunLog
	for rows.Next() {
		var l models.RunLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Row, &l.Message); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) RecordMedia(m *models.MediaEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO media (original_url, local_path, content_hash, size_bytes, mime_type, remote_key, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(original_url) DO UPDATE SET
			local_path = excluded.local_path,
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			mime_type = excluded.mime_type,
			remote_key = COALESCE(NULLIF(excluded.remote_key, ''), remote_key),
			downloaded_at = excluded.downloaded_at`,
		m.OriginalURL, m.LocalPath, m.ContentHash, m.SizeBytes, m.MimeType, m.RemoteKey, time.Now())
	return err
}

func (s *SQLiteStore) GetMediaByURL(originalURL string) (*models.MediaEntry, error) {
	row := s.db.QueryRow(`
		SELECT original_url, local_path, content_hash, size_bytes, mime_type, remote_key
		FROM media WHERE original_url = ?`, originalURL)

	var m models.MediaEntry
	var mime, remote sql.NullString
	err := row.Scan(&m.OriginalURL, &m.LocalPath, &m.ContentHash, &m.SizeBytes, &mime, &remote)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.MimeType = mime.String
	m.RemoteKey = remote.String
	return &m, nil
}

// MediaCount returns the number of distinct image URLs in the ledger.
func (s *SQLiteStore) MediaCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM media`).Scan(&count)
	return count, err
}

// RecentRuns returns the latest runs, newest first.
func (s *SQLiteStore) RecentRuns(limit int) ([]models.ImportRun, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, source, started_at, finished_at, status, rows_seen, properties,
			pricing_rules, errors_count, remote_status
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ImportRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.ImportRun, error) {
	var run models.ImportRun
	var rawID string
	var finished sql.NullTime
	var source, remote sql.NullString
	err := row.Scan(&rawID, &run.Kind, &source, &run.StartedAt, &finished, &run.Status,
		&run.RowsSeen, &run.Properties, &run.PricingRules, &run.ErrorsCount, &remote)
	if err != nil {
		return nil, err
	}

	run.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	run.Source = source.String
	run.RemoteStatus = remote.String
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}
