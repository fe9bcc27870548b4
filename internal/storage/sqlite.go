package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLite is a single-file local store used when no Postgres URL is configured.
type SQLite struct {
	db *sql.DB
}

// DefaultSQLitePath returns ~/.go_studykit/studykit.db.
func DefaultSQLitePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".go_studykit", "studykit.db")
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("sqlite: mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS transcripts (
			id               TEXT PRIMARY KEY,
			video_id         TEXT,
			url              TEXT,
			title            TEXT,
			language         TEXT,
			source_model     TEXT,
			text             TEXT NOT NULL,
			srt              TEXT,
			duration_seconds REAL,
			created_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS transcripts_video_id_idx ON transcripts (video_id)`,
		`CREATE TABLE IF NOT EXISTS transcript_features (
			transcript_id TEXT NOT NULL REFERENCES transcripts (id) ON DELETE CASCADE,
			kind          TEXT NOT NULL,
			payload       TEXT NOT NULL,
			model         TEXT,
			updated_at    INTEGER NOT NULL,
			PRIMARY KEY (transcript_id, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS llm_completions (
			cache_key  TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			model      TEXT,
			created_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const sqliteTranscriptColumns = `id, COALESCE(video_id,''), COALESCE(url,''), COALESCE(title,''), COALESCE(language,''),
	COALESCE(source_model,''), text, COALESCE(srt,''), COALESCE(duration_seconds,0), created_at`

func scanSQLiteTranscript(row *sql.Row) (*Transcript, error) {
	var t Transcript
	var created int64
	err := row.Scan(&t.ID, &t.VideoID, &t.URL, &t.Title, &t.Language,
		&t.SourceModel, &t.Text, &t.SRT, &t.DurationSeconds, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.CreatedAt = time.UnixMilli(created).UTC()
	return &t, nil
}

func (s *SQLite) GetTranscript(ctx context.Context, id string) (*Transcript, error) {
	return scanSQLiteTranscript(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteTranscriptColumns+` FROM transcripts WHERE id = ?`, id))
}

func (s *SQLite) FindTranscript(ctx context.Context, videoID, url string) (*Transcript, error) {
	if videoID == "" && url == "" {
		return nil, ErrNotFound
	}
	return scanSQLiteTranscript(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteTranscriptColumns+` FROM transcripts
		 WHERE (?1 <> '' AND video_id = ?1) OR (?2 <> '' AND url = ?2)
		 ORDER BY created_at DESC LIMIT 1`, videoID, url))
}

func (s *SQLite) CreateTranscript(ctx context.Context, t *Transcript) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (id, video_id, url, title, language, source_model, text, srt, duration_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.VideoID, t.URL, t.Title, t.Language, t.SourceModel, t.Text, t.SRT, t.DurationSeconds, t.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert transcript: %w", err)
	}
	return t.ID, nil
}

func (s *SQLite) SaveFeature(ctx context.Context, f Feature) error {
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript_features (transcript_id, kind, payload, model, updated_at)
		 SELECT ?1, ?2, ?3, ?4, ?5 WHERE EXISTS (SELECT 1 FROM transcripts WHERE id = ?1)
		 ON CONFLICT (transcript_id, kind)
		 DO UPDATE SET payload = excluded.payload, model = excluded.model, updated_at = excluded.updated_at`,
		f.TranscriptID, f.Kind, string(f.Payload), f.Model, f.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save feature: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Features(ctx context.Context, transcriptID string) ([]Feature, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT transcript_id, kind, payload, COALESCE(model,''), updated_at
		 FROM transcript_features WHERE transcript_id = ? ORDER BY kind`, transcriptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Feature
	for rows.Next() {
		var f Feature
		var payload string
		var updated int64
		if err := rows.Scan(&f.TranscriptID, &f.Kind, &payload, &f.Model, &updated); err != nil {
			return nil, err
		}
		f.Payload = json.RawMessage(payload)
		f.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLite) GetCompletion(ctx context.Context, key string, since time.Time) (*Completion, error) {
	var c Completion
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT content, COALESCE(model,''), created_at FROM llm_completions
		 WHERE cache_key = ? AND created_at >= ?`, key, since.UnixMilli(),
	).Scan(&c.Content, &c.Model, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = time.UnixMilli(created).UTC()
	return &c, nil
}

func (s *SQLite) PutCompletion(ctx context.Context, key string, c Completion) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_completions (cache_key, content, model, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET content = excluded.content, model = excluded.model, created_at = excluded.created_at`,
		key, c.Content, c.Model, c.CreatedAt.UnixMilli(),
	)
	return err
}
