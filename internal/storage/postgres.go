package storage

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Postgres stores transcripts, features and completions in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres creates a pgx pool and runs schema migrations.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := &Postgres{pool: pool}
	if err := db.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("postgres connected", slog.String("addr", config.ConnConfig.Host))
	return db, nil
}

func (db *Postgres) Close() {
	db.pool.Close()
}

func (db *Postgres) runMigrations(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := db.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute %s: %w", entry.Name(), err)
		}
		slog.Info("migration applied", slog.String("file", entry.Name()))
	}
	return nil
}

const transcriptColumns = `id, COALESCE(video_id,''), COALESCE(url,''), COALESCE(title,''), COALESCE(language,''),
	COALESCE(source_model,''), text, COALESCE(srt,''), COALESCE(duration_seconds,0), created_at`

func scanTranscript(row pgx.Row) (*Transcript, error) {
	var t Transcript
	err := row.Scan(&t.ID, &t.VideoID, &t.URL, &t.Title, &t.Language,
		&t.SourceModel, &t.Text, &t.SRT, &t.DurationSeconds, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (db *Postgres) GetTranscript(ctx context.Context, id string) (*Transcript, error) {
	return scanTranscript(db.pool.QueryRow(ctx,
		`SELECT `+transcriptColumns+` FROM transcripts WHERE id = $1`, id))
}

func (db *Postgres) FindTranscript(ctx context.Context, videoID, url string) (*Transcript, error) {
	if videoID == "" && url == "" {
		return nil, ErrNotFound
	}
	return scanTranscript(db.pool.QueryRow(ctx,
		`SELECT `+transcriptColumns+` FROM transcripts
		 WHERE ($1::text <> '' AND video_id = $1::text) OR ($2::text <> '' AND url = $2::text)
		 ORDER BY created_at DESC LIMIT 1`, videoID, url))
}

func (db *Postgres) CreateTranscript(ctx context.Context, t *Transcript) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO transcripts (id, video_id, url, title, language, source_model, text, srt, duration_seconds, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.VideoID, t.URL, t.Title, t.Language, t.SourceModel, t.Text, t.SRT, t.DurationSeconds, t.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert transcript: %w", err)
	}
	return t.ID, nil
}

func (db *Postgres) SaveFeature(ctx context.Context, f Feature) error {
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO transcript_features (transcript_id, kind, payload, model, updated_at)
		 SELECT $1::text, $2::text, $3::jsonb, $4::text, $5::timestamptz
		 WHERE EXISTS (SELECT 1 FROM transcripts WHERE id = $1::text)
		 ON CONFLICT (transcript_id, kind)
		 DO UPDATE SET payload = EXCLUDED.payload, model = EXCLUDED.model, updated_at = EXCLUDED.updated_at`,
		f.TranscriptID, f.Kind, []byte(f.Payload), f.Model, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save feature: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *Postgres) Features(ctx context.Context, transcriptID string) ([]Feature, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT transcript_id, kind, payload, COALESCE(model,''), updated_at
		 FROM transcript_features WHERE transcript_id = $1 ORDER BY kind`, transcriptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Feature
	for rows.Next() {
		var f Feature
		var payload []byte
		if err := rows.Scan(&f.TranscriptID, &f.Kind, &payload, &f.Model, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.Payload = json.RawMessage(payload)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (db *Postgres) GetCompletion(ctx context.Context, key string, since time.Time) (*Completion, error) {
	var c Completion
	err := db.pool.QueryRow(ctx,
		`SELECT content, COALESCE(model,''), created_at FROM llm_completions
		 WHERE cache_key = $1 AND created_at >= $2`, key, since,
	).Scan(&c.Content, &c.Model, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *Postgres) PutCompletion(ctx context.Context, key string, c Completion) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO llm_completions (cache_key, content, model, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cache_key) DO UPDATE SET content = EXCLUDED.content, model = EXCLUDED.model, created_at = EXCLUDED.created_at`,
		key, c.Content, c.Model, c.CreatedAt,
	)
	return err
}
