package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn}, nil
}

// InitSchema creates the video_jobs table and applies additive migrations.
// Both statements are idempotent so the service can run it on every start.
func (db *DB) InitSchema(ctx context.Context) error {
	const create = `
		CREATE TABLE IF NOT EXISTS video_jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			source_url TEXT NOT NULL UNIQUE,
			title TEXT,
			status TEXT DEFAULT 'pending',
			category TEXT,
			priority TEXT DEFAULT 'normal',
			audio_path TEXT,
			video_path TEXT,
			thumbnail_path TEXT,
			metadata JSONB DEFAULT '{}',
			retry_count INTEGER DEFAULT 0,
			error_message TEXT,
			format TEXT,
			region TEXT,
			aggregation TEXT,
			pub_date TIMESTAMP WITH TIME ZONE,
			published BOOLEAN DEFAULT FALSE,
			metadata_post JSONB DEFAULT '{}',
			platform_id TEXT,
			metrics JSONB DEFAULT '{}',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)
	`

	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create video_jobs table: %w", err)
	}

	// Additive migrations for tables created before these columns existed.
	migrations := []string{
		`ALTER TABLE video_jobs ADD COLUMN IF NOT EXISTS format TEXT`,
		`ALTER TABLE video_jobs ADD COLUMN IF NOT EXISTS region TEXT`,
		`ALTER TABLE video_jobs ADD COLUMN IF NOT EXISTS aggregation TEXT`,
		`ALTER TABLE video_jobs ADD COLUMN IF NOT EXISTS pub_date TIMESTAMP WITH TIME ZONE`,
		`ALTER TABLE video_jobs ADD COLUMN IF NOT EXISTS published BOOLEAN DEFAULT FALSE`,
		`ALTER TABLE video_jobs ADD COLUMN IF NOT EXISTS metadata_post JSONB DEFAULT '{}'`,
		`ALTER TABLE video_jobs ADD COLUMN IF NOT EXISTS platform_id TEXT`,
		`ALTER TABLE video_jobs ADD COLUMN IF NOT EXISTS metrics JSONB DEFAULT '{}'`,
		`ALTER TABLE video_jobs ADD COLUMN IF NOT EXISTS error_message TEXT`,
		`CREATE UNIQUE INDEX IF NOT EXISTS video_jobs_source_url_key ON video_jobs (source_url)`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed (%s): %w", m, err)
		}
	}

	return nil
}
