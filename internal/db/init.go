package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS glucose_readings (
    id UUID PRIMARY KEY,
    recorded_at TIMESTAMPTZ NOT NULL,
    tz_offset_seconds INT NOT NULL,
    value_mg_per_dl INT NOT NULL,
    specimen_source TEXT NOT NULL,
    relation_to_meal TEXT NOT NULL,
    origin TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS glucose_readings_recorded_at_idx
    ON glucose_readings (recorded_at);
`

func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}
