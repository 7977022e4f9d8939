// Package repository provides persistence for glucose readings using a
// PostgreSQL database.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/libresync/libresync/internal/models"
)

// PostgresReadingRepository implements reading persistence against a
// PostgreSQL database.
type PostgresReadingRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresReadingRepository creates a new PostgresReadingRepository with
// the given database connection. db must be a valid *sql.DB connected to a
// PostgreSQL instance.
func NewPostgresReadingRepository(db *sql.DB) *PostgresReadingRepository {
	return &PostgresReadingRepository{DB: db}
}

// InsertReading stores one reading as a new row. Readings are never
// deduplicated; repeating a sync writes another row. An empty ID is
// assigned here.
//
//	ctx:     context for cancellation and deadlines
//	reading: the normalized reading to store
func (r *PostgresReadingRepository) InsertReading(ctx context.Context, reading models.GlucoseReading) error {
	id := reading.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, offset := reading.RecordedAt.Zone()

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO glucose_readings
		    (id, recorded_at, tz_offset_seconds, value_mg_per_dl, specimen_source, relation_to_meal, origin)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, reading.RecordedAt, offset, reading.ValueMgPerDl,
		string(reading.SpecimenSource), string(reading.RelationToMeal), reading.Origin)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// LatestReading returns the most recent stored reading, or nil when the
// store is empty. The stored zone offset is restored onto the instant.
func (r *PostgresReadingRepository) LatestReading(ctx context.Context) (*models.GlucoseReading, error) {
	var (
		reading models.GlucoseReading
		offset  int
		source  string
		meal    string
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, recorded_at, tz_offset_seconds, value_mg_per_dl, specimen_source, relation_to_meal, origin
		  FROM glucose_readings
		 ORDER BY recorded_at DESC
		 LIMIT 1
	`).Scan(&reading.ID, &reading.RecordedAt, &offset, &reading.ValueMgPerDl, &source, &meal, &reading.Origin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest reading: %w", err)
	}

	reading.RecordedAt = reading.RecordedAt.In(timeZoneFor(offset))
	reading.SpecimenSource = models.SpecimenSource(source)
	reading.RelationToMeal = models.MealRelation(meal)
	return &reading, nil
}

// CountReadings reports how many readings are stored.
func (r *PostgresReadingRepository) CountReadings(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM glucose_readings`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return count, nil
}

func timeZoneFor(offsetSeconds int) *time.Location {
	if offsetSeconds == 0 {
		return time.UTC
	}
	return time.FixedZone("", offsetSeconds)
}
