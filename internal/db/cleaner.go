package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartRetentionCleaner periodically deletes readings older than the
// retention window. A retention of zero or less disables the cleaner.
func StartRetentionCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	if retention <= 0 {
		log.Info("reading retention disabled, keeping readings forever")
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				res, err := db.ExecContext(ctx, `
                    DELETE FROM glucose_readings
                     WHERE recorded_at < $1
                `, cutoff)
				if err != nil {
					log.Error("failed to clean aged readings", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned aged readings", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
