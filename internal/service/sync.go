// Package service implements the sync orchestration and login flows on
// top of the API client, credential store and health store.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/libresync/libresync/internal/metrics"
	"github.com/libresync/libresync/internal/models"
	"github.com/libresync/libresync/internal/normalize"
)

// ConnectionsFetcher fetches the followed connections and their latest
// readings.
type ConnectionsFetcher interface {
	Connections(ctx context.Context, ticket *models.AuthTicket, userID string) (*models.ConnectionsResult, error)
}

// CredentialStore persists the session ticket and account identity
// between runs.
type CredentialStore interface {
	Load(ctx context.Context) (*models.AuthTicket, *models.User)
	SaveTicket(ctx context.Context, ticket *models.AuthTicket) error
	SaveUser(ctx context.Context, user *models.User) error
}

// ReadingStore writes normalized readings to the health store.
type ReadingStore interface {
	InsertReading(ctx context.Context, reading models.GlucoseReading) error
}

// TimestampNormalizer resolves a raw factory timestamp to an instant.
type TimestampNormalizer interface {
	Timestamp(raw string) normalize.Result
}

// WearableMirror pushes a measurement to the companion device channel.
type WearableMirror interface {
	Publish(m *models.GlucoseMeasurement) error
}

// Sentinel failures for accounts that return nothing to sync.
var (
	ErrNoConnections = errors.New("account has no connections")
	ErrNoMeasurement = errors.New("connection has no measurement")
)

// LastReading summarizes the most recently synced measurement.
type LastReading struct {
	ValueMgPerDl int       `json:"value_mg_per_dl"`
	TrendArrow   int       `json:"trend_arrow"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// Status is a point-in-time snapshot of the sync state, served by the
// operational endpoint and the CLI.
type Status struct {
	LoggedIn     bool         `json:"logged_in"`
	UserEmail    string       `json:"user_email,omitempty"`
	TokenExpires int64        `json:"token_expires,omitempty"`
	Runs         uint64       `json:"runs"`
	Failures     uint64       `json:"failures"`
	LastRunAt    *time.Time   `json:"last_run_at,omitempty"`
	LastError    string       `json:"last_error,omitempty"`
	LastReading  *LastReading `json:"last_reading,omitempty"`
}

// SyncService runs the fetch-normalize-store pipeline. Runs are expected
// to be dispatched one at a time; the internal lock only guards the
// status snapshot against concurrent readers.
type SyncService struct {
	fetcher    ConnectionsFetcher
	creds      CredentialStore
	readings   ReadingStore
	normalizer TimestampNormalizer
	mirror     WearableMirror
	rec        metrics.Recorder
	origin     string
	log        *zap.Logger

	mu          sync.Mutex
	runs        uint64
	failures    uint64
	lastRunAt   time.Time
	lastError   string
	lastReading *LastReading
}

// NewSyncService constructs a SyncService. origin is recorded on every
// written reading as the producing application.
func NewSyncService(
	fetcher ConnectionsFetcher,
	creds CredentialStore,
	readings ReadingStore,
	normalizer TimestampNormalizer,
	mirror WearableMirror,
	rec metrics.Recorder,
	origin string,
	log *zap.Logger,
) *SyncService {
	return &SyncService{
		fetcher:    fetcher,
		creds:      creds,
		readings:   readings,
		normalizer: normalizer,
		mirror:     mirror,
		rec:        rec,
		origin:     origin,
		log:        log,
	}
}

// RunOnce executes one sync run: fetch the connections, persist the
// rotated ticket, normalize the first connection's latest measurement,
// write it to the health store and mirror it to the wearable. Every step
// up to the health-store write fails the run; the mirror is best effort.
func (s *SyncService) RunOnce(ctx context.Context) error {
	start := time.Now()
	log := s.log.With(zap.String("run_id", uuid.NewString()))
	log.Info("starting sync run")

	ticket, user := s.creds.Load(ctx)
	userID := ""
	if user != nil {
		userID = user.ID
	}

	result, err := s.fetcher.Connections(ctx, ticket, userID)
	if err != nil {
		return s.fail(start, log, fmt.Errorf("fetch connections: %w", err))
	}

	// The response rotates the ticket; the presented one stops working,
	// so losing the new one here would strand the session.
	if result.Ticket != nil && result.Ticket.Token != "" {
		if err := s.creds.SaveTicket(ctx, result.Ticket); err != nil {
			return s.fail(start, log, fmt.Errorf("persist rotated ticket: %w", err))
		}
	}

	if len(result.Data) == 0 {
		return s.fail(start, log, ErrNoConnections)
	}
	gm := result.Data[0].GlucoseMeasurement
	if gm == nil {
		return s.fail(start, log, ErrNoMeasurement)
	}

	norm := s.normalizer.Timestamp(gm.FactoryTimestamp)
	s.rec.RecordTimestampSource(norm.Source.String())

	reading := models.GlucoseReading{
		RecordedAt:     norm.Time,
		ValueMgPerDl:   gm.ValueInMgPerDl,
		SpecimenSource: models.SpecimenInterstitialFluid,
		RelationToMeal: models.MealRelationUnknown,
		Origin:         s.origin,
	}
	if err := s.readings.InsertReading(ctx, reading); err != nil {
		return s.fail(start, log, fmt.Errorf("write health record: %w", err))
	}

	if err := s.mirror.Publish(gm); err != nil {
		log.Warn("wearable mirror failed", zap.Error(err))
		s.rec.RecordWearableFailure()
	}

	s.succeed(start, gm, norm.Time)
	log.Info("sync run complete",
		zap.Int("value_mg_per_dl", gm.ValueInMgPerDl),
		zap.Time("recorded_at", norm.Time),
		zap.String("timestamp_source", norm.Source.String()))
	return nil
}

// Status reports the stored login state and the accumulated run counters.
func (s *SyncService) Status(ctx context.Context) Status {
	ticket, user := s.creds.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		LoggedIn:    ticket != nil,
		Runs:        s.runs,
		Failures:    s.failures,
		LastError:   s.lastError,
		LastReading: s.lastReading,
	}
	if ticket != nil {
		st.TokenExpires = ticket.Expires
	}
	if user != nil {
		st.UserEmail = user.Email
	}
	if !s.lastRunAt.IsZero() {
		at := s.lastRunAt
		st.LastRunAt = &at
	}
	return st
}

func (s *SyncService) fail(start time.Time, log *zap.Logger, err error) error {
	log.Error("sync run failed", zap.Error(err))

	s.mu.Lock()
	s.runs++
	s.failures++
	s.lastRunAt = time.Now()
	s.lastError = err.Error()
	s.mu.Unlock()

	s.rec.RecordSyncFailure(time.Since(start))
	return err
}

func (s *SyncService) succeed(start time.Time, gm *models.GlucoseMeasurement, at time.Time) {
	s.mu.Lock()
	s.runs++
	s.lastRunAt = time.Now()
	s.lastError = ""
	s.lastReading = &LastReading{
		ValueMgPerDl: gm.ValueInMgPerDl,
		TrendArrow:   gm.TrendArrow,
		RecordedAt:   at,
	}
	s.mu.Unlock()

	s.rec.RecordSyncSuccess(time.Since(start))
	s.rec.SetLastReading(gm.ValueInMgPerDl, at)
}
