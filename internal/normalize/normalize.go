// Package normalize turns the cloud's factory timestamps into concrete
// instants. The upstream format is undocumented and has drifted before, so
// every reading resolves to a time through an ordered fallback chain and
// the caller is told which tier produced it.
package normalize

import (
	"strconv"
	"time"

	"go.uber.org/zap"
)

// factoryLayout matches the observed FactoryTimestamp format, e.g.
// "3/21/2024 2:05:30 PM". The sensor clock reports UTC without an offset,
// so a zero offset is appended before parsing.
const factoryLayout = "1/2/2006 3:4:5 PM -0700"

// Source names the tier that produced a normalized time.
type Source int

const (
	// SourcePattern means the timestamp matched the expected format.
	SourcePattern Source = iota
	// SourceEpochMillis means the raw value was a millisecond epoch.
	SourceEpochMillis
	// SourceClock means nothing parsed and the wall clock was used. The
	// reading is preserved at a degraded accuracy rather than dropped.
	SourceClock
)

// String returns the tier name used in logs and metric labels.
func (s Source) String() string {
	switch s {
	case SourcePattern:
		return "pattern"
	case SourceEpochMillis:
		return "epoch_millis"
	case SourceClock:
		return "clock"
	}
	return "unknown"
}

// Result is a normalized instant together with the tier that produced it.
type Result struct {
	Time   time.Time
	Source Source
}

// Normalizer resolves raw timestamps. The zero value is not usable; use New.
type Normalizer struct {
	now func() time.Time
	loc *time.Location
	log *zap.Logger
}

// New returns a Normalizer resolving epoch and clock tiers in the local zone.
func New(log *zap.Logger) *Normalizer {
	return &Normalizer{
		now: time.Now,
		loc: time.Local,
		log: log,
	}
}

// Timestamp normalizes a raw factory timestamp. It never fails: the last
// tier always produces a value.
func (n *Normalizer) Timestamp(raw string) Result {
	if t, err := time.Parse(factoryLayout, raw+" +0000"); err == nil {
		return Result{Time: t, Source: SourcePattern}
	}

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Result{Time: time.UnixMilli(ms).In(n.loc), Source: SourceEpochMillis}
	}

	n.log.Warn("unparseable factory timestamp, falling back to wall clock",
		zap.String("raw", raw))
	return Result{Time: n.now().In(n.loc), Source: SourceClock}
}
