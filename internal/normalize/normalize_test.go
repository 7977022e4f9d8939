package normalize

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func fixedNormalizer(now time.Time, loc *time.Location) *Normalizer {
	return &Normalizer{
		now: func() time.Time { return now },
		loc: loc,
		log: zap.NewNop(),
	}
}

func TestTimestampPattern(t *testing.T) {
	n := fixedNormalizer(time.Unix(0, 0), time.FixedZone("TST", 3*3600))

	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "afternoon reading",
			raw:  "3/21/2024 2:05:30 PM",
			want: time.Date(2024, 3, 21, 14, 5, 30, 0, time.UTC),
		},
		{
			name: "single digit fields",
			raw:  "1/2/2024 3:04:05 AM",
			want: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			name: "noon",
			raw:  "7/4/2023 12:00:00 PM",
			want: time.Date(2023, 7, 4, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Timestamp(tt.raw)
			if got.Source != SourcePattern {
				t.Fatalf("expected pattern source, got %s", got.Source)
			}
			if !got.Time.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got.Time)
			}
			if _, offset := got.Time.Zone(); offset != 0 {
				t.Errorf("expected zero offset, got %d", offset)
			}
		})
	}
}

func TestTimestampEpochMillis(t *testing.T) {
	loc := time.FixedZone("TST", 3*3600)
	n := fixedNormalizer(time.Unix(0, 0), loc)

	got := n.Timestamp("1710000000000")
	if got.Source != SourceEpochMillis {
		t.Fatalf("expected epoch source, got %s", got.Source)
	}
	want := time.UnixMilli(1710000000000)
	if !got.Time.Equal(want) {
		t.Errorf("expected instant %v, got %v", want, got.Time)
	}
	if _, offset := got.Time.Zone(); offset != 3*3600 {
		t.Errorf("expected reading in the injected zone, offset %d", offset)
	}
}

func TestTimestampClockFallback(t *testing.T) {
	loc := time.FixedZone("TST", -2*3600)
	now := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	n := fixedNormalizer(now, loc)

	for _, raw := range []string{"garbage", "", "3/21/2024", "2:05:30 PM"} {
		got := n.Timestamp(raw)
		if got.Source != SourceClock {
			t.Fatalf("raw %q: expected clock source, got %s", raw, got.Source)
		}
		if !got.Time.Equal(now) {
			t.Errorf("raw %q: expected injected now, got %v", raw, got.Time)
		}
	}
}

func TestTimestampClockFallbackLogs(t *testing.T) {
	var buf bytes.Buffer
	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(&buf),
		zapcore.WarnLevel,
	)

	n := &Normalizer{
		now: time.Now,
		loc: time.UTC,
		log: zap.New(core),
	}
	n.Timestamp("garbage")

	if !strings.Contains(buf.String(), "unparseable factory timestamp") {
		t.Errorf("expected fallback warning, got:\n%s", buf.String())
	}
}

func TestSourceString(t *testing.T) {
	if SourcePattern.String() != "pattern" ||
		SourceEpochMillis.String() != "epoch_millis" ||
		SourceClock.String() != "clock" {
		t.Error("unexpected source names")
	}
	if Source(42).String() != "unknown" {
		t.Error("expected unknown for out-of-range source")
	}
}
