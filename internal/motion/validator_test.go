package motion

import (
	"errors"
	"testing"
	"time"

	"github.com/example/territory-run/internal/models"
)

// latDegreesForMeters converts a northward distance to degrees of latitude.
const latDegreesForMeters = 1.0 / 111194.92664455873

var base = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func sample(northM float64, at time.Time, accuracy float64) models.GpsSample {
	return models.GpsSample{
		Loc:       models.Coord{Lat: northM * latDegreesForMeters, Lon: 0},
		AccuracyM: accuracy,
		Timestamp: at,
	}
}

func reason(t *testing.T, err error) string {
	t.Helper()
	var v *ViolationError
	if !errors.As(err, &v) {
		t.Fatalf("expected ViolationError, got %v", err)
	}
	return v.Reason
}

func TestEmptyAndSingleSequencesAreValid(t *testing.T) {
	v := New()
	if err := v.Validate(nil); err != nil {
		t.Fatalf("empty sequence: %v", err)
	}
	if err := v.Validate([]models.GpsSample{sample(0, base, 5)}); err != nil {
		t.Fatalf("single sample: %v", err)
	}
}

func TestPlausibleRunPasses(t *testing.T) {
	// 100 m in 60 s is 6 km/h
	v := New()
	seq := []models.GpsSample{
		sample(0, base, 5),
		sample(100, base.Add(60*time.Second), 5),
	}
	if err := v.Validate(seq); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestTeleportationRejected(t *testing.T) {
	// 500 m in 10 s is 180 km/h, regardless of accuracy quality
	v := New()
	seq := []models.GpsSample{
		sample(0, base, 5),
		sample(500, base.Add(10*time.Second), 5),
	}
	err := v.Validate(seq)
	if got := reason(t, err); got != ReasonTooFast {
		t.Fatalf("expected %s, got %s", ReasonTooFast, got)
	}
}

func TestAccuracyGate(t *testing.T) {
	// plausible speed but a 31 m fix
	v := New()
	seq := []models.GpsSample{
		sample(0, base, 5),
		sample(100, base.Add(60*time.Second), 31),
	}
	err := v.Validate(seq)
	if got := reason(t, err); got != ReasonAccuracy {
		t.Fatalf("expected %s, got %s", ReasonAccuracy, got)
	}
}

func TestNonPositiveElapsedIsInvalidNotPanic(t *testing.T) {
	v := New()
	for _, delta := range []time.Duration{0, -time.Second} {
		seq := []models.GpsSample{
			sample(0, base, 5),
			sample(10, base.Add(delta), 5),
		}
		err := v.Validate(seq)
		if got := reason(t, err); got != ReasonTimestamps {
			t.Fatalf("delta %v: expected %s, got %s", delta, ReasonTimestamps, got)
		}
	}
}

func TestStrictMinimumSpeedUsesDeviceSpeed(t *testing.T) {
	v := New()
	slow := 1.0 // m/s, 3.6 km/h
	seq := []models.GpsSample{
		sample(0, base, 5),
		{
			Loc:       models.Coord{Lat: 100 * latDegreesForMeters},
			AccuracyM: 5,
			SpeedMps:  &slow,
			Timestamp: base.Add(60 * time.Second),
		},
	}
	// the inferred-speed check alone accepts it
	if err := v.Validate(seq); err != nil {
		t.Fatalf("base validation should pass: %v", err)
	}
	err := v.ValidateStrict(seq)
	if got := reason(t, err); got != ReasonTooSlow {
		t.Fatalf("expected %s, got %s", ReasonTooSlow, got)
	}
}

func TestStrictWithoutDeviceSpeedFallsBackToPairCheck(t *testing.T) {
	v := New()
	seq := []models.GpsSample{
		sample(0, base, 5),
		sample(100, base.Add(60*time.Second), 5),
	}
	if err := v.ValidateStrict(seq); err != nil {
		t.Fatalf("no device speed present, expected valid: %v", err)
	}
}

func TestRejectsOnFirstViolationInWindow(t *testing.T) {
	v := New()
	seq := []models.GpsSample{
		sample(0, base, 5),
		sample(500, base.Add(10*time.Second), 5),  // teleport here
		sample(600, base.Add(70*time.Second), 5),  // fine afterwards
	}
	var violation *ViolationError
	if !errors.As(v.Validate(seq), &violation) {
		t.Fatal("expected rejection")
	}
	if violation.Index != 1 {
		t.Fatalf("expected first violation at index 1, got %d", violation.Index)
	}
}
