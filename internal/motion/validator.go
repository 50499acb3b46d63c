// Package motion screens ordered GPS sample sequences for physically
// implausible movement: teleportation, low-quality fixes, and speeds outside
// a runner's band.
package motion

import (
	"fmt"

	"github.com/example/territory-run/internal/geo"
	"github.com/example/territory-run/internal/models"
)

// Violation reasons.
const (
	ReasonTimestamps = "timestamp_not_increasing"
	ReasonAccuracy   = "accuracy_exceeded"
	ReasonTooFast    = "speed_too_high"
	ReasonTooSlow    = "speed_too_low"
)

// ViolationError reports the first failing pair in a sequence. Index is the
// position of the newer sample of the pair.
type ViolationError struct {
	Reason    string
	Index     int
	SpeedKmh  float64
	AccuracyM float64
}

func (e *ViolationError) Error() string {
	switch e.Reason {
	case ReasonAccuracy:
		return fmt.Sprintf("motion: sample %d accuracy %.1fm exceeds tolerance", e.Index, e.AccuracyM)
	case ReasonTimestamps:
		return fmt.Sprintf("motion: sample %d timestamp not after previous", e.Index)
	default:
		return fmt.Sprintf("motion: sample %d implies %.1f km/h (%s)", e.Index, e.SpeedKmh, e.Reason)
	}
}

// Validator holds the anti-cheat thresholds. Zero values are not usable;
// construct with New.
type Validator struct {
	MaxSpeedKmh  float64
	MinSpeedKmh  float64
	MaxAccuracyM float64
}

// Defaults for a runner.
const (
	DefaultMaxSpeedKmh  = 25.0
	DefaultMinSpeedKmh  = 6.0
	DefaultMaxAccuracyM = 30.0
)

func New() *Validator {
	return &Validator{
		MaxSpeedKmh:  DefaultMaxSpeedKmh,
		MinSpeedKmh:  DefaultMinSpeedKmh,
		MaxAccuracyM: DefaultMaxAccuracyM,
	}
}

// Validate checks every consecutive pair of the sequence (most recent last)
// and fails on the first violation. Sequences of length 0 or 1 are trivially
// valid.
func (v *Validator) Validate(samples []models.GpsSample) error {
	return v.validate(samples, false)
}

// ValidateStrict applies the same checks and additionally enforces the
// minimum plausible speed for pairs where the newer sample carries a
// device-reported speed. Used inside an active capture window to catch
// walk-then-teleport patterns.
func (v *Validator) ValidateStrict(samples []models.GpsSample) error {
	return v.validate(samples, true)
}

func (v *Validator) validate(samples []models.GpsSample, strict bool) error {
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]

		if cur.AccuracyM > v.MaxAccuracyM {
			return &ViolationError{Reason: ReasonAccuracy, Index: i, AccuracyM: cur.AccuracyM}
		}

		elapsed := cur.Timestamp.Sub(prev.Timestamp).Seconds()
		if elapsed <= 0 {
			// Duplicate or out-of-order timestamps are a validation
			// failure, never a division error.
			return &ViolationError{Reason: ReasonTimestamps, Index: i}
		}

		speed := geo.SpeedKmh(geo.Haversine(prev.Loc, cur.Loc), elapsed)
		if speed > v.MaxSpeedKmh {
			return &ViolationError{Reason: ReasonTooFast, Index: i, SpeedKmh: speed}
		}

		if strict && cur.SpeedMps != nil {
			if device := *cur.SpeedMps * 3.6; device < v.MinSpeedKmh {
				return &ViolationError{Reason: ReasonTooSlow, Index: i, SpeedKmh: device}
			}
		}
	}
	return nil
}
