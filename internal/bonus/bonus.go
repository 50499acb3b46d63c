// Package bonus turns team presence and local conditions into the score
// multiplier applied to coverage-based points.
package bonus

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/example/territory-run/internal/models"
)

// TeamActivity counts distinct team members whose most recent location ping
// falls within the window.
type TeamActivity interface {
	ActiveTeammates(ctx context.Context, teamID string, window time.Duration) (int, error)
}

// WeatherLookup returns the most recent recorded condition for a territory.
// The bool is false when no reading exists.
type WeatherLookup interface {
	Latest(ctx context.Context, territoryID string) (models.WeatherReading, bool, error)
}

const (
	// DefaultActivityWindow is how recent a teammate's ping must be to count.
	DefaultActivityWindow = 15 * time.Minute

	teamBonusPerMember = 0.1
	teamBonusCap       = 1.5
)

type Calculator struct {
	Activity TeamActivity
	Weather  WeatherLookup
	Window   time.Duration
	Now      func() time.Time
}

func NewCalculator(activity TeamActivity, weather WeatherLookup) *Calculator {
	return &Calculator{Activity: activity, Weather: weather, Window: DefaultActivityWindow, Now: time.Now}
}

// TeamBonus is 1 + 0.1 per active teammate, capped at 1.5.
func (c *Calculator) TeamBonus(ctx context.Context, teamID string) (float64, error) {
	n, err := c.Activity.ActiveTeammates(ctx, teamID, c.Window)
	if err != nil {
		return 0, err
	}
	b := 1 + teamBonusPerMember*float64(n)
	if b > teamBonusCap {
		b = teamBonusCap
	}
	return b, nil
}

// EnvironmentalBonus starts at 1.0 and stacks night, condition, and
// temperature additions. Rain and snow both add when both substrings are
// present; that stacking is intentional.
func (c *Calculator) EnvironmentalBonus(ctx context.Context, territoryID string) (float64, error) {
	b := 1.0
	if h := c.Now().Hour(); h >= 22 || h < 6 {
		b += 0.2
	}

	w, ok, err := c.Weather.Latest(ctx, territoryID)
	if err != nil {
		return 0, err
	}
	if ok {
		cond := strings.ToLower(w.Condition)
		if strings.Contains(cond, "rain") {
			b += 0.15
		}
		if strings.Contains(cond, "snow") {
			b += 0.25
		}
		if w.TempC < 0 {
			b += 0.2
		} else if w.TempC > 30 {
			b += 0.15
		}
	}
	return b, nil
}

// TotalBonus multiplies the team and environmental factors.
func (c *Calculator) TotalBonus(ctx context.Context, teamID, territoryID string) (float64, error) {
	tb, err := c.TeamBonus(ctx, teamID)
	if err != nil {
		return 0, err
	}
	eb, err := c.EnvironmentalBonus(ctx, territoryID)
	if err != nil {
		return 0, err
	}
	return tb * eb, nil
}

// PathPoints converts a coverage percentage and total bonus into the integer
// award. Coverage is already a 0-100 number; the award scale is tied to
// percentage, not to the territory's base value.
func PathPoints(coveragePercent, totalBonus float64) int {
	return int(math.Round(coveragePercent * totalBonus))
}
