package bonus

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/example/territory-run/internal/models"
)

type fakeActivity struct{ n int }

func (f *fakeActivity) ActiveTeammates(ctx context.Context, teamID string, window time.Duration) (int, error) {
	return f.n, nil
}

type fakeWeather struct {
	reading models.WeatherReading
	found   bool
}

func (f *fakeWeather) Latest(ctx context.Context, territoryID string) (models.WeatherReading, bool, error) {
	return f.reading, f.found, nil
}

func calc(n int, w fakeWeather, at time.Time) *Calculator {
	c := NewCalculator(&fakeActivity{n: n}, &w)
	c.Now = func() time.Time { return at }
	return c
}

var noonUTC = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestTeamBonus(t *testing.T) {
	cases := []struct {
		teammates int
		want      float64
	}{
		{0, 1.0},
		{3, 1.3},
		{5, 1.5},
		{9, 1.5}, // capped
	}
	for _, tc := range cases {
		c := calc(tc.teammates, fakeWeather{}, noonUTC)
		got, err := c.TeamBonus(context.Background(), "team")
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%d teammates: expected %f, got %f", tc.teammates, tc.want, got)
		}
	}
}

func TestEnvironmentalBonusNight(t *testing.T) {
	cases := []struct {
		hour int
		want float64
	}{
		{12, 1.0},
		{22, 1.2},
		{23, 1.2},
		{0, 1.2},
		{5, 1.2},
		{6, 1.0},
	}
	for _, tc := range cases {
		at := time.Date(2025, 6, 1, tc.hour, 30, 0, 0, time.UTC)
		c := calc(0, fakeWeather{}, at)
		got, err := c.EnvironmentalBonus(context.Background(), "terr")
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("hour %d: expected %f, got %f", tc.hour, tc.want, got)
		}
	}
}

func TestEnvironmentalBonusWeather(t *testing.T) {
	cases := []struct {
		name    string
		reading models.WeatherReading
		want    float64
	}{
		{"clear mild", models.WeatherReading{Condition: "Clear", TempC: 20}, 1.0},
		{"rain", models.WeatherReading{Condition: "Light Rain", TempC: 15}, 1.15},
		{"snow", models.WeatherReading{Condition: "Snow", TempC: 5}, 1.25},
		{"rain and snow stack", models.WeatherReading{Condition: "rain turning to snow", TempC: 2}, 1.4},
		{"freezing", models.WeatherReading{Condition: "Clear", TempC: -3}, 1.2},
		{"heat", models.WeatherReading{Condition: "Clear", TempC: 31}, 1.15},
		{"snow below zero", models.WeatherReading{Condition: "Heavy Snow", TempC: -5}, 1.45},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := calc(0, fakeWeather{reading: tc.reading, found: true}, noonUTC)
			got, err := c.EnvironmentalBonus(context.Background(), "terr")
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("expected %f, got %f", tc.want, got)
			}
		})
	}
}

func TestNoWeatherReadingMeansNoWeatherBonus(t *testing.T) {
	c := calc(0, fakeWeather{found: false}, noonUTC)
	got, err := c.EnvironmentalBonus(context.Background(), "terr")
	if err != nil {
		t.Fatal(err)
	}
	if got != 1.0 {
		t.Fatalf("expected neutral 1.0, got %f", got)
	}
}

func TestTotalBonusMultiplies(t *testing.T) {
	// 3 teammates at night in snow: 1.3 * (1 + 0.2 + 0.25)
	at := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	c := calc(3, fakeWeather{reading: models.WeatherReading{Condition: "snow", TempC: 5}, found: true}, at)
	got, err := c.TotalBonus(context.Background(), "team", "terr")
	if err != nil {
		t.Fatal(err)
	}
	want := 1.3 * 1.45
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, got)
	}
}

func TestPathPoints(t *testing.T) {
	cases := []struct {
		coverage float64
		bonus    float64
		want     int
	}{
		{70, 1.0, 70},
		{70, 1.3, 91},
		{60, 1.0, 60},
		{99.6, 1.0, 100},
		{62.5, 1.0, 63}, // rounds half away from zero
	}
	for _, tc := range cases {
		if got := PathPoints(tc.coverage, tc.bonus); got != tc.want {
			t.Fatalf("coverage %f bonus %f: expected %d, got %d", tc.coverage, tc.bonus, tc.want, got)
		}
	}
}
