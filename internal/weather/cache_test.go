package weather

import (
	"context"
	"testing"
	"time"

	"github.com/example/territory-run/internal/models"
)

type countingSource struct {
	calls   int
	reading models.WeatherReading
	found   bool
}

func (c *countingSource) Latest(ctx context.Context, territoryID string) (models.WeatherReading, bool, error) {
	c.calls++
	return c.reading, c.found, nil
}

func TestCacheServesFromStoreWithinTTL(t *testing.T) {
	src := &countingSource{reading: models.WeatherReading{Condition: "rain", TempC: 12}, found: true}
	c := NewCache(src, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r, ok, err := c.Latest(ctx, "terr-1")
		if err != nil {
			t.Fatal(err)
		}
		if !ok || r.Condition != "rain" {
			t.Fatalf("call %d: %+v ok=%v", i, r, ok)
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", src.calls)
	}
}

func TestCacheExpires(t *testing.T) {
	src := &countingSource{found: true}
	c := NewCache(src, time.Millisecond)
	ctx := context.Background()

	if _, _, err := c.Latest(ctx, "terr-1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, _, err := c.Latest(ctx, "terr-1"); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Fatalf("expected refetch after TTL, got %d calls", src.calls)
	}
}

func TestCacheRemembersMisses(t *testing.T) {
	src := &countingSource{found: false}
	c := NewCache(src, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, ok, err := c.Latest(ctx, "terr-1")
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Fatal("no reading expected")
		}
	}
	if src.calls != 1 {
		t.Fatalf("a miss is cacheable too, got %d calls", src.calls)
	}
}

func TestCacheKeysByTerritory(t *testing.T) {
	src := &countingSource{found: true}
	c := NewCache(src, time.Minute)
	ctx := context.Background()

	if _, _, err := c.Latest(ctx, "terr-1"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.Latest(ctx, "terr-2"); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Fatalf("distinct territories fetch separately, got %d calls", src.calls)
	}
}
