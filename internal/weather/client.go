package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/example/territory-run/internal/models"
)

// Client fetches the latest recorded condition for a territory from a
// weather HTTP service.
type Client struct {
	Endpoint string
	HTTP     *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{Endpoint: endpoint, HTTP: &http.Client{Timeout: 2 * time.Second}}
}

// Latest queries GET {endpoint}/latest?territory_id=... and returns the
// reading. A 404 from the service means no reading exists yet.
func (c *Client) Latest(ctx context.Context, territoryID string) (models.WeatherReading, bool, error) {
	u := fmt.Sprintf("%s/latest?territory_id=%s", c.Endpoint, url.QueryEscape(territoryID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.WeatherReading{}, false, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return models.WeatherReading{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.WeatherReading{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return models.WeatherReading{}, false, fmt.Errorf("weather service status %d", resp.StatusCode)
	}

	var out models.WeatherReading
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.WeatherReading{}, false, err
	}
	return out, true, nil
}
