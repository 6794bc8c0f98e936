// Package openmeteo implements the forecast-provider boundary against the
// Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/forecast-mart-etl/internal/domain"
	"github.com/couchcryptid/forecast-mart-etl/internal/observability"
)

// hourlyFields are the hourly variables requested from the provider, in the
// order the pipeline consumes them.
const hourlyFields = "precipitation_probability,precipitation,temperature_2m,wind_speed_10m"

// Client fetches hourly forecasts for one location and run date.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	horizonHours int
	clock        clockwork.Clock
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates an Open-Meteo client. The timeout bounds the single
// fetch; there are no retries.
func NewClient(baseURL string, timeout time.Duration, horizonHours int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: timeout},
		horizonHours: horizonHours,
		clock:        clockwork.NewRealClock(),
		metrics:      metrics,
		logger:       logger,
	}
}

// Fetch performs one provider request for the location's hourly forecast and
// returns the raw payload tagged with the run date and fetch time. The
// payload is checked for the minimum hourly fields but otherwise returned
// verbatim for the caller to persist.
func (c *Client) Fetch(ctx context.Context, loc domain.LocationSpec, runDate time.Time) (domain.RawForecast, error) {
	params := url.Values{
		"latitude":       {strconv.FormatFloat(loc.Latitude, 'f', 4, 64)},
		"longitude":      {strconv.FormatFloat(loc.Longitude, 'f', 4, 64)},
		"hourly":         {hourlyFields},
		"forecast_hours": {strconv.Itoa(c.horizonHours)},
		"timezone":       {"UTC"},
	}
	fullURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.RawForecast{}, &domain.ProviderError{Op: "create request", Err: err}
	}

	c.logger.Info("provider request", "url", c.baseURL, "run_date", domain.FormatDate(runDate))
	start := c.clock.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RawForecast{}, &domain.ProviderError{Op: "forecast request", Err: err}
	}
	defer resp.Body.Close()

	c.metrics.ProviderLatency.Observe(c.clock.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RawForecast{}, &domain.ProviderError{Op: "read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return domain.RawForecast{}, &domain.ProviderError{
			Op:  "forecast request",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, body),
		}
	}

	if err := domain.ValidateRawShape(body); err != nil {
		return domain.RawForecast{}, err
	}

	return domain.RawForecast{
		RunDate:   runDate,
		FetchedAt: c.clock.Now().UTC(),
		Payload:   body,
	}, nil
}

// SetClock swaps the time source, for tests needing deterministic fetch
// timestamps. Pass nil to reset to the real clock.
func (c *Client) SetClock(clock clockwork.Clock) {
	if clock == nil {
		c.clock = clockwork.NewRealClock()
		return
	}
	c.clock = clock
}
