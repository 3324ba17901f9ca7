package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org"
	maxRetries     = 2 // 3 attempts total
)

// Place is one forward-geocoding result.
type Place struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label"`
}

// Client talks to a Nominatim-format geocoding endpoint. Failures are
// non-fatal for reverse lookups: the caller gets a coordinate-literal
// fallback address instead of an error.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Log        *logrus.Logger
}

func NewClient(baseURL string, log *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Log:        log,
	}
}

// Reverse resolves a coordinate to a human-readable address. It never fails:
// after bounded retries it falls back to the coordinate literal.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) string {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))

	var result struct {
		DisplayName string `json:"display_name"`
	}
	err := c.get(ctx, "/reverse", params, &result)
	if err != nil || result.DisplayName == "" {
		if err != nil {
			c.Log.Warnf("reverse geocoding failed, using coordinate fallback: %v", err)
		}
		return FallbackAddress(lat, lng)
	}
	return result.DisplayName
}

// Search resolves partial text into a ranked list of places.
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("q", query)

	var results []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := c.get(ctx, "/search", params, &results); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lng, lngErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lngErr != nil {
			continue
		}
		places = append(places, Place{Latitude: lat, Longitude: lng, Label: r.DisplayName})
	}
	return places, nil
}

// FallbackAddress is the coordinate-literal address used when geocoding is
// unavailable.
func FallbackAddress(lat, lng float64) string {
	return fmt.Sprintf("%.5f, %.5f", lat, lng)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("geocoder returned status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.Retry(op, bo)
}
