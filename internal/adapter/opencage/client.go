package opencage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/couchcryptid/hotspot-map-service/internal/observability"
)

const defaultBaseURL = "https://api.opencagedata.com/geocode/v1/json"

// Client implements domain.Geocoder using the OpenCage Geocoding API.
type Client struct {
	apiKey      string
	language    string
	countryCode string
	httpClient  *http.Client
	baseURL     string
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// Options configures result localisation.
type Options struct {
	Language    string // e.g. "zh"
	CountryCode string // ISO 3166-1 alpha-2 hint, e.g. "tw"
}

// NewClient creates an OpenCage geocoding client.
func NewClient(apiKey string, timeout time.Duration, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:      apiKey,
		language:    opts.Language,
		countryCode: opts.CountryCode,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ReverseGeocode converts coordinates to an address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (domain.AddressInfo, error) {
	params := url.Values{
		"q":              {strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)},
		"key":            {c.apiKey},
		"limit":          {"1"},
		"no_annotations": {"1"},
	}
	if c.language != "" {
		params.Set("language", c.language)
	}
	if c.countryCode != "" {
		params.Set("countrycode", c.countryCode)
	}

	start := time.Now()
	info, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
	case info.Formatted == "":
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}
	return info, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.AddressInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.AddressInfo{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AddressInfo{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.AddressInfo{}, fmt.Errorf("opencage API error: status %d: %s", resp.StatusCode, body)
	}

	var ocResp response
	if err := json.NewDecoder(resp.Body).Decode(&ocResp); err != nil {
		return domain.AddressInfo{}, fmt.Errorf("decode response: %w", err)
	}

	if len(ocResp.Results) == 0 {
		c.logger.Debug("opencage returned no results", "status", ocResp.Status.Message)
		return domain.AddressInfo{}, nil
	}

	r := ocResp.Results[0]
	return domain.AddressInfo{
		Formatted: r.Formatted,
		Components: domain.AddressComponents{
			Country:       r.Components.Country,
			State:         r.Components.State,
			County:        r.Components.County,
			City:          r.Components.City,
			Town:          r.Components.Town,
			Village:       r.Components.Village,
			Suburb:        r.Components.Suburb,
			Neighbourhood: r.Components.Neighbourhood,
			Road:          r.Components.Road,
			HouseNumber:   r.Components.HouseNumber,
			Postcode:      r.Components.Postcode,
		},
		Confidence: r.Confidence,
	}, nil
}

// OpenCage API response types.

type response struct {
	Results []result `json:"results"`
	Status  status   `json:"status"`
}

type status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type result struct {
	Formatted  string     `json:"formatted"`
	Components components `json:"components"`
	Confidence int        `json:"confidence"` // 0-10, 10 is most precise
}

type components struct {
	Country       string `json:"country"`
	State         string `json:"state"`
	County        string `json:"county"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	Suburb        string `json:"suburb"`
	Neighbourhood string `json:"neighbourhood"`
	Road          string `json:"road"`
	HouseNumber   string `json:"house_number"`
	Postcode      string `json:"postcode"`
}
