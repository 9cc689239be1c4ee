package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// AddressComponents holds the structured parts of a geocoded address.
type AddressComponents struct {
	Country       string `json:"country,omitempty"`
	State         string `json:"state,omitempty"`
	County        string `json:"county,omitempty"`
	City          string `json:"city,omitempty"`
	Town          string `json:"town,omitempty"`
	Village       string `json:"village,omitempty"`
	Suburb        string `json:"suburb,omitempty"`
	Neighbourhood string `json:"neighbourhood,omitempty"`
	Road          string `json:"road,omitempty"`
	HouseNumber   string `json:"house_number,omitempty"`
	Postcode      string `json:"postcode,omitempty"`
}

// AddressInfo is a reverse-geocoded address.
type AddressInfo struct {
	Formatted  string            `json:"formatted"`
	Components AddressComponents `json:"components"`
	Confidence int               `json:"confidence"`
	// Fallback marks a synthesized placeholder rather than a provider match.
	Fallback bool `json:"fallback"`
}

// GeocodeResult is what callers of ReverseGeocode see.
type GeocodeResult struct {
	Success bool         `json:"success"`
	Address *AddressInfo `json:"address,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// Geocoder resolves coordinates to an address. An empty Formatted field with
// a nil error means the provider had no match.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (AddressInfo, error)
}

// ReverseGeocode resolves (lat, lng) and never reports failure: transport
// errors, provider errors and empty results all degrade to FallbackAddress.
func ReverseGeocode(ctx context.Context, geocoder Geocoder, lat, lng float64, logger *slog.Logger) GeocodeResult {
	if geocoder == nil {
		return fallbackResult(lat, lng)
	}

	info, err := geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		logger.Warn("reverse geocoding failed, using fallback address",
			"lat", lat,
			"lng", lng,
			"error", err,
		)
		return fallbackResult(lat, lng)
	}
	if info.Formatted == "" {
		logger.Debug("reverse geocoding returned no results, using fallback address", "lat", lat, "lng", lng)
		return fallbackResult(lat, lng)
	}
	return GeocodeResult{Success: true, Address: &info}
}

func fallbackResult(lat, lng float64) GeocodeResult {
	addr := FallbackAddress(lat, lng)
	return GeocodeResult{Success: true, Address: &addr}
}

// FallbackAddress synthesizes a placeholder address for (lat, lng).
func FallbackAddress(lat, lng float64) AddressInfo {
	return AddressInfo{
		Formatted: fmt.Sprintf("台灣地區 (%.4f, %.4f)", lat, lng),
		Components: AddressComponents{
			Country: "台灣",
			State:   "示例縣市",
			City:    "示例城市",
			Road:    "示例路段",
		},
		Confidence: 5,
		Fallback:   true,
	}
}

// FormatAddressDisplay joins country, state, city and road with ", ",
// skipping blanks. With none present it returns the formatted string.
func FormatAddressDisplay(a AddressInfo) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Components.Country, a.Components.State, a.Components.City, a.Components.Road} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return a.Formatted
	}
	return strings.Join(parts, ", ")
}
