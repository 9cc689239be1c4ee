package api

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/gin-gonic/gin"
)

var errBadQuery = errors.New("invalid query parameter")

func queryFloat(c *gin.Context, key string) (float64, bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, true, fmt.Errorf("%w: %s=%q", errBadQuery, key, raw)
	}
	return v, true, nil
}

func requireFloat(c *gin.Context, key string) (float64, error) {
	v, ok, err := queryFloat(c, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", errBadQuery, key)
	}
	return v, nil
}

func requireLatLng(c *gin.Context) (float64, float64, error) {
	lat, err := requireFloat(c, "lat")
	if err != nil {
		return 0, 0, err
	}
	lng, err := requireFloat(c, "lng")
	if err != nil {
		return 0, 0, err
	}
	return lat, lng, domain.ValidateCoordinates(lat, lng)
}

func requireBounds(c *gin.Context) (domain.MapBounds, error) {
	var b domain.MapBounds
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"north", &b.North}, {"south", &b.South}, {"east", &b.East}, {"west", &b.West},
	} {
		v, err := requireFloat(c, f.key)
		if err != nil {
			return domain.MapBounds{}, err
		}
		*f.dst = v
	}
	return b, nil
}

// parseCriteria reads the map filter state from the query string. A location
// needs both lat and lng; bounds need all four edges.
func parseCriteria(c *gin.Context) (domain.FilterCriteria, error) {
	var crit domain.FilterCriteria

	lat, hasLat, err := queryFloat(c, "lat")
	if err != nil {
		return crit, err
	}
	lng, hasLng, err := queryFloat(c, "lng")
	if err != nil {
		return crit, err
	}
	if hasLat != hasLng {
		return crit, fmt.Errorf("%w: lat and lng must be given together", errBadQuery)
	}
	if hasLat {
		if err := domain.ValidateCoordinates(lat, lng); err != nil {
			return crit, err
		}
		crit.Location = &domain.UserLocation{Lat: lat, Lng: lng}
	}

	crit.Radius = domain.DefaultRadius
	if km, ok, err := queryFloat(c, "radius"); err != nil {
		return crit, err
	} else if ok {
		r, err := domain.ParseRadius(km)
		if err != nil {
			return crit, err
		}
		crit.Radius = r
	}

	if raw := c.Query("out_of_range"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return crit, fmt.Errorf("%w: out_of_range=%q", errBadQuery, raw)
		}
		crit.OutOfRangeDetection = v
	}

	if _, ok := c.GetQuery("north"); ok {
		b, err := requireBounds(c)
		if err != nil {
			return crit, err
		}
		crit.Bounds = &b
	}

	if raw := c.Query("severity"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			sev, err := domain.ParseSeverity(part)
			if err != nil {
				return crit, err
			}
			crit.Severities = append(crit.Severities, sev)
		}
	}

	crit.Query = strings.TrimSpace(c.Query("q"))
	return crit, nil
}
