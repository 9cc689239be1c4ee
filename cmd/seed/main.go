// Command seed inserts demo hotspots scattered around a centre point. With
// -dry-run nothing is written; it prints what the map would show at the
// default radius instead.
//
// Usage:
//
//	go run ./cmd/seed -lat 25.033 -lng 121.5654 -count 25 -spread 4
//	go run ./cmd/seed -dry-run -out data/mock/hotspots.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/hotspot-map-service/internal/adapter/postgres"
	"github.com/couchcryptid/hotspot-map-service/internal/config"
	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/couchcryptid/hotspot-map-service/internal/hotspot"
	"github.com/couchcryptid/hotspot-map-service/internal/observability"
	"github.com/joho/godotenv"
)

var titles = []struct {
	title, description string
}{
	{"道路淹水", "積水約30公分，機車無法通行"},
	{"路樹倒塌", "行道樹倒塌阻斷車道"},
	{"招牌掉落", "強風吹落廣告招牌"},
	{"土石滑落", "邊坡土石滑落至路面"},
	{"瓦斯外洩", "聞到瓦斯味，請勿靠近"},
	{"停電", "整條街區停電，號誌故障"},
	{"地下道積水", "地下道封閉中"},
	{"電線掉落", "電線垂落人行道"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	lat := flag.Float64("lat", domain.DefaultCenter.Lat, "centre latitude")
	lng := flag.Float64("lng", domain.DefaultCenter.Lng, "centre longitude")
	count := flag.Int("count", 20, "number of hotspots to generate")
	spread := flag.Float64("spread", 5, "maximum distance from the centre in km")
	seed := flag.Uint64("seed", 1, "random seed for reproducible output")
	dryRun := flag.Bool("dry-run", false, "print the generated hotspots instead of inserting them")
	out := flag.String("out", "", "optional path to write the generated inputs as JSON")
	flag.Parse()

	center := domain.UserLocation{Lat: *lat, Lng: *lng}
	if err := domain.ValidateCoordinates(center.Lat, center.Lng); err != nil {
		return err
	}
	if *count <= 0 || *spread <= 0 {
		flag.Usage()
		return fmt.Errorf("-count and -spread must be positive")
	}

	inputs := generate(center, *count, *spread, *seed)

	if *out != "" {
		if err := writeJSON(*out, inputs); err != nil {
			return fmt.Errorf("writing fixture: %w", err)
		}
		log.Printf("wrote fixture: %s", *out)
	}

	if *dryRun {
		printPreview(os.Stdout, center, inputs)
		return nil
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.PGMaxOpenConns)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store := hotspot.NewStore(postgres.NewRepository(db), observability.NewMetrics(), logger)

	created := 0
	for _, in := range inputs {
		if _, err := store.Create(ctx, in); err != nil {
			return fmt.Errorf("insert %q: %w", in.Title, err)
		}
		created++
	}
	log.Printf("inserted %d hotspots around (%.4f, %.4f)", created, center.Lat, center.Lng)
	return nil
}

// generate scatters count hotspots uniformly over a disc of spreadKm around
// center. The same seed always yields the same inputs.
func generate(center domain.UserLocation, count int, spreadKm float64, seed uint64) []domain.HotspotInput {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]domain.HotspotInput, 0, count)
	for i := range count {
		dist := spreadKm * math.Sqrt(r.Float64())
		bearing := r.Float64() * 2 * math.Pi
		p := offset(center, dist, bearing)
		t := titles[i%len(titles)]
		out = append(out, domain.HotspotInput{
			Lat:         round6(p.Lat),
			Lng:         round6(p.Lng),
			Title:       t.title,
			Description: t.description,
			Severity:    domain.Severities[r.IntN(len(domain.Severities))],
		})
	}
	return out
}

// offset moves distKm from origin along bearing (radians from north) on a
// sphere.
func offset(origin domain.UserLocation, distKm, bearing float64) domain.UserLocation {
	lat1 := origin.Lat * math.Pi / 180
	lng1 := origin.Lng * math.Pi / 180
	d := distKm / domain.EarthRadiusKm

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(bearing))
	lng2 := lng1 + math.Atan2(math.Sin(bearing)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))
	return domain.UserLocation{Lat: lat2 * 180 / math.Pi, Lng: lng2 * 180 / math.Pi}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// printPreview shows which inputs the map would display at the default radius
// and how severities are distributed.
func printPreview(w io.Writer, center domain.UserLocation, inputs []domain.HotspotInput) {
	hotspots := make([]domain.Hotspot, len(inputs))
	for i, in := range inputs {
		hotspots[i] = domain.Hotspot{
			ID:          fmt.Sprintf("preview-%03d", i+1),
			Lat:         in.Lat,
			Lng:         in.Lng,
			Title:       in.Title,
			Description: in.Description,
			Severity:    in.Severity,
		}
	}
	visible := domain.VisibleHotspots(hotspots, domain.FilterCriteria{Location: &center, Radius: domain.DefaultRadius})

	fmt.Fprintf(w, "generated %d hotspots, %d within %.1f km of (%.4f, %.4f)\n",
		len(hotspots), len(visible), domain.DefaultRadius.Km(), center.Lat, center.Lng)
	for _, h := range visible {
		fmt.Fprintf(w, "  %s  %-8s  %5.2f km  %s\n", h.ID, h.Severity,
			domain.DistanceKm(center.Lat, center.Lng, h.Lat, h.Lng), h.Title)
	}

	counts := map[domain.Severity]int{}
	for _, h := range hotspots {
		counts[h.Severity]++
	}
	keys := make([]string, 0, len(counts))
	for s := range counts {
		keys = append(keys, string(s))
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "severity counts:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %-8s %d\n", k, counts[domain.Severity(k)])
	}
}
