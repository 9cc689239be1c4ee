package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/lib/pq"
)

const hotspotColumns = "id, lat, lng, title, description, severity, photo_url, address, created_at"

// Repository implements domain.HotspotRepository on a hotspots table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a Repository over db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CheckReadiness pings the database.
func (r *Repository) CheckReadiness(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres not reachable: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Hotspot, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+hotspotColumns+" FROM hotspots WHERE id = $1", id)
	h, err := scanHotspot(row)
	if err != nil {
		return domain.Hotspot{}, mapNotFound(err, "get hotspot")
	}
	return h, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Hotspot, error) {
	return r.query(ctx, "list hotspots",
		"SELECT "+hotspotColumns+" FROM hotspots ORDER BY created_at DESC")
}

func (r *Repository) ListByBounds(ctx context.Context, b domain.MapBounds) ([]domain.Hotspot, error) {
	return r.query(ctx, "list hotspots by bounds",
		"SELECT "+hotspotColumns+" FROM hotspots"+
			" WHERE lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4"+
			" ORDER BY created_at DESC",
		b.South, b.North, b.West, b.East)
}

// ListWithinRadius narrows candidates with an indexed bounding-box query and
// keeps the rows whose haversine distance is within radiusKm.
func (r *Repository) ListWithinRadius(ctx context.Context, center domain.UserLocation, radiusKm float64) ([]domain.Hotspot, error) {
	candidates, err := r.ListByBounds(ctx, domain.RadiusBoundingBox(center, radiusKm))
	if err != nil {
		return nil, err
	}
	out := candidates[:0]
	for _, h := range candidates {
		if domain.WithinRadius(h.Location(), center, radiusKm) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, in domain.HotspotInput) (domain.Hotspot, error) {
	row := r.db.QueryRowContext(ctx,
		"INSERT INTO hotspots (lat, lng, title, description, severity, photo_url, address)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7)"+
			" RETURNING "+hotspotColumns,
		in.Lat, in.Lng, in.Title, in.Description, string(in.Severity), nullString(in.Photo), nullString(in.Address))
	h, err := scanHotspot(row)
	if err != nil {
		return domain.Hotspot{}, fmt.Errorf("insert hotspot: %w", err)
	}
	return h, nil
}

func (r *Repository) Update(ctx context.Context, id string, patch domain.HotspotPatch) (domain.Hotspot, error) {
	sets, args := updateAssignments(patch)
	if len(sets) == 0 {
		return domain.Hotspot{}, domain.ErrNoFieldsToUpdate
	}
	args = append(args, id)
	q := "UPDATE hotspots SET " + strings.Join(sets, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args)) +
		" RETURNING " + hotspotColumns

	h, err := scanHotspot(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return domain.Hotspot{}, mapNotFound(err, "update hotspot")
	}
	return h, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM hotspots WHERE id = $1", id)
	if err != nil {
		return mapNotFound(err, "delete hotspot")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete hotspot: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) query(ctx context.Context, op, q string, args ...any) ([]domain.Hotspot, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]domain.Hotspot, 0)
	for rows.Next() {
		h, err := scanHotspot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// updateAssignments renders the SET list in a fixed column order.
func updateAssignments(p domain.HotspotPatch) ([]string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if p.Lat != nil {
		add("lat", *p.Lat)
	}
	if p.Lng != nil {
		add("lng", *p.Lng)
	}
	if p.Title != nil {
		add("title", strings.TrimSpace(*p.Title))
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Severity != nil {
		add("severity", string(*p.Severity))
	}
	if p.Photo != nil {
		add("photo_url", nullString(*p.Photo))
	}
	if p.Address != nil {
		add("address", nullString(*p.Address))
	}
	return sets, args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHotspot(s scanner) (domain.Hotspot, error) {
	var (
		h        domain.Hotspot
		severity string
		photo    sql.NullString
		address  sql.NullString
	)
	if err := s.Scan(&h.ID, &h.Lat, &h.Lng, &h.Title, &h.Description, &severity, &photo, &address, &h.CreatedAt); err != nil {
		return domain.Hotspot{}, err
	}
	h.Severity = domain.Severity(severity)
	h.Photo = photo.String
	h.Address = address.String
	return h, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// invalidTextRepresentation is raised when an id is not a valid UUID.
const invalidTextRepresentation = "22P02"

func mapNotFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
