// Package postgres persists hotspots in PostgreSQL and turns row changes into
// realtime feed events through LISTEN/NOTIFY.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // registers the "postgres" driver
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(max(1, maxOpenConns/2))

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NotifyChannel is the LISTEN/NOTIFY channel the change trigger publishes on.
const NotifyChannel = "hotspot_changes"

// EnsureSchema creates the hotspots table, its indexes and the change trigger
// if they do not exist. It is safe to run on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
		`CREATE TABLE IF NOT EXISTS hotspots (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            lat DOUBLE PRECISION NOT NULL CHECK (lat BETWEEN -90 AND 90),
            lng DOUBLE PRECISION NOT NULL CHECK (lng BETWEEN -180 AND 180),
            title TEXT NOT NULL CHECK (length(btrim(title)) > 0),
            description TEXT NOT NULL DEFAULT '',
            severity TEXT NOT NULL CHECK (severity IN ('low','medium','high','critical')),
            photo_url TEXT,
            address TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_hotspots_created_at ON hotspots(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_hotspots_lat_lng ON hotspots(lat, lng)`,
		// Payload carries only type and id: NOTIFY payloads are capped at
		// 8000 bytes and photo_url may hold a data URI.
		`CREATE OR REPLACE FUNCTION notify_hotspot_change() RETURNS trigger AS $$
        DECLARE
            rec RECORD;
        BEGIN
            IF TG_OP = 'DELETE' THEN
                rec := OLD;
            ELSE
                rec := NEW;
            END IF;
            PERFORM pg_notify('` + NotifyChannel + `', json_build_object('type', TG_OP, 'id', rec.id)::text);
            RETURN rec;
        END;
        $$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS hotspots_notify ON hotspots`,
		`CREATE TRIGGER hotspots_notify
            AFTER INSERT OR UPDATE OR DELETE ON hotspots
            FOR EACH ROW EXECUTE FUNCTION notify_hotspot_change()`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
