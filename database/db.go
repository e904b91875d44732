package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"travelplanner/services"
)

// ErrNotFound is returned when no archived record has the requested id.
var ErrNotFound = errors.New("not found")

// ─── Models ──────────────────────────────────────────────────────────────────

type ArchivedItinerary struct {
	ID          string                     `json:"id"`
	Destination string                     `json:"destination"`
	Itinerary   services.ItineraryDocument `json:"itinerary"`
	CreatedAt   time.Time                  `json:"created_at"`
}

// EmailDelivery records one send attempt. ItineraryID is whatever the caller
// supplied and is not checked against the itineraries table.
type EmailDelivery struct {
	ID          string
	ItineraryID *string
	Recipient   string
	Status      int
	Error       string
}

// Archive stores generated itineraries and email delivery attempts.
type Archive struct {
	db *sql.DB
}

func NewArchive(db *sql.DB) *Archive {
	return &Archive{db: db}
}

// ─── Init ─────────────────────────────────────────────────────────────────────

// Open connects to Postgres, waiting for it to come up, and runs migrations.
func Open(ctx context.Context, dsn string) (*Archive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		slog.Warn("waiting for database", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database after retries: %w", err)
	}

	a := NewArchive(db)
	if err := a.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("database connected and migrated")
	return a, nil
}

// ─── Migrations ───────────────────────────────────────────────────────────────

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS itineraries (
		id          TEXT PRIMARY KEY,
		destination TEXT NOT NULL,
		payload     JSONB NOT NULL,
		created_at  TIMESTAMPTZ DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS email_deliveries (
		id           TEXT PRIMARY KEY,
		itinerary_id TEXT,
		recipient    TEXT NOT NULL,
		status       INTEGER NOT NULL,
		error        TEXT,
		created_at   TIMESTAMPTZ DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_itineraries_created_at
		ON itineraries(created_at DESC)`,
}

func (a *Archive) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := a.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// ─── CRUD ─────────────────────────────────────────────────────────────────────

// SaveItinerary stores doc under a fresh id and returns that id.
func (a *Archive) SaveItinerary(ctx context.Context, doc services.ItineraryDocument) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode itinerary: %w", err)
	}

	id := uuid.New().String()
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO itineraries (id, destination, payload)
		VALUES ($1, $2, $3)`,
		id, doc.Destination(), payload)
	if err != nil {
		return "", fmt.Errorf("save itinerary: %w", err)
	}
	return id, nil
}

func (a *Archive) GetItinerary(ctx context.Context, id string) (*ArchivedItinerary, error) {
	var (
		out     ArchivedItinerary
		payload []byte
	)
	err := a.db.QueryRowContext(ctx, `
		SELECT id, destination, payload, created_at
		FROM itineraries WHERE id = $1`, id).
		Scan(&out.ID, &out.Destination, &payload, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get itinerary: %w", err)
	}
	if out.Itinerary, err = services.ParseItineraryDocument(payload); err != nil {
		return nil, fmt.Errorf("decode itinerary %s: %w", id, err)
	}
	return &out, nil
}

func (a *Archive) SaveEmailDelivery(ctx context.Context, d EmailDelivery) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	var errText sql.NullString
	if d.Error != "" {
		errText = sql.NullString{String: d.Error, Valid: true}
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO email_deliveries (id, itinerary_id, recipient, status, error)
		VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.ItineraryID, d.Recipient, d.Status, errText)
	if err != nil {
		return fmt.Errorf("save email delivery: %w", err)
	}
	return nil
}

func (a *Archive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Archive) Close() error {
	return a.db.Close()
}
