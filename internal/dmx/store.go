package dmx

import (
	"context"
	"fmt"

	"github.com/roomwall/roomwall-core/internal/infrastructure/database"
)

const createFixtureTable = `
CREATE TABLE IF NOT EXISTS dmx_fixtures (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	start_channel INTEGER NOT NULL,
	channel_order TEXT NOT NULL,
	r             INTEGER NOT NULL,
	g             INTEGER NOT NULL,
	b             INTEGER NOT NULL,
	w             INTEGER NOT NULL,
	brightness    REAL NOT NULL,
	updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Store persists fixture state across restarts.
type Store interface {
	Save(ctx context.Context, f Fixture) error
	LoadAll(ctx context.Context) ([]Fixture, error)
}

// SQLiteStore keeps fixture state in the core database.
type SQLiteStore struct {
	db *database.DB
}

// NewSQLiteStore creates the fixtures table if needed.
func NewSQLiteStore(ctx context.Context, db *database.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, createFixtureTable); err != nil {
		return nil, fmt.Errorf("dmx: creating fixtures table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save upserts one fixture's full state.
func (s *SQLiteStore) Save(ctx context.Context, f Fixture) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dmx_fixtures (id, name, start_channel, channel_order, r, g, b, w, brightness, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_channel = excluded.start_channel,
			channel_order = excluded.channel_order,
			r = excluded.r,
			g = excluded.g,
			b = excluded.b,
			w = excluded.w,
			brightness = excluded.brightness,
			updated_at = CURRENT_TIMESTAMP`,
		f.ID, f.Name, f.StartChannel, f.ChannelOrder,
		f.Color.R, f.Color.G, f.Color.B, f.Color.W, f.Brightness,
	)
	if err != nil {
		return fmt.Errorf("dmx: saving fixture %s: %w", f.ID, err)
	}
	return nil
}

// LoadAll returns every persisted fixture.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]Fixture, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, start_channel, channel_order, r, g, b, w, brightness
		FROM dmx_fixtures ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("dmx: loading fixtures: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read side only

	var fixtures []Fixture
	for rows.Next() {
		var f Fixture
		if err := rows.Scan(
			&f.ID, &f.Name, &f.StartChannel, &f.ChannelOrder,
			&f.Color.R, &f.Color.G, &f.Color.B, &f.Color.W, &f.Brightness,
		); err != nil {
			return nil, fmt.Errorf("dmx: scanning fixture row: %w", err)
		}
		fixtures = append(fixtures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dmx: reading fixtures: %w", err)
	}
	return fixtures, nil
}
