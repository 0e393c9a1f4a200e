package camerad

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roomwall/roomwall-core/internal/infrastructure/database"
)

const createIDMapTable = `
CREATE TABLE IF NOT EXISTS camera_id_map (
	camera_name TEXT PRIMARY KEY,
	hardware_id TEXT NOT NULL UNIQUE,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// IDMap assigns stable "camera-N" names to controller hardware IDs and
// persists them so restarts keep the same mapping.
type IDMap struct {
	db *database.DB

	mu       sync.Mutex
	byName   map[string]string
	byHardID map[string]string
}

// NewIDMap loads the persisted mapping, creating the table on first use.
func NewIDMap(ctx context.Context, db *database.DB) (*IDMap, error) {
	if _, err := db.ExecContext(ctx, createIDMapTable); err != nil {
		return nil, fmt.Errorf("camerad: creating id map table: %w", err)
	}

	m := &IDMap{
		db:       db,
		byName:   make(map[string]string),
		byHardID: make(map[string]string),
	}

	rows, err := db.QueryContext(ctx, `SELECT camera_name, hardware_id FROM camera_id_map`)
	if err != nil {
		return nil, fmt.Errorf("camerad: loading id map: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read side only

	for rows.Next() {
		var name, hardwareID string
		if err := rows.Scan(&name, &hardwareID); err != nil {
			return nil, fmt.Errorf("camerad: scanning id map row: %w", err)
		}
		m.byName[name] = hardwareID
		m.byHardID[hardwareID] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("camerad: reading id map: %w", err)
	}

	return m, nil
}

// Resolve returns the stable name for a hardware ID, assigning and
// persisting the next free "camera-N" name on first sight.
func (m *IDMap) Resolve(ctx context.Context, hardwareID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name, ok := m.byHardID[hardwareID]; ok {
		return name, nil
	}

	name := m.nextNameLocked()
	if err := m.insertLocked(ctx, name, hardwareID); err != nil {
		return "", err
	}
	m.byName[name] = hardwareID
	m.byHardID[hardwareID] = name
	return name, nil
}

// HardwareID returns the controller-side ID for a stable camera name.
func (m *IDMap) HardwareID(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[name]
	return id, ok
}

// Names returns all assigned camera names, sorted.
func (m *IDMap) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.byName))
	for name := range m.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// nextNameLocked finds the lowest unused camera-N suffix.
func (m *IDMap) nextNameLocked() string {
	for n := 1; ; n++ {
		name := fmt.Sprintf("camera-%d", n)
		if _, taken := m.byName[name]; !taken {
			return name
		}
	}
}

func (m *IDMap) insertLocked(ctx context.Context, name, hardwareID string) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO camera_id_map (camera_name, hardware_id) VALUES (?, ?)`,
		name, hardwareID,
	)
	if err != nil {
		// A concurrent writer may have claimed the name; reload would fix
		// it but the single-connection pool makes that impossible here.
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("camerad: id map conflict for %s: %w", name, err)
		}
		return fmt.Errorf("camerad: persisting id map entry: %w", err)
	}
	return nil
}
