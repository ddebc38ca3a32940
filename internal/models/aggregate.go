package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StatMap holds computed statistics keyed by aggregator name, persisted as a
// JSONB blob.
type StatMap map[string]float64

// Value marshals the stat map to JSON for persistence.
func (m StatMap) Value() (driver.Value, error) {
	if m == nil {
		m = StatMap{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal stat map: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the stat map.
func (m *StatMap) Scan(value interface{}) error {
	if value == nil {
		*m = StatMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for StatMap", value)
	}
	if len(data) == 0 {
		*m = StatMap{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal stat map: %w", err)
	}
	return nil
}

// AggregateSnapshot is the materialized statistics view for one test.
// Replaced wholesale on every recomputation, never merged.
type AggregateSnapshot struct {
	ID        string    `db:"id" json:"-"`
	TestID    string    `db:"test_id" json:"test_id"`
	Data      StatMap   `db:"data" json:"stats"`
	CreatedAt time.Time `db:"created_at" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
