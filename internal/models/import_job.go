package models

import "time"

// ImportStatus captures import job lifecycle states.
type ImportStatus string

const (
	ImportStatusQueued      ImportStatus = "queued"
	ImportStatusProcessing  ImportStatus = "processing"
	ImportStatusCompleted   ImportStatus = "completed"
	ImportStatusFailed      ImportStatus = "failed"
	ImportStatusDead        ImportStatus = "dead"
	ImportStatusInterrupted ImportStatus = "interrupted"
)

// ImportJob is the transient job record kept in the Redis side channel.
// Entries expire per the configured TTL; they are never written to the
// relational store.
type ImportJob struct {
	ID           string       `json:"job_id"`
	Status       ImportStatus `json:"status"`
	ErrorMessage string       `json:"error,omitempty"`
	TestIDs      []string     `json:"test_ids,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
