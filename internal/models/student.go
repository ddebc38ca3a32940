package models

import "time"

// Student is one identity as resolved from scanned documents. The student
// number is the natural key; the display name is whatever the most recent
// document carried (an absent name never clears a stored one).
type Student struct {
	ID            string    `db:"id" json:"id"`
	StudentNumber string    `db:"student_number" json:"student_number"`
	Name          *string   `db:"name" json:"name,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
