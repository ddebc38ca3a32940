package models

import (
	"fmt"
	"math"
	"time"
)

// ScannedResult is one normalized record extracted from a document, before
// business validation. Marks are pointers because an absent mark is not the
// same as a zero mark: zero obtained is a valid score, an absent one is not.
type ScannedResult struct {
	StudentNumber  string
	StudentName    string
	TestID         string
	MarksAvailable *int
	MarksObtained  *int
	ScannedOn      string
}

// Percentage derives the score as obtained/available*100 rounded to two
// decimals. Returns 0.0 when available is absent or zero.
func (r ScannedResult) Percentage() float64 {
	if r.MarksAvailable == nil || *r.MarksAvailable == 0 {
		return 0.0
	}
	obtained := 0
	if r.MarksObtained != nil {
		obtained = *r.MarksObtained
	}
	return Round2(float64(obtained) / float64(*r.MarksAvailable) * 100)
}

// Validate enforces business rules on a structurally parsed record.
func (r ScannedResult) Validate() error {
	if r.StudentNumber == "" {
		return fmt.Errorf("missing student number")
	}
	if r.TestID == "" {
		return fmt.Errorf("missing test id for student %s", r.StudentNumber)
	}
	if r.MarksAvailable == nil || *r.MarksAvailable <= 0 {
		return fmt.Errorf("marks available must be positive for student %s test %s", r.StudentNumber, r.TestID)
	}
	if r.MarksObtained == nil || *r.MarksObtained < 0 {
		return fmt.Errorf("marks obtained must be non-negative for student %s test %s", r.StudentNumber, r.TestID)
	}
	return nil
}

// TestResult is the canonical stored record, at most one per
// (student, test) pair.
type TestResult struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"-"`
	TestID         string    `db:"test_id" json:"test_id"`
	MarksAvailable int       `db:"marks_available" json:"marks_available"`
	MarksObtained  int       `db:"marks_obtained" json:"marks_obtained"`
	ScannedOn      *string   `db:"scanned_on" json:"scanned_on,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Percentage derives the stored score.
func (r TestResult) Percentage() float64 {
	if r.MarksAvailable == 0 {
		return 0.0
	}
	return Round2(float64(r.MarksObtained) / float64(r.MarksAvailable) * 100)
}

// TestRanking is one leaderboard row for a test, joined with the student.
type TestRanking struct {
	StudentNumber  string  `db:"student_number" json:"student_number"`
	StudentName    *string `db:"name" json:"name,omitempty"`
	MarksAvailable int     `db:"marks_available" json:"marks_available"`
	MarksObtained  int     `db:"marks_obtained" json:"marks_obtained"`
}

// Percentage derives the ranked score.
func (r TestRanking) Percentage() float64 {
	if r.MarksAvailable == 0 {
		return 0.0
	}
	return Round2(float64(r.MarksObtained) / float64(r.MarksAvailable) * 100)
}

// Round2 rounds to two decimal places, the precision used for every derived
// score and statistic.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
