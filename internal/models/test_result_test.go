package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestScannedResultPercentage(t *testing.T) {
	r := ScannedResult{MarksAvailable: intPtr(20), MarksObtained: intPtr(13)}
	assert.Equal(t, 65.0, r.Percentage())

	r = ScannedResult{MarksAvailable: intPtr(3), MarksObtained: intPtr(1)}
	assert.Equal(t, 33.33, r.Percentage())

	r = ScannedResult{MarksAvailable: intPtr(20), MarksObtained: intPtr(0)}
	assert.Equal(t, 0.0, r.Percentage())

	r = ScannedResult{MarksObtained: intPtr(13)}
	assert.Equal(t, 0.0, r.Percentage())

	r = ScannedResult{MarksAvailable: intPtr(0), MarksObtained: intPtr(13)}
	assert.Equal(t, 0.0, r.Percentage())
}

func TestScannedResultValidate(t *testing.T) {
	valid := ScannedResult{
		StudentNumber:  "521585128",
		TestID:         "1234",
		MarksAvailable: intPtr(20),
		MarksObtained:  intPtr(13),
	}
	assert.NoError(t, valid.Validate())

	// Zero obtained is a legitimate score.
	zero := valid
	zero.MarksObtained = intPtr(0)
	assert.NoError(t, zero.Validate())

	cases := []struct {
		name    string
		mutate  func(r *ScannedResult)
		message string
	}{
		{"missing student number", func(r *ScannedResult) { r.StudentNumber = "" }, "missing student number"},
		{"missing test id", func(r *ScannedResult) { r.TestID = "" }, "missing test id"},
		{"absent available", func(r *ScannedResult) { r.MarksAvailable = nil }, "marks available"},
		{"zero available", func(r *ScannedResult) { r.MarksAvailable = intPtr(0) }, "marks available"},
		{"absent obtained", func(r *ScannedResult) { r.MarksObtained = nil }, "marks obtained"},
		{"negative obtained", func(r *ScannedResult) { r.MarksObtained = intPtr(-1) }, "marks obtained"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := valid
			tc.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestTestResultPercentage(t *testing.T) {
	assert.Equal(t, 65.0, TestResult{MarksAvailable: 20, MarksObtained: 13}.Percentage())
	assert.Equal(t, 0.0, TestResult{MarksAvailable: 0, MarksObtained: 13}.Percentage())
	assert.Equal(t, 66.67, TestResult{MarksAvailable: 3, MarksObtained: 2}.Percentage())
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 33.33, Round2(100.0/3.0))
	assert.Equal(t, 66.67, Round2(200.0/3.0))
	assert.Equal(t, 75.0, Round2(75.0))
	assert.Equal(t, 0.0, Round2(0.0))
}
