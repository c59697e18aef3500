package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_Complete(t *testing.T) {
	// Arrange
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	report := NewReport(now)
	stats := []LocationStatistic{{Location: "Ankara", PersonCount: 2, PhoneNumberCount: 1}}

	// Act
	err := report.Complete(stats, now.Add(time.Minute))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, ReportCompleted, report.Status)
	assert.True(t, report.IsTerminal())
	require.NotNil(t, report.CompletedAt)
	assert.Equal(t, now.Add(time.Minute), *report.CompletedAt)
	assert.Equal(t, stats, report.LocationStatistics)
	assert.Nil(t, report.ErrorMessage)
}

func TestReport_CompleteWithNoStatistics(t *testing.T) {
	report := NewReport(time.Now())

	require.NoError(t, report.Complete(nil, time.Now()))

	assert.Equal(t, ReportCompleted, report.Status)
	assert.NotNil(t, report.LocationStatistics)
	assert.Empty(t, report.LocationStatistics)
}

func TestReport_Fail(t *testing.T) {
	report := NewReport(time.Now())

	require.NoError(t, report.Fail("contact api down", time.Now()))

	assert.Equal(t, ReportFailed, report.Status)
	require.NotNil(t, report.ErrorMessage)
	assert.Equal(t, "contact api down", *report.ErrorMessage)
	assert.Empty(t, report.LocationStatistics)
}

func TestReport_TerminalStatesNeverChange(t *testing.T) {
	tests := []struct {
		name     string
		finalize func(r *Report) error
		expected ReportStatus
	}{
		{"completado", func(r *Report) error { return r.Complete(nil, time.Now()) }, ReportCompleted},
		{"fallido", func(r *Report) error { return r.Fail("boom", time.Now()) }, ReportFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewReport(time.Now())
			require.NoError(t, tt.finalize(report))

			assert.ErrorIs(t, report.Complete([]LocationStatistic{{Location: "X"}}, time.Now()), ErrReportNotPreparing)
			assert.ErrorIs(t, report.Fail("again", time.Now()), ErrReportNotPreparing)
			assert.Equal(t, tt.expected, report.Status)
		})
	}
}

func TestNewLocationStatistic(t *testing.T) {
	stat, err := NewLocationStatistic("  Izmir ", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "Izmir", stat.Location)

	_, err = NewLocationStatistic("   ", 1, 1)
	assert.ErrorIs(t, err, ErrInvalidLocationStatistic)

	_, err = NewLocationStatistic("Izmir", -1, 0)
	assert.ErrorIs(t, err, ErrInvalidLocationStatistic)
}
