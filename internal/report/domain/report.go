package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReportStatus se persiste y serializa por nombre.
type ReportStatus string

const (
	ReportPreparing ReportStatus = "Preparing"
	ReportCompleted ReportStatus = "Completed"
	ReportFailed    ReportStatus = "Failed"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPreparing, ReportCompleted, ReportFailed:
		return true
	}
	return false
}

// Report es una petición de estadísticas por ubicación. Pasa de Preparing a Completed
// o Failed exactamente una vez y después no cambia.
type Report struct {
	ID                 uuid.UUID           `json:"id"`
	RequestedAt        time.Time           `json:"requestedAt"`
	Status             ReportStatus        `json:"status"`
	CompletedAt        *time.Time          `json:"completedAt,omitempty"`
	ErrorMessage       *string             `json:"errorMessage,omitempty"`
	LocationStatistics []LocationStatistic `json:"locationStatistics"`
}

func NewReport(now time.Time) *Report {
	return &Report{
		ID:                 uuid.New(),
		RequestedAt:        now.UTC(),
		Status:             ReportPreparing,
		LocationStatistics: []LocationStatistic{},
	}
}

func (r *Report) IsTerminal() bool {
	return r.Status == ReportCompleted || r.Status == ReportFailed
}

// Complete fija las estadísticas. stats vacío es un resultado válido.
func (r *Report) Complete(stats []LocationStatistic, now time.Time) error {
	if r.Status != ReportPreparing {
		return ErrReportNotPreparing
	}
	completedAt := now.UTC()
	r.Status = ReportCompleted
	r.CompletedAt = &completedAt
	r.LocationStatistics = append([]LocationStatistic{}, stats...)
	return nil
}

func (r *Report) Fail(message string, now time.Time) error {
	if r.Status != ReportPreparing {
		return ErrReportNotPreparing
	}
	completedAt := now.UTC()
	r.Status = ReportFailed
	r.CompletedAt = &completedAt
	r.ErrorMessage = &message
	r.LocationStatistics = []LocationStatistic{}
	return nil
}
