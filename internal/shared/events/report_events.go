package events

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type ReportRequested struct {
	ReportID    uuid.UUID `json:"reportId"`
	RequestedAt time.Time `json:"requestedAt"`
}

func (ReportRequested) EventType() Type { return ReportRequestedType }

func (e ReportRequested) Validate() error {
	if e.ReportID == uuid.Nil {
		return errors.New("reportId is required")
	}
	return nil
}
