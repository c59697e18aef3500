package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/phoneregistry/internal/report/domain"
	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	"github.com/davicafu/phoneregistry/pkg/utils"
)

type ReportService interface {
	RequestReport(ctx context.Context) (*domain.Report, error)
	GetReport(ctx context.Context, id uuid.UUID) (*domain.Report, error)
	ListReports(ctx context.Context, page sharedDomain.Pagination) ([]*domain.Report, error)
	ListLocations(ctx context.Context) ([]domain.LocationTally, error)
}

// ReportHandler encapsula los endpoints HTTP de reports.
type ReportHandler struct {
	service ReportService
}

func NewReportHandler(service ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// RequestReport endpoint POST /reports
func (h *ReportHandler) RequestReport(c *gin.Context) {
	report, err := h.service.RequestReport(c.Request.Context())
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	c.JSON(http.StatusCreated, report)
}

// GetReport endpoint GET /reports/:id
func (h *ReportHandler) GetReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid report id")
		return
	}

	report, err := h.service.GetReport(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrReportNotFound) {
			utils.SendNotFound(c, "report not found")
			return
		}
		utils.SendInternalServerError(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListReports endpoint GET /reports?limit=&offset=
func (h *ReportHandler) ListReports(c *gin.Context) {
	limit, err := utils.QueryInt(c, "limit", sharedDomain.DefaultPageSize)
	if err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	offset, err := utils.QueryInt(c, "offset", 0)
	if err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	reports, err := h.service.ListReports(c.Request.Context(), sharedDomain.Pagination{Limit: limit, Offset: offset})
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, reports)
}

// ListLocations endpoint GET /locations
func (h *ReportHandler) ListLocations(c *gin.Context) {
	tallies, err := h.service.ListLocations(c.Request.Context())
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, tallies)
}
