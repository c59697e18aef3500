package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/phoneregistry/internal/contact/application"
	"github.com/davicafu/phoneregistry/internal/contact/domain"
	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	"github.com/davicafu/phoneregistry/pkg/utils"
)

type PersonService interface {
	CreatePerson(ctx context.Context, firstName, lastName string, company *string) (*domain.Person, error)
	UpdatePerson(ctx context.Context, id uuid.UUID, firstName, lastName string, company *string) (*domain.Person, error)
	DeletePerson(ctx context.Context, id uuid.UUID) error
	AddContact(ctx context.Context, personID uuid.UUID, in application.AddContactInput) (*domain.ContactInfo, error)
	RemoveContact(ctx context.Context, personID, contactID uuid.UUID) error
	GetPerson(ctx context.Context, id uuid.UUID) (*domain.Person, error)
	ListPersons(ctx context.Context, page sharedDomain.Pagination) ([]*domain.Person, error)
	ListCities(ctx context.Context) ([]domain.City, error)
}

// PersonHandler encapsula los endpoints HTTP de personas y contactos.
type PersonHandler struct {
	service PersonService
}

func NewPersonHandler(service PersonService) *PersonHandler {
	return &PersonHandler{service: service}
}

type personRequest struct {
	FirstName string  `json:"firstName" binding:"required"`
	LastName  string  `json:"lastName" binding:"required"`
	Company   *string `json:"company"`
}

type contactRequest struct {
	Type    sharedDomain.ContactType `json:"type" binding:"required"`
	Content string                   `json:"content" binding:"required"`
	CityID  *uuid.UUID               `json:"cityId"`
}

// ---------------- Handlers ----------------

// CreatePerson endpoint POST /persons
func (h *PersonHandler) CreatePerson(c *gin.Context) {
	var req personRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	person, err := h.service.CreatePerson(c.Request.Context(), req.FirstName, req.LastName, req.Company)
	if err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, person)
}

// GetPerson endpoint GET /persons/:id
func (h *PersonHandler) GetPerson(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	person, err := h.service.GetPerson(c.Request.Context(), id)
	if err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, person)
}

// ListPersons endpoint GET /persons?skip=&take=
func (h *PersonHandler) ListPersons(c *gin.Context) {
	skip, err := utils.QueryInt(c, "skip", 0)
	if err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	take, err := utils.QueryInt(c, "take", sharedDomain.DefaultPageSize)
	if err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	persons, err := h.service.ListPersons(c.Request.Context(), sharedDomain.Pagination{Limit: take, Offset: skip})
	if err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, persons)
}

// UpdatePerson endpoint PUT /persons/:id
func (h *PersonHandler) UpdatePerson(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req personRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	person, err := h.service.UpdatePerson(c.Request.Context(), id, req.FirstName, req.LastName, req.Company)
	if err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, person)
}

// DeletePerson endpoint DELETE /persons/:id
func (h *PersonHandler) DeletePerson(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeletePerson(c.Request.Context(), id); err != nil {
		sendServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddContact endpoint POST /persons/:id/contacts
func (h *PersonHandler) AddContact(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	contact, err := h.service.AddContact(c.Request.Context(), id, application.AddContactInput{
		Type:    req.Type,
		Content: req.Content,
		CityID:  req.CityID,
	})
	if err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

// RemoveContact endpoint DELETE /persons/:id/contacts/:contactId
func (h *PersonHandler) RemoveContact(c *gin.Context) {
	personID, ok := parseID(c, "id")
	if !ok {
		return
	}
	contactID, ok := parseID(c, "contactId")
	if !ok {
		return
	}
	if err := h.service.RemoveContact(c.Request.Context(), personID, contactID); err != nil {
		sendServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListCities endpoint GET /cities
func (h *PersonHandler) ListCities(c *gin.Context) {
	cities, err := h.service.ListCities(c.Request.Context())
	if err != nil {
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, cities)
}

// ---------------- helpers ----------------

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		utils.SendBadRequest(c, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func sendServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrPersonNotFound),
		errors.Is(err, domain.ErrContactNotFound),
		errors.Is(err, domain.ErrCityNotFound):
		utils.SendNotFound(c, err.Error())
	case errors.Is(err, domain.ErrInvalidPerson), errors.Is(err, domain.ErrInvalidContact):
		utils.SendBadRequest(c, err.Error())
	default:
		utils.SendInternalServerError(c, err.Error())
	}
}
