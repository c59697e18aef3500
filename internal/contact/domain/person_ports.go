package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
)

// ---------- Errores de dominio ----------
var (
	ErrPersonNotFound  = errors.New("person not found")
	ErrContactNotFound = errors.New("contact not found")
	ErrCityNotFound    = errors.New("city not found")
	ErrInvalidPerson   = errors.New("invalid person")
	ErrInvalidContact  = errors.New("invalid contact")
)

// ---------- Interfaces (Ports) ----------

// PersonRepository: las escrituras reciben la transacción del llamador para que el
// evento outbox se guarde en la misma unidad.
type PersonRepository interface {
	InsertPerson(ctx context.Context, tx persistence.DBTX, p *Person) error

	// Debe devolver ErrPersonNotFound si no existe o está borrada.
	UpdatePerson(ctx context.Context, tx persistence.DBTX, p *Person) error

	// SoftDeletePerson marca la persona y sus contactos como borrados y devuelve los
	// contactos que estaban activos.
	SoftDeletePerson(ctx context.Context, tx persistence.DBTX, id uuid.UUID) ([]ContactInfo, error)

	// Debe devolver ErrPersonNotFound si la persona no existe o está borrada.
	InsertContact(ctx context.Context, tx persistence.DBTX, c *ContactInfo) error

	// Debe devolver ErrContactNotFound si no existe, es de otra persona o ya está borrado.
	SoftDeleteContact(ctx context.Context, tx persistence.DBTX, personID, contactID uuid.UUID) error

	FindCity(ctx context.Context, q persistence.DBTX, id *uuid.UUID, name string) (*City, error)

	// Debe devolver ErrPersonNotFound si no existe o está borrada.
	GetPerson(ctx context.Context, id uuid.UUID) (*Person, error)

	// ListPersons devuelve las personas activas con todos sus contactos, borrados incluidos.
	ListPersons(ctx context.Context, page sharedDomain.Pagination) ([]*Person, error)

	ListCities(ctx context.Context) ([]City, error)
}

// CacheKeyByID es la clave de caché de una persona con sus contactos.
func CacheKeyByID(id uuid.UUID) string {
	return fmt.Sprintf("person:id:%s", id)
}
