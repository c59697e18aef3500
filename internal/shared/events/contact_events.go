package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
)

type PersonUpserted struct {
	PersonID  uuid.UUID `json:"personId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Company   *string   `json:"company,omitempty"`
}

func (PersonUpserted) EventType() Type { return PersonUpsertedType }

func (e PersonUpserted) Validate() error {
	if e.PersonID == uuid.Nil {
		return errors.New("personId is required")
	}
	return nil
}

type ContactUpserted struct {
	PersonID  uuid.UUID                `json:"personId"`
	ContactID uuid.UUID                `json:"contactId"`
	Type      sharedDomain.ContactType `json:"type"`
	Content   string                   `json:"content"`
	CityName  *string                  `json:"cityName,omitempty"`
}

func (ContactUpserted) EventType() Type { return ContactUpsertedType }

func (e ContactUpserted) Validate() error {
	if e.PersonID == uuid.Nil || e.ContactID == uuid.Nil {
		return errors.New("personId and contactId are required")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("invalid contact type %d", e.Type)
	}
	return nil
}

// EffectiveLocation prefiere el nombre normalizado de ciudad sobre el texto libre.
func (e ContactUpserted) EffectiveLocation() string {
	if e.CityName != nil && strings.TrimSpace(*e.CityName) != "" {
		return strings.TrimSpace(*e.CityName)
	}
	return strings.TrimSpace(e.Content)
}

type ContactDeleted struct {
	PersonID  uuid.UUID `json:"personId"`
	ContactID uuid.UUID `json:"contactId"`
}

func (ContactDeleted) EventType() Type { return ContactDeletedType }

func (e ContactDeleted) Validate() error {
	if e.PersonID == uuid.Nil || e.ContactID == uuid.Nil {
		return errors.New("personId and contactId are required")
	}
	return nil
}
