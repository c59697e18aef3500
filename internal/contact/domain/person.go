package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
)

// Person es una persona del directorio. El borrado es lógico.
type Person struct {
	ID           uuid.UUID     `json:"id"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Company      *string       `json:"company"`
	ContactInfos []ContactInfo `json:"contactInfos"`
	IsDeleted    bool          `json:"-"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func NewPerson(firstName, lastName string, company *string, now time.Time) (*Person, error) {
	p := &Person{
		ID:           uuid.New(),
		ContactInfos: []ContactInfo{},
		CreatedAt:    now.UTC(),
	}
	if err := p.Rename(firstName, lastName, company, now); err != nil {
		return nil, err
	}
	return p, nil
}

// Rename valida y aplica los datos personales.
func (p *Person) Rename(firstName, lastName string, company *string, now time.Time) error {
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return fmt.Errorf("%w: firstName and lastName are required", ErrInvalidPerson)
	}
	if company != nil {
		trimmed := strings.TrimSpace(*company)
		company = &trimmed
		if trimmed == "" {
			company = nil
		}
	}

	p.FirstName = firstName
	p.LastName = lastName
	p.Company = company
	p.UpdatedAt = now.UTC()
	return nil
}

// ActiveContacts devuelve los contactos no borrados.
func (p *Person) ActiveContacts() []ContactInfo {
	active := make([]ContactInfo, 0, len(p.ContactInfos))
	for _, c := range p.ContactInfos {
		if !c.IsDeleted {
			active = append(active, c)
		}
	}
	return active
}

// ContactInfo es un canal de contacto. Content se guarda sin espacios alrededor.
type ContactInfo struct {
	ID        uuid.UUID                `json:"id"`
	PersonID  uuid.UUID                `json:"-"`
	Type      sharedDomain.ContactType `json:"type"`
	Content   string                   `json:"content"`
	CityID    *uuid.UUID               `json:"cityId,omitempty"`
	CityName  *string                  `json:"cityName"`
	IsDeleted bool                     `json:"isDeleted"`
	CreatedAt time.Time                `json:"createdAt"`
}

func NewContactInfo(personID uuid.UUID, t sharedDomain.ContactType, content string, now time.Time) (*ContactInfo, error) {
	if personID == uuid.Nil {
		return nil, fmt.Errorf("%w: personId is required", ErrInvalidContact)
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown contact type %d", ErrInvalidContact, t)
	}
	content = strings.TrimSpace(content)
	if err := validateContent(t, content); err != nil {
		return nil, err
	}
	return &ContactInfo{
		ID:        uuid.New(),
		PersonID:  personID,
		Type:      t,
		Content:   content,
		CreatedAt: now.UTC(),
	}, nil
}

// AssignCity enlaza el contacto con una ciudad normalizada.
func (c *ContactInfo) AssignCity(city City) {
	id, name := city.ID, city.Name
	c.CityID = &id
	c.CityName = &name
}

func validateContent(t sharedDomain.ContactType, content string) error {
	if content == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidContact)
	}

	switch t {
	case sharedDomain.ContactPhoneNumber:
		clean := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(content)
		if len(clean) < 7 || len(clean) > 20 {
			return fmt.Errorf("%w: phone number must have 7-20 characters", ErrInvalidContact)
		}
	case sharedDomain.ContactEmailAddress:
		if !strings.Contains(content, "@") {
			return fmt.Errorf("%w: invalid email address", ErrInvalidContact)
		}
	case sharedDomain.ContactLocation:
		if len([]rune(content)) < 2 {
			return fmt.Errorf("%w: location must have at least 2 characters", ErrInvalidContact)
		}
	}
	return nil
}

// City es una ciudad de referencia para normalizar ubicaciones.
type City struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// CityID es determinista para que sembrar la tabla varias veces no duplique filas.
func CityID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("city:"+strings.ToLower(strings.TrimSpace(name))))
}

// DefaultCities se siembran al arrancar la API de contactos.
var DefaultCities = []string{"Ankara", "Istanbul", "Izmir"}
