package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
)

func TestNewPerson(t *testing.T) {
	company := "  Acme  "
	p, err := NewPerson(" Ada ", "Lovelace", &company, time.Now())

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, "Ada", p.FirstName)
	require.NotNil(t, p.Company)
	assert.Equal(t, "Acme", *p.Company)
	assert.NotNil(t, p.ContactInfos)
}

func TestNewPerson_Invalid(t *testing.T) {
	_, err := NewPerson("", "Lovelace", nil, time.Now())
	assert.ErrorIs(t, err, ErrInvalidPerson)

	blank := "   "
	p, err := NewPerson("Ada", "Lovelace", &blank, time.Now())
	require.NoError(t, err)
	assert.Nil(t, p.Company)
}

func TestNewContactInfo_Validation(t *testing.T) {
	personID := uuid.New()

	tests := []struct {
		name    string
		typ     sharedDomain.ContactType
		content string
		wantErr bool
	}{
		{"phone ok", sharedDomain.ContactPhoneNumber, "+90 (532) 123-45-67", false},
		{"phone too short", sharedDomain.ContactPhoneNumber, "12-34", true},
		{"phone too long", sharedDomain.ContactPhoneNumber, "123456789012345678901", true},
		{"email ok", sharedDomain.ContactEmailAddress, "ada@example.com", false},
		{"email without at", sharedDomain.ContactEmailAddress, "ada.example.com", true},
		{"location ok", sharedDomain.ContactLocation, " Ankara ", false},
		{"location too short", sharedDomain.ContactLocation, "A", true},
		{"empty", sharedDomain.ContactLocation, "   ", true},
		{"unknown type", sharedDomain.ContactType(9), "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContactInfo(personID, tt.typ, tt.content, time.Now())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidContact)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, personID, c.PersonID)
			assert.NotContains(t, []byte{c.Content[0], c.Content[len(c.Content)-1]}, byte(' '))
		})
	}
}

func TestActiveContacts(t *testing.T) {
	p := &Person{ContactInfos: []ContactInfo{
		{ID: uuid.New()},
		{ID: uuid.New(), IsDeleted: true},
	}}
	assert.Len(t, p.ActiveContacts(), 1)
}

func TestCityID_IsStableAndCaseInsensitive(t *testing.T) {
	assert.Equal(t, CityID("Ankara"), CityID(" ankara"))
	assert.NotEqual(t, CityID("Ankara"), CityID("Izmir"))
}

func TestAssignCity(t *testing.T) {
	c, err := NewContactInfo(uuid.New(), sharedDomain.ContactLocation, "ankara", time.Now())
	require.NoError(t, err)

	c.AssignCity(City{ID: CityID("Ankara"), Name: "Ankara"})

	require.NotNil(t, c.CityName)
	assert.Equal(t, "Ankara", *c.CityName)
	assert.Equal(t, CityID("Ankara"), *c.CityID)
}
