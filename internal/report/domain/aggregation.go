package domain

import (
	"bytes"
	"sort"
	"strings"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
)

// ContactRecord es un contacto tal y como lo expone el servicio de contactos.
type ContactRecord struct {
	ID           uuid.UUID
	Type         sharedDomain.ContactType
	Content      string
	IsDeleted    bool
	LocationName *string
}

// EffectiveLocation prefiere el nombre de ciudad resuelto sobre el texto libre.
func (c ContactRecord) EffectiveLocation() string {
	if c.LocationName != nil && strings.TrimSpace(*c.LocationName) != "" {
		return strings.TrimSpace(*c.LocationName)
	}
	return strings.TrimSpace(c.Content)
}

// PersonContacts agrupa los contactos de una persona.
type PersonContacts struct {
	PersonID uuid.UUID
	Contacts []ContactRecord
}

// LocationKey es la identidad de una ubicación: sin espacios y en minúsculas.
func LocationKey(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}

type personTotals struct {
	locations []string // claves distintas, en orden de aparición
	display   map[string]string
	phones    int
}

type locationGroup struct {
	display string
	persons map[uuid.UUID]struct{}
	phones  int
}

// Aggregate calcula las estadísticas por ubicación. El resultado no depende del orden de
// entrada: se ordena por clave y el nombre mostrado es la primera grafía tras ordenar
// personas y contactos por id.
func Aggregate(persons []PersonContacts) []LocationStatistic {
	totals := make(map[uuid.UUID]*personTotals)
	seenContacts := make(map[uuid.UUID]struct{})

	for _, p := range sortedPersons(persons) {
		t, ok := totals[p.PersonID]
		if !ok {
			t = &personTotals{display: map[string]string{}}
			totals[p.PersonID] = t
		}

		for _, c := range sortedContacts(p.Contacts) {
			if c.IsDeleted {
				continue
			}
			if c.ID != uuid.Nil {
				if _, dup := seenContacts[c.ID]; dup {
					continue
				}
				seenContacts[c.ID] = struct{}{}
			}

			switch c.Type {
			case sharedDomain.ContactPhoneNumber:
				t.phones++
			case sharedDomain.ContactLocation:
				location := c.EffectiveLocation()
				if location == "" {
					continue
				}
				key := LocationKey(location)
				if _, ok := t.display[key]; !ok {
					t.display[key] = location
					t.locations = append(t.locations, key)
				}
			}
		}
	}

	personIDs := make([]uuid.UUID, 0, len(totals))
	for id := range totals {
		personIDs = append(personIDs, id)
	}
	sort.Slice(personIDs, func(i, j int) bool { return bytes.Compare(personIDs[i][:], personIDs[j][:]) < 0 })

	groups := make(map[string]*locationGroup)
	for _, id := range personIDs {
		t := totals[id]
		for _, key := range t.locations {
			g, ok := groups[key]
			if !ok {
				g = &locationGroup{display: t.display[key], persons: map[uuid.UUID]struct{}{}}
				groups[key] = g
			}
			if _, counted := g.persons[id]; counted {
				continue
			}
			g.persons[id] = struct{}{}
			g.phones += t.phones
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stats := make([]LocationStatistic, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		stats = append(stats, LocationStatistic{
			Location:         g.display,
			PersonCount:      len(g.persons),
			PhoneNumberCount: g.phones,
		})
	}
	return stats
}

func sortedPersons(in []PersonContacts) []PersonContacts {
	out := append([]PersonContacts(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return bytes.Compare(out[i].PersonID[:], out[j].PersonID[:]) < 0
	})
	return out
}

func sortedContacts(in []ContactRecord) []ContactRecord {
	out := append([]ContactRecord(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}
