package domain

import (
	"time"

	"github.com/google/uuid"
)

// LocationMembership relaciona un contacto de tipo ubicación con su persona y su ubicación.
// Es lo que permite descontar al borrar un contacto. Un contacto borrado se conserva
// como lápida (DeletedAt != nil) para que los eventos tardíos o reentregados no lo resuciten.
type LocationMembership struct {
	ContactID   uuid.UUID  `json:"contactId"`
	PersonID    uuid.UUID  `json:"personId"`
	LocationKey string     `json:"locationKey"`
	Location    string     `json:"location"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// Tombstone marca el contacto como borrado en at.
func Tombstone(contactID, personID uuid.UUID, at time.Time) *LocationMembership {
	at = at.UTC()
	return &LocationMembership{ContactID: contactID, PersonID: personID, DeletedAt: &at}
}

func (m *LocationMembership) IsDeleted() bool {
	return m != nil && m.DeletedAt != nil
}

// counted indica si la pertenencia suma en algún contador.
func (m *LocationMembership) counted() bool {
	return m != nil && m.DeletedAt == nil
}

// LocationTally es el contador proyectado de contactos por ubicación.
type LocationTally struct {
	Key       string    `json:"key"`
	Location  string    `json:"location"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TallyDelta es un incremento o decremento a aplicar sobre un contador.
type TallyDelta struct {
	Key      string
	Location string
	Delta    int
}

// PlanMembershipChange calcula los ajustes de contador para pasar de prev a next
// (cualquiera puede ser nil o una lápida). Si la ubicación no cambia no hay ajustes, lo que
// hace idempotente la reentrega de un mismo evento. Una lápida previa es definitiva.
func PlanMembershipChange(prev, next *LocationMembership) []TallyDelta {
	switch {
	case prev.IsDeleted():
		return nil
	case !prev.counted() && !next.counted():
		return nil
	case !prev.counted():
		return []TallyDelta{{Key: next.LocationKey, Location: next.Location, Delta: 1}}
	case !next.counted():
		return []TallyDelta{{Key: prev.LocationKey, Location: prev.Location, Delta: -1}}
	case prev.LocationKey == next.LocationKey:
		return nil
	default:
		return []TallyDelta{
			{Key: prev.LocationKey, Location: prev.Location, Delta: -1},
			{Key: next.LocationKey, Location: next.Location, Delta: 1},
		}
	}
}

// MembershipSame indica si no hay nada que escribir.
func MembershipSame(prev, next *LocationMembership) bool {
	if prev == nil || next == nil {
		return prev == next
	}
	if prev.IsDeleted() != next.IsDeleted() {
		return false
	}
	a, b := *prev, *next
	a.DeletedAt, b.DeletedAt = nil, nil
	return a == b
}

// MembershipWrite es lo que un store tiene que persistir para pasar de prev a next.
type MembershipWrite struct {
	Skip   bool
	Row    *LocationMembership // nil con Skip=false: borrar la fila
	Deltas []TallyDelta
}

// PlanMembershipWrite decide la escritura de pertenencia y los ajustes de contador.
// Con una lápida previa no se escribe nada: ni un alta tardía ni un borrado repetido
// la cambian. La lápida nueva conserva la ubicación que tenía el contacto.
func PlanMembershipWrite(prev, next *LocationMembership) MembershipWrite {
	if prev.IsDeleted() || MembershipSame(prev, next) {
		return MembershipWrite{Skip: true}
	}

	row := next
	if next.IsDeleted() {
		tomb := *next
		if prev != nil {
			tomb.LocationKey = prev.LocationKey
			tomb.Location = prev.Location
		}
		row = &tomb
	}
	return MembershipWrite{Row: row, Deltas: PlanMembershipChange(prev, next)}
}
