package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func membership(contactID uuid.UUID, location string) *LocationMembership {
	return &LocationMembership{ContactID: contactID, PersonID: uuid.New(), LocationKey: LocationKey(location), Location: location}
}

func TestPlanMembershipChange(t *testing.T) {
	contactID := uuid.New()
	ankara := membership(contactID, "Ankara")
	ankaraUpper := membership(contactID, "ANKARA")
	izmir := membership(contactID, "Izmir")
	tomb := Tombstone(contactID, uuid.New(), time.Now())

	tests := []struct {
		name     string
		prev     *LocationMembership
		next     *LocationMembership
		expected []TallyDelta
	}{
		{"sin cambios", nil, nil, nil},
		{"alta", nil, ankara, []TallyDelta{{Key: "ankara", Location: "Ankara", Delta: 1}}},
		{"baja", ankara, nil, []TallyDelta{{Key: "ankara", Location: "Ankara", Delta: -1}}},
		{"reentrega", ankara, ankara, nil},
		{"misma ubicación con otra grafía", ankara, ankaraUpper, nil},
		{"traslado", ankara, izmir, []TallyDelta{
			{Key: "ankara", Location: "Ankara", Delta: -1},
			{Key: "izmir", Location: "Izmir", Delta: 1},
		}},
		{"borrado", ankara, tomb, []TallyDelta{{Key: "ankara", Location: "Ankara", Delta: -1}}},
		{"borrado sin alta previa", nil, tomb, nil},
		{"alta tras borrado", tomb, ankara, nil},
		{"borrado repetido", tomb, tomb, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PlanMembershipChange(tt.prev, tt.next))
		})
	}
}

func TestMembershipSame(t *testing.T) {
	m := membership(uuid.New(), "Ankara")
	copyOf := *m

	assert.True(t, MembershipSame(nil, nil))
	assert.True(t, MembershipSame(m, &copyOf))
	assert.False(t, MembershipSame(m, nil))
	copyOf.Location = "ANKARA"
	assert.False(t, MembershipSame(m, &copyOf))
}

func TestPlanMembershipWrite(t *testing.T) {
	contactID, personID := uuid.New(), uuid.New()
	deletedAt := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	ankara := membership(contactID, "Ankara")
	tomb := Tombstone(contactID, personID, deletedAt)

	t.Run("el borrado guarda una lápida con la ubicación previa", func(t *testing.T) {
		plan := PlanMembershipWrite(ankara, tomb)

		assert.False(t, plan.Skip)
		if assert.NotNil(t, plan.Row) {
			assert.True(t, plan.Row.IsDeleted())
			assert.Equal(t, "ankara", plan.Row.LocationKey)
			assert.Equal(t, personID, plan.Row.PersonID)
			assert.True(t, deletedAt.Equal(*plan.Row.DeletedAt))
		}
		assert.Equal(t, []TallyDelta{{Key: "ankara", Location: "Ankara", Delta: -1}}, plan.Deltas)
	})

	t.Run("el borrado antes del alta deja la lápida", func(t *testing.T) {
		plan := PlanMembershipWrite(nil, tomb)

		assert.False(t, plan.Skip)
		assert.True(t, plan.Row.IsDeleted())
		assert.Empty(t, plan.Deltas)
	})

	t.Run("nada resucita una lápida", func(t *testing.T) {
		assert.True(t, PlanMembershipWrite(tomb, ankara).Skip)
		assert.True(t, PlanMembershipWrite(tomb, nil).Skip)
		assert.True(t, PlanMembershipWrite(tomb, Tombstone(contactID, personID, deletedAt.Add(time.Hour))).Skip)
	})

	t.Run("quitar la ubicación borra la fila", func(t *testing.T) {
		plan := PlanMembershipWrite(ankara, nil)

		assert.False(t, plan.Skip)
		assert.Nil(t, plan.Row)
		assert.Equal(t, []TallyDelta{{Key: "ankara", Location: "Ankara", Delta: -1}}, plan.Deltas)
	})
}
