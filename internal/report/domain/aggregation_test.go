package domain

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
)

func phone(number string, deleted bool) ContactRecord {
	return ContactRecord{ID: uuid.New(), Type: sharedDomain.ContactPhoneNumber, Content: number, IsDeleted: deleted}
}

func location(content string) ContactRecord {
	return ContactRecord{ID: uuid.New(), Type: sharedDomain.ContactLocation, Content: content}
}

func TestAggregate_CountsPersonsAndActivePhones(t *testing.T) {
	persons := []PersonContacts{
		{PersonID: uuid.New(), Contacts: []ContactRecord{location("Ankara"), phone("5551111", true)}},
		{PersonID: uuid.New(), Contacts: []ContactRecord{location("Ankara"), phone("5552222", false)}},
		{PersonID: uuid.New(), Contacts: []ContactRecord{location("Izmir"), phone("5553333", false), phone("5554444", false)}},
	}

	stats := Aggregate(persons)

	assert.Equal(t, []LocationStatistic{
		{Location: "Ankara", PersonCount: 2, PhoneNumberCount: 1},
		{Location: "Izmir", PersonCount: 1, PhoneNumberCount: 2},
	}, stats)
}

func TestAggregate_GroupsCaseInsensitively(t *testing.T) {
	persons := []PersonContacts{
		{PersonID: uuid.New(), Contacts: []ContactRecord{location("Istanbul"), phone("1", false)}},
		{PersonID: uuid.New(), Contacts: []ContactRecord{location("ISTANBUL"), phone("2", false)}},
	}

	stats := Aggregate(persons)

	assert.Len(t, stats, 1)
	assert.Equal(t, "istanbul", LocationKey(stats[0].Location))
	assert.Equal(t, 2, stats[0].PersonCount)
	assert.Equal(t, 2, stats[0].PhoneNumberCount)
}

func TestAggregate_PersonWithTwoSpellingsCountsOnce(t *testing.T) {
	persons := []PersonContacts{
		{PersonID: uuid.New(), Contacts: []ContactRecord{
			{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), Type: sharedDomain.ContactLocation, Content: "bursa "},
			{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Type: sharedDomain.ContactLocation, Content: "Bursa"},
			phone("1", false),
		}},
	}

	stats := Aggregate(persons)

	assert.Equal(t, []LocationStatistic{{Location: "Bursa", PersonCount: 1, PhoneNumberCount: 1}}, stats)
}

func TestAggregate_PrefersCityNameAndSkipsDeletedOrBlankLocations(t *testing.T) {
	city := "Antalya"
	persons := []PersonContacts{
		{PersonID: uuid.New(), Contacts: []ContactRecord{
			{ID: uuid.New(), Type: sharedDomain.ContactLocation, Content: "antalya merkez", LocationName: &city},
		}},
		{PersonID: uuid.New(), Contacts: []ContactRecord{
			{ID: uuid.New(), Type: sharedDomain.ContactLocation, Content: "Konya", IsDeleted: true},
			{ID: uuid.New(), Type: sharedDomain.ContactLocation, Content: "   "},
			phone("1", false),
		}},
	}

	stats := Aggregate(persons)

	assert.Equal(t, []LocationStatistic{{Location: "Antalya", PersonCount: 1, PhoneNumberCount: 0}}, stats)
}

func TestAggregate_EmptyInput(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
	assert.NotNil(t, Aggregate(nil))
}

func TestAggregate_DeterministicRegardlessOfOrder(t *testing.T) {
	persons := []PersonContacts{
		{PersonID: uuid.New(), Contacts: []ContactRecord{location("Istanbul"), phone("1", false)}},
		{PersonID: uuid.New(), Contacts: []ContactRecord{location("ISTANBUL")}},
		{PersonID: uuid.New(), Contacts: []ContactRecord{location("Izmir"), phone("2", false), phone("3", true)}},
		{PersonID: uuid.New(), Contacts: []ContactRecord{location("istanbul"), location("Izmir"), phone("4", false)}},
	}
	expected := Aggregate(persons)

	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]PersonContacts(nil), persons...)
		rnd.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, expected, Aggregate(shuffled))
	}
}
