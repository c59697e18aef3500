package domain

// ContactType viaja como entero en los eventos y en la API de contactos.
type ContactType int

const (
	ContactPhoneNumber  ContactType = 1
	ContactEmailAddress ContactType = 2
	ContactLocation     ContactType = 3
)

func (t ContactType) Valid() bool {
	return t >= ContactPhoneNumber && t <= ContactLocation
}

func (t ContactType) String() string {
	switch t {
	case ContactPhoneNumber:
		return "PhoneNumber"
	case ContactEmailAddress:
		return "EmailAddress"
	case ContactLocation:
		return "Location"
	default:
		return "Unknown"
	}
}
