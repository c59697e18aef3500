package domain

import (
	"fmt"
	"strings"
)

// LocationStatistic pertenece a un único Report y no cambia tras crearse.
type LocationStatistic struct {
	Location         string `json:"location"`
	PersonCount      int    `json:"personCount"`
	PhoneNumberCount int    `json:"phoneNumberCount"`
}

func NewLocationStatistic(location string, personCount, phoneNumberCount int) (LocationStatistic, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return LocationStatistic{}, fmt.Errorf("%w: location is required", ErrInvalidLocationStatistic)
	}
	if personCount < 0 || phoneNumberCount < 0 {
		return LocationStatistic{}, fmt.Errorf("%w: counts must be non-negative", ErrInvalidLocationStatistic)
	}
	return LocationStatistic{Location: location, PersonCount: personCount, PhoneNumberCount: phoneNumberCount}, nil
}
