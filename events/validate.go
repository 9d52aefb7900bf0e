package events

import (
	"fmt"
	"time"

	"github.com/nholm/housecal/internal/nights"
)

// MaxDays caps the length of a single reservation.
const MaxDays = 90

// minDaysSpan is the minimum calendar span: end exclusive, so a one-night
// stay covers two calendar days.
const minDaysSpan = 2

// validate fast-fails a candidate reservation before any I/O. It is pure
// and deterministic; the id and version are not inspected.
func (m *Model) validate(event Event) error {
	if event.Title == "" || event.Start == "" || event.End == "" {
		return newError(CodeStartEndRequired, "title, start and end are required")
	}

	start, err := time.Parse(nights.Format, event.Start)
	if err != nil {
		return newError(CodeValidation, "invalid start date: "+event.Start)
	}
	end, err := time.Parse(nights.Format, event.End)
	if err != nil {
		return newError(CodeValidation, "invalid end date: "+event.End)
	}

	if start.After(end) {
		return newError(CodeValidation, "start date is after end date")
	}

	if end.Sub(start) > MaxDays*24*time.Hour {
		validationErr := newError(CodeMaxDays, fmt.Sprintf("reservations are limited to %d nights", MaxDays))
		validationErr.Data.MaxDays = MaxDays
		return validationErr
	}

	if start.AddDate(0, 0, minDaysSpan).After(end) {
		validationErr := newError(CodeMinDays, "reservations must be at least one night")
		validationErr.Data.MinDays = minDaysSpan
		return validationErr
	}

	if !m.users.IsValid(event.Title) {
		return newError(CodeValidation, "invalid title: "+event.Title)
	}

	return nil
}
