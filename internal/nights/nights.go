// Package nights computes the set of calendar nights a reservation occupies.
package nights

import (
	"fmt"
	"time"
)

// Format is the calendar date layout used throughout the module.
const Format = "2006-01-02"

// Dates returns every night in the half-open range [start, end): one date
// per night of the stay, checkout day excluded. Dates must be in Format.
func Dates(start, end string) ([]string, error) {
	from, err := time.Parse(Format, start)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", start, err)
	}
	to, err := time.Parse(Format, end)
	if err != nil {
		return nil, fmt.Errorf("parse end date %q: %w", end, err)
	}

	var dates []string
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(Format))
	}
	return dates, nil
}

// Diff returns the dates present in next but not prev (added) and the dates
// present in prev but not next (removed), preserving input order.
func Diff(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, d := range prev {
		prevSet[d] = struct{}{}
	}
	nextSet := make(map[string]struct{}, len(next))
	for _, d := range next {
		nextSet[d] = struct{}{}
	}

	for _, d := range next {
		if _, ok := prevSet[d]; !ok {
			added = append(added, d)
		}
	}
	for _, d := range prev {
		if _, ok := nextSet[d]; !ok {
			removed = append(removed, d)
		}
	}
	return added, removed
}
