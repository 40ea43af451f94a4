package reports

import (
	"errors"
	"time"
)

const DateLayout = "2006-01-02"

// DateRange parses optional from/to query values. Either bound may be nil.
// The upper bound covers the whole "to" day.
func DateRange(fromStr, toStr string, loc *time.Location) (from, to *time.Time, err error) {
	if loc == nil {
		loc = time.Local
	}
	if fromStr != "" {
		t, err := time.ParseInLocation(DateLayout, fromStr, loc)
		if err != nil {
			return nil, nil, errors.New("from_date must be YYYY-MM-DD")
		}
		from = &t
	}
	if toStr != "" {
		t, err := time.ParseInLocation(DateLayout, toStr, loc)
		if err != nil {
			return nil, nil, errors.New("to_date must be YYYY-MM-DD")
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, errors.New("from_date must be before to_date")
	}
	return from, to, nil
}
