package config

import "time"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate parses an ISO-8601 date or timestamp. Values without a zone
// are taken as UTC, so a bare date is midnight UTC of that day.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateWindow is an inclusive time range. A nil bound is open.
type DateWindow struct {
	From  *time.Time
	Until *time.Time
}

// IsZero reports whether neither bound is set.
func (w DateWindow) IsZero() bool {
	return w.From == nil && w.Until == nil
}

// BeforeFrom reports whether t falls strictly before the lower bound.
func (w DateWindow) BeforeFrom(t time.Time) bool {
	return w.From != nil && t.Before(*w.From)
}

// AfterUntil reports whether t falls strictly after the upper bound.
func (w DateWindow) AfterUntil(t time.Time) bool {
	return w.Until != nil && t.After(*w.Until)
}

// Contains reports whether t lies inside the window, bounds included.
func (w DateWindow) Contains(t time.Time) bool {
	return !w.BeforeFrom(t) && !w.AfterUntil(t)
}

// FromParam renders the lower bound for use as an API query parameter,
// or "" when open.
func (w DateWindow) FromParam() string {
	if w.From == nil {
		return ""
	}
	return w.From.UTC().Format(time.RFC3339)
}

// UntilParam renders the upper bound for use as an API query parameter,
// or "" when open. Fractional seconds round up so the server side filter
// never drops anything the window contains.
func (w DateWindow) UntilParam() string {
	if w.Until == nil {
		return ""
	}
	until := w.Until.UTC()
	if t := until.Truncate(time.Second); !t.Equal(until) {
		until = t.Add(time.Second)
	}
	return until.Format(time.RFC3339)
}
