package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// TimeOfDay is a minute-precision wall-clock time, stored as minutes since
// midnight. It serialises as "HH:MM" in JSON and as an integer in the database.
type TimeOfDay int

// MinutesPerDay bounds valid TimeOfDay values.
const MinutesPerDay = 24 * 60

// NewTimeOfDay builds a TimeOfDay from an hour/minute pair.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses the canonical "HH:MM" form into a TimeOfDay. Both
// fields must be two digits; anything else is rejected.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	if len(raw) != 5 || raw[2] != ':' {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", raw)
	}
	for _, i := range [...]int{0, 1, 3, 4} {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, fmt.Errorf("invalid time of day %q: want HH:MM", raw)
		}
	}
	hour := int(raw[0]-'0')*10 + int(raw[1]-'0')
	minute := int(raw[3]-'0')*10 + int(raw[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, fmt.Errorf("invalid time of day %q: out of range", raw)
	}
	return NewTimeOfDay(hour, minute), nil
}

// Valid reports whether the value lies within a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

// String renders the canonical "HH:MM" form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalJSON implements json.Marshaler.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return int64(t), nil
}

// Scan implements sql.Scanner.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*t = TimeOfDay(v)
		return nil
	case []byte:
		parsed, err := ParseTimeOfDay(string(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

// TimeRange is a half-open [Start, End) interval within one day.
type TimeRange struct {
	Start TimeOfDay `json:"start_time"`
	End   TimeOfDay `json:"end_time"`
}

// Valid reports whether the range is well formed (non-empty, within a day).
func (r TimeRange) Valid() bool {
	return r.Start.Valid() && r.End.Valid() && r.Start < r.End
}

// Duration returns the range length in minutes.
func (r TimeRange) Duration() int {
	return int(r.End - r.Start)
}

// Overlaps reports open-interval overlap; ranges that merely touch do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// Intersect clips the range to the other, returning the shared interval.
// The second return is false when the ranges do not overlap.
func (r TimeRange) Intersect(other TimeRange) (TimeRange, bool) {
	start := r.Start
	if other.Start > start {
		start = other.Start
	}
	end := r.End
	if other.End < end {
		end = other.End
	}
	if start >= end {
		return TimeRange{}, false
	}
	return TimeRange{Start: start, End: end}, true
}
