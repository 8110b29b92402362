package utils

import (
	"time"
)

const displayLayout = "02/01/2006 15:04:05"

// LoadLocation falls back to UTC when name is empty or unknown.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatArrival renders a stored UTC instant for people at the door.
func FormatArrival(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(displayLayout)
}
