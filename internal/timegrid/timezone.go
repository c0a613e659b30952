package timegrid

import (
	"strings"
	"time"
)

// TimezoneSource supplies the user's configured IANA timezone name.
type TimezoneSource interface {
	Timezone() string
}

// StaticTimezone is a fixed TimezoneSource.
type StaticTimezone string

// Timezone implements TimezoneSource.
func (s StaticTimezone) Timezone() string { return string(s) }

// ResolveLocation loads the location named by src, falling back to UTC when the
// source is nil, empty or names an unknown zone.
func ResolveLocation(src TimezoneSource) *time.Location {
	if src == nil {
		return time.UTC
	}
	name := strings.TrimSpace(src.Timezone())
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WithTimezone returns a copy of g interpreting times in src's location.
func (g Grid) WithTimezone(src TimezoneSource) Grid {
	g.Location = ResolveLocation(src)
	return g
}
