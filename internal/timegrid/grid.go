package timegrid

import (
	"math"
	"time"
)

const (
	// DefaultSnapMinutes is the quantisation granularity for gesture-derived times.
	DefaultSnapMinutes = 15

	// DefaultMinimumDuration is the shortest range a resize may produce.
	DefaultMinimumDuration = 15 * time.Minute

	// DefaultPixelsPerMinute is the vertical scale of the day view.
	DefaultPixelsPerMinute = 1.0

	minutesPerHour = 60
	hoursPerDay    = 24
)

// Grid describes the geometry of the rendered day/week view.
type Grid struct {
	// PixelsPerMinute is the vertical scale (default 1.0).
	PixelsPerMinute float64

	// ViewStartHour and ViewEndHour bound the visible window (default 0-24).
	ViewStartHour int
	ViewEndHour   int

	// SnapMinutes is the snap interval (default 15).
	SnapMinutes int

	// MinimumDuration is the shortest range a resize may produce (default 15m).
	MinimumDuration time.Duration

	// ColumnWidth and Columns describe side-by-side day columns. Zero values
	// mean a single column.
	ColumnWidth float64
	Columns     int

	// Location interprets pointer-derived wall-clock times. Nil means UTC.
	Location *time.Location
}

// DefaultGrid returns a single-column 24h grid at one pixel per minute.
func DefaultGrid() Grid {
	return Grid{
		PixelsPerMinute: DefaultPixelsPerMinute,
		ViewStartHour:   0,
		ViewEndHour:     hoursPerDay,
		SnapMinutes:     DefaultSnapMinutes,
		MinimumDuration: DefaultMinimumDuration,
		Columns:         1,
		Location:        time.UTC,
	}
}

// Normalize fills zero or nonsensical values with defaults.
func (g Grid) Normalize() Grid {
	if g.PixelsPerMinute <= 0 || math.IsNaN(g.PixelsPerMinute) || math.IsInf(g.PixelsPerMinute, 0) {
		g.PixelsPerMinute = DefaultPixelsPerMinute
	}
	if g.ViewStartHour < 0 || g.ViewStartHour >= hoursPerDay {
		g.ViewStartHour = 0
	}
	if g.ViewEndHour <= g.ViewStartHour || g.ViewEndHour > hoursPerDay {
		g.ViewEndHour = hoursPerDay
	}
	if g.SnapMinutes <= 0 {
		g.SnapMinutes = DefaultSnapMinutes
	}
	if g.MinimumDuration <= 0 {
		g.MinimumDuration = DefaultMinimumDuration
	}
	if g.Columns <= 0 {
		g.Columns = 1
	}
	if g.ColumnWidth < 0 || math.IsNaN(g.ColumnWidth) || math.IsInf(g.ColumnWidth, 0) {
		g.ColumnWidth = 0
	}
	if g.Location == nil {
		g.Location = time.UTC
	}
	return g
}

// YToMinutes maps a vertical pointer position to a minute-of-day inside the
// visible window. The result is truncated to whole minutes.
func (g Grid) YToMinutes(pointerY, containerTopY float64) int {
	g = g.Normalize()
	lo := g.ViewStartHour * minutesPerHour
	hi := g.ViewEndHour * minutesPerHour

	offset := (pointerY - containerTopY) / g.PixelsPerMinute
	if math.IsNaN(offset) {
		return lo
	}
	if offset <= 0 {
		return lo
	}
	if offset >= float64(hi-lo) {
		return hi
	}
	return lo + int(offset)
}

// YToTime maps a vertical pointer position to a wall-clock time on day, in the
// grid's location.
func (g Grid) YToTime(pointerY, containerTopY float64, day time.Time) time.Time {
	g = g.Normalize()
	minutes := g.YToMinutes(pointerY, containerTopY)
	d := day.In(g.Location)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, minutes, 0, 0, g.Location)
}

// XToColumn returns the day column under pointerX, clamped to the grid.
func (g Grid) XToColumn(pointerX, containerLeftX float64) int {
	g = g.Normalize()
	if g.Columns == 1 || g.ColumnWidth == 0 {
		return 0
	}
	offset := (pointerX - containerLeftX) / g.ColumnWidth
	if math.IsNaN(offset) || offset <= 0 {
		return 0
	}
	col := int(offset)
	if col >= g.Columns {
		return g.Columns - 1
	}
	return col
}

// Snap quantises t with the grid's snap interval.
func (g Grid) Snap(t time.Time, mode SnapMode) time.Time {
	return SnapToInterval(t, g.Normalize().SnapMinutes, mode)
}

// PixelsToMinutes converts a vertical pixel delta to whole minutes, truncating
// toward zero. NaN and infinities are treated as no movement.
func (g Grid) PixelsToMinutes(dy float64) int {
	g = g.Normalize()
	m := dy / g.PixelsPerMinute
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 0
	}
	limit := float64(hoursPerDay * minutesPerHour)
	if m > limit {
		return int(limit)
	}
	if m < -limit {
		return -int(limit)
	}
	return int(m)
}
