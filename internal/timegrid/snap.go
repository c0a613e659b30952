package timegrid

import (
	"time"

	"github.com/teemow/slotwise/internal/models"
)

// SnapMode selects the rounding direction used when quantising.
type SnapMode int

const (
	SnapNearest SnapMode = iota
	SnapDown
	SnapUp
)

// Edge names the boundary of a range that a resize gesture is moving.
type Edge int

const (
	EdgeEnd Edge = iota
	EdgeStart
)

// SnapMinutes quantises minutes to a multiple of interval. Negative inputs are
// supported so gesture deltas can be snapped directly. An interval <= 0 falls
// back to DefaultSnapMinutes.
func SnapMinutes(minutes, interval int, mode SnapMode) int {
	if interval <= 0 {
		interval = DefaultSnapMinutes
	}
	switch mode {
	case SnapDown:
		return floorDiv(minutes, interval) * interval
	case SnapUp:
		return -floorDiv(-minutes, interval) * interval
	default:
		return floorDiv(minutes+interval/2, interval) * interval
	}
}

// SnapToInterval quantises t to a multiple of intervalMinutes counted as
// elapsed time since local midnight in t's own location. Working on elapsed
// time keeps the offset unambiguous across a DST change, so the result never
// moves by more than one interval. Seconds and below are dropped first, so
// SnapToInterval(SnapToInterval(t)) == SnapToInterval(t) for every mode.
func SnapToInterval(t time.Time, intervalMinutes int, mode SnapMode) time.Time {
	if t.IsZero() {
		return t
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	minutes := int(t.Sub(midnight) / time.Minute)
	snapped := SnapMinutes(minutes, intervalMinutes, mode)
	return midnight.Add(time.Duration(snapped) * time.Minute)
}

// TruncateMinute drops seconds and sub-second precision.
func TruncateMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// RangesOverlap reports whether a and b share part of an open interval.
// Ranges that only touch at an endpoint do not overlap.
func RangesOverlap(a, b models.Range) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// EnforceMinimumDuration extends the boundary named by edge so that
// end - start >= minimum. A non-positive minimum uses DefaultMinimumDuration.
func EnforceMinimumDuration(start, end time.Time, minimum time.Duration, edge Edge) (time.Time, time.Time) {
	if minimum <= 0 {
		minimum = DefaultMinimumDuration
	}
	if end.Sub(start) >= minimum {
		return start, end
	}
	if edge == EdgeStart {
		return end.Add(-minimum), end
	}
	return start, start.Add(minimum)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
