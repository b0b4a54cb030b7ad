package model

// Bounds is the visible time window, in the unit of the active time system.
// Start <= End is expected but not enforced.
type Bounds struct {
	Start int64
	End   int64
}

// Span returns the total width of the window.
func (b Bounds) Span() int64 {
	return b.End - b.Start
}

// Center returns the midpoint of the window.
func (b Bounds) Center() int64 {
	return b.Start + (b.End-b.Start)/2
}

// Deltas describes how far the window extends backward (Start) and forward
// (End) from a pivot time. Both values are non-negative by convention.
type Deltas struct {
	Start int64
	End   int64
}

// IsZero reports whether both offsets are zero.
func (d Deltas) IsZero() bool {
	return d.Start == 0 && d.End == 0
}
