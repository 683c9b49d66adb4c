// Package schedule holds the pure time arithmetic the booking engine uses to
// decide whether two appointments collide.
package schedule

import "time"

// Buffer is the fixed gap kept free after every appointment before the next
// one may start.
const Buffer = 10 * time.Minute

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow derives the blocking window for an appointment: the nominal
// service duration plus the post-appointment buffer.
func NewWindow(start time.Time, duration time.Duration) Window {
	return Window{Start: start, End: start.Add(duration + Buffer)}
}

// Overlaps reports whether two half-open ranges intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Overlaps reports whether w intersects other.
func (w Window) Overlaps(other Window) bool {
	return Overlaps(w.Start, w.End, other.Start, other.End)
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns the total blocked time, buffer included.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
