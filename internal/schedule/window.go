package schedule

import (
	"errors"
	"time"
)

// ErrEmptyWindow is returned for windows whose start is not before their end.
var ErrEmptyWindow = errors.New("window start must be before end")

// Window is the half-open interval [Start, End) in UTC.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow builds a non-empty window, normalised to UTC.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start.UTC(), End: end.UTC()}
	if w.Empty() {
		return Window{}, ErrEmptyWindow
	}
	return w, nil
}

// Empty reports whether the window has no duration.
func (w Window) Empty() bool {
	return !w.Start.Before(w.End)
}

// Overlaps is the strict half-open test aStart < bEnd && aEnd > bStart.
// Windows that touch do not overlap, and an empty window overlaps nothing.
func (w Window) Overlaps(o Window) bool {
	if w.Empty() || o.Empty() {
		return false
	}
	return w.Start.Before(o.End) && w.End.After(o.Start)
}

// UTC returns w with both bounds in UTC.
func (w Window) UTC() Window {
	return Window{Start: w.Start.UTC(), End: w.End.UTC()}
}
