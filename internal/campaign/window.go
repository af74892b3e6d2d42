package campaign

import "time"

// Window is an inclusive date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two inclusive windows intersect. This is the
// 4-way membership test the generator uses against project engagements:
// either window starts inside the other, or one contains the other.
func (w Window) Overlaps(o Window) bool {
	return !w.Start.After(o.End) && !o.Start.After(w.End)
}

// Clip returns the intersection of the two windows. A window whose end lands
// before its start (possible when the inputs do not overlap) clamps to the
// start date so day counts never go negative.
func (w Window) Clip(o Window) Window {
	out := w
	if o.Start.After(out.Start) {
		out.Start = o.Start
	}
	if o.End.Before(out.End) {
		out.End = o.End
	}
	if out.End.Before(out.Start) {
		out.End = out.Start
	}
	return out
}

// Days returns the inclusive day count: a single-day window counts as 1.
func (w Window) Days() int {
	s := truncateDay(w.Start)
	e := truncateDay(w.End)
	if e.Before(s) {
		return 1
	}
	return int(e.Sub(s).Hours()/24) + 1
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
