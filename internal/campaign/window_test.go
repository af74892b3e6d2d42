package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowOverlaps(t *testing.T) {
	base := Window{Start: day(2025, 1, 1), End: day(2025, 3, 31)}

	cases := []struct {
		name string
		o    Window
		want bool
	}{
		{"starts inside", Window{day(2025, 2, 1), day(2025, 5, 1)}, true},
		{"ends inside", Window{day(2024, 12, 1), day(2025, 1, 15)}, true},
		{"contained", Window{day(2025, 2, 1), day(2025, 2, 28)}, true},
		{"contains", Window{day(2024, 1, 1), day(2026, 1, 1)}, true},
		{"touching start boundary", Window{day(2024, 11, 1), day(2025, 1, 1)}, true},
		{"touching end boundary", Window{day(2025, 3, 31), day(2025, 6, 1)}, true},
		{"entirely before", Window{day(2024, 1, 1), day(2024, 12, 31)}, false},
		{"entirely after", Window{day(2025, 4, 1), day(2025, 6, 1)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, base.Overlaps(tc.o))
			assert.Equal(t, tc.want, tc.o.Overlaps(base))
		})
	}
}

func TestWindowClip(t *testing.T) {
	period := Window{Start: day(2025, 1, 1), End: day(2025, 3, 31)}

	got := period.Clip(Window{Start: day(2024, 12, 1), End: day(2025, 2, 14)})
	assert.Equal(t, day(2025, 1, 1), got.Start)
	assert.Equal(t, day(2025, 2, 14), got.End)

	// disjoint input clamps to a zero-length window instead of going negative
	got = period.Clip(Window{Start: day(2025, 6, 1), End: day(2025, 6, 30)})
	assert.False(t, got.End.Before(got.Start))
	assert.Equal(t, 1, got.Days())
}

func TestWindowDays(t *testing.T) {
	assert.Equal(t, 1, Window{day(2025, 1, 1), day(2025, 1, 1)}.Days())
	assert.Equal(t, 10, Window{day(2025, 1, 1), day(2025, 1, 10)}.Days())
	assert.Equal(t, 90, Window{day(2025, 1, 1), day(2025, 3, 31)}.Days())
	assert.Equal(t, 365, Window{day(2025, 1, 1), day(2025, 12, 31)}.Days())

	// time-of-day noise must not change the count
	w := Window{
		Start: time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 10, 0, 1, 0, 0, time.UTC),
	}
	assert.Equal(t, 10, w.Days())
}

func TestWindowContains(t *testing.T) {
	w := Window{Start: day(2025, 1, 1), End: day(2025, 1, 31)}
	assert.True(t, w.Contains(day(2025, 1, 1)))
	assert.True(t, w.Contains(day(2025, 1, 31)))
	assert.False(t, w.Contains(day(2025, 2, 1)))
}
