package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	parsed, err := ParseTimeOfDay("08:30")
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(8, 30), parsed)
	assert.Equal(t, "08:30", parsed.String())

	parsed, err = ParseTimeOfDay("00:00")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(0), parsed)

	parsed, err = ParseTimeOfDay("23:59")
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(23, 59), parsed)
}

func TestParseTimeOfDayRejectsMalformed(t *testing.T) {
	malformed := []string{
		"",
		"8:30",
		"08:3",
		"08:30xyz",
		"0830",
		"ab:cd",
		"+8:30",
		" 8:30",
		"08-30",
		"24:00",
		"08:60",
	}
	for _, raw := range malformed {
		_, err := ParseTimeOfDay(raw)
		assert.Error(t, err, raw)
	}
}

func TestTimeRangeOverlapAndIntersect(t *testing.T) {
	a := TimeRange{Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(9, 0)}
	b := TimeRange{Start: NewTimeOfDay(8, 30), End: NewTimeOfDay(9, 30)}
	c := TimeRange{Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(10, 0)}

	assert.True(t, a.Overlaps(b))
	// touching ranges do not overlap
	assert.False(t, a.Overlaps(c))

	overlap, ok := a.Intersect(b)
	require.True(t, ok)
	assert.Equal(t, NewTimeOfDay(8, 30), overlap.Start)
	assert.Equal(t, NewTimeOfDay(9, 0), overlap.End)

	_, ok = a.Intersect(c)
	assert.False(t, ok)
}
