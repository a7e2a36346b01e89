package recurrence

import (
	"testing"
	"time"

	xerrors "jikoni-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateCustomRequiresInterval(t *testing.T) {
	_, err := Generate(Spec{
		Start:          date(2024, time.January, 1),
		Pattern:        PatternCustom,
		MaxOccurrences: 5,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrInvalidSpecification)

	_, err = Generate(Spec{
		Start:              date(2024, time.January, 1),
		Pattern:            PatternCustom,
		CustomIntervalDays: -3,
		MaxOccurrences:     5,
	})
	assert.ErrorIs(t, err, xerrors.ErrInvalidSpecification)
}

func TestGenerateZeroOccurrences(t *testing.T) {
	dates, err := Generate(Spec{
		Start:          date(2024, time.January, 1),
		Pattern:        PatternDaily,
		MaxOccurrences: 0,
	})
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestGenerateOnce(t *testing.T) {
	start := date(2024, time.March, 10)
	dates, err := Generate(Spec{Start: start, Pattern: PatternOnce, MaxOccurrences: 10})
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, start, dates[0])
}

func TestGenerateDaily(t *testing.T) {
	dates, err := Generate(Spec{
		Start:          date(2024, time.January, 1),
		Pattern:        PatternDaily,
		MaxOccurrences: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2024, time.January, 1),
		date(2024, time.January, 2),
		date(2024, time.January, 3),
	}, dates)
}

func TestGenerateWeeklySelectedDays(t *testing.T) {
	// 2024-01-01 is a Monday.
	dates, err := Generate(Spec{
		Start:          date(2024, time.January, 1),
		Pattern:        PatternWeekly,
		DaysOfWeek:     []time.Weekday{time.Monday, time.Thursday},
		MaxOccurrences: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2024, time.January, 1),  // Mon
		date(2024, time.January, 4),  // Thu
		date(2024, time.January, 8),  // Mon
		date(2024, time.January, 11), // Thu
		date(2024, time.January, 15), // Mon
	}, dates)
}

func TestGenerateWeeklyEmptyDaysFallsBackToSevenDays(t *testing.T) {
	dates, err := Generate(Spec{
		Start:          date(2024, time.January, 1),
		Pattern:        PatternWeekly,
		MaxOccurrences: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2024, time.January, 1),
		date(2024, time.January, 8),
		date(2024, time.January, 15),
	}, dates)
}

func TestGenerateBiweeklyIgnoresSelectedDays(t *testing.T) {
	dates, err := Generate(Spec{
		Start:          date(2024, time.January, 1),
		Pattern:        PatternBiweekly,
		DaysOfWeek:     []time.Weekday{time.Friday},
		MaxOccurrences: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2024, time.January, 1),
		date(2024, time.January, 15),
		date(2024, time.January, 29),
	}, dates)
}

func TestGenerateMonthlyClampsEndOfMonth(t *testing.T) {
	dates, err := Generate(Spec{
		Start:          date(2024, time.January, 31),
		Pattern:        PatternMonthly,
		MaxOccurrences: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2024, time.January, 31),
		date(2024, time.February, 29), // leap year
		date(2024, time.March, 29),    // day stays clamped
	}, dates)
}

func TestGenerateMonthlyNonLeapFebruary(t *testing.T) {
	dates, err := Generate(Spec{
		Start:          date(2023, time.January, 31),
		Pattern:        PatternMonthly,
		MaxOccurrences: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, date(2023, time.February, 28), dates[1])
}

func TestGenerateCustomInterval(t *testing.T) {
	dates, err := Generate(Spec{
		Start:              date(2024, time.January, 1),
		Pattern:            PatternCustom,
		CustomIntervalDays: 10,
		MaxOccurrences:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2024, time.January, 1),
		date(2024, time.January, 11),
		date(2024, time.January, 21),
	}, dates)
}

func TestGenerateUnknownPatternStopsAfterStart(t *testing.T) {
	start := date(2024, time.January, 1)
	dates, err := Generate(Spec{Start: start, Pattern: Pattern("lunar"), MaxOccurrences: 5})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{start}, dates)
}

func TestGenerateProperties(t *testing.T) {
	specs := []Spec{
		{Start: date(2024, time.February, 29), Pattern: PatternDaily, MaxOccurrences: 20},
		{Start: date(2024, time.June, 15), Pattern: PatternWeekly, DaysOfWeek: []time.Weekday{time.Saturday, time.Sunday}, MaxOccurrences: 12},
		{Start: date(2024, time.December, 31), Pattern: PatternMonthly, MaxOccurrences: 14},
		{Start: date(2024, time.January, 1), Pattern: PatternCustom, CustomIntervalDays: 3, MaxOccurrences: 7},
		{Start: date(2024, time.January, 1), Pattern: PatternBiweekly, MaxOccurrences: 9},
	}

	for _, spec := range specs {
		dates, err := Generate(spec)
		require.NoError(t, err)
		require.NotEmpty(t, dates)
		assert.LessOrEqual(t, len(dates), spec.MaxOccurrences)
		assert.Equal(t, spec.Start, dates[0], "first date must be the start")

		for i := 1; i < len(dates); i++ {
			assert.True(t, dates[i].After(dates[i-1]),
				"dates must be strictly increasing: %v then %v", dates[i-1], dates[i])
		}
	}
}

func TestFastForward(t *testing.T) {
	daily := Spec{Start: date(2024, time.January, 1), Pattern: PatternDaily}
	ffDate, steps := FastForwardCount(daily, date(2024, time.April, 15))
	assert.Equal(t, date(2024, time.April, 15), ffDate)
	assert.Equal(t, 105, steps)

	// Weekly phase survives: the result is still the start's weekday.
	weekly := Spec{Start: date(2024, time.January, 1), Pattern: PatternWeekly}
	ffDate = FastForward(weekly, date(2024, time.June, 15))
	assert.Equal(t, date(2024, time.June, 10), ffDate)
	assert.Equal(t, time.Monday, ffDate.Weekday())

	// The end-of-month clamp keeps applying across the skipped months.
	monthly := Spec{Start: date(2024, time.January, 31), Pattern: PatternMonthly}
	ffDate = FastForward(monthly, date(2024, time.June, 1))
	assert.Equal(t, date(2024, time.May, 29), ffDate)

	once := Spec{Start: date(2024, time.January, 1), Pattern: PatternOnce}
	assert.Equal(t, date(2024, time.January, 1), FastForward(once, date(2030, time.January, 1)))

	early := Spec{Start: date(2024, time.June, 1), Pattern: PatternDaily}
	ffDate, steps = FastForwardCount(early, date(2024, time.January, 1))
	assert.Equal(t, date(2024, time.June, 1), ffDate, "a future start is left alone")
	assert.Zero(t, steps)
}

func TestPatternValid(t *testing.T) {
	for _, p := range []Pattern{PatternOnce, PatternDaily, PatternWeekly, PatternBiweekly, PatternMonthly, PatternCustom} {
		assert.True(t, p.Valid(), string(p))
	}
	assert.False(t, Pattern("").Valid())
	assert.False(t, Pattern("yearly").Valid())
}
