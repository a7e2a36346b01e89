// internal/service/schedule/schedule_service_test.go
package schedule

import (
	"testing"
	"time"

	"jikoni-service/internal/domain/schedule"
	xerrors "jikoni-service/internal/pkg/errors"
	"jikoni-service/internal/pkg/recurrence"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyUpdateRejectsEndBeforeStart(t *testing.T) {
	o := activeDailyOrder()
	end := o.StartDate.AddDate(0, 0, -1)

	_, err := applyUpdate(o, &schedule.UpdateScheduledOrderRequest{EndDate: &end})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestApplyUpdateRejectsStartMovedPastEnd(t *testing.T) {
	o := activeDailyOrder()
	end := o.StartDate.AddDate(0, 0, 7)
	start := end.AddDate(0, 0, 3)

	// Both fields move in one request; the merged pair is what must hold.
	_, err := applyUpdate(o, &schedule.UpdateScheduledOrderRequest{
		StartDate: &start,
		EndDate:   &end,
	})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestApplyUpdateRejectsNonPositiveAmount(t *testing.T) {
	o := activeDailyOrder()
	amount := decimal.Zero

	_, err := applyUpdate(o, &schedule.UpdateScheduledOrderRequest{EstimatedAmount: &amount})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestApplyUpdateReportsCadenceChange(t *testing.T) {
	o := activeDailyOrder()
	name := "Friday lunch"

	changed, err := applyUpdate(o, &schedule.UpdateScheduledOrderRequest{Name: &name})
	require.NoError(t, err)
	assert.False(t, changed, "renaming does not touch the cadence")
	assert.Equal(t, "Friday lunch", o.Name)

	pattern := recurrence.PatternWeekly
	changed, err = applyUpdate(o, &schedule.UpdateScheduledOrderRequest{
		RecurrencePattern:  &pattern,
		SelectedDaysOfWeek: []time.Weekday{time.Friday},
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, recurrence.PatternWeekly, o.RecurrencePattern)
	assert.Equal(t, []time.Weekday{time.Friday}, o.SelectedDaysOfWeek)
}
