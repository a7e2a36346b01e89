package schedule

import (
	"database/sql"
	"testing"
	"time"

	"jikoni-service/internal/domain/schedule"
	xerrors "jikoni-service/internal/pkg/errors"
	"jikoni-service/internal/pkg/recurrence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

func testLifecycle() *Lifecycle {
	return NewLifecycle(func() time.Time { return testNow })
}

func activeDailyOrder() *schedule.ScheduledOrder {
	return &schedule.ScheduledOrder{
		ID:                    1,
		Status:                schedule.OrderStatusActive,
		RecurrencePattern:     recurrence.PatternDaily,
		StartDate:             time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		PreferredDeliveryTime: "12:00",
	}
}

func TestPauseActiveOrder(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	o.NextExecutionAt = sql.NullTime{Time: testNow.Add(2 * time.Hour), Valid: true}

	err := l.Pause(o, "on vacation")
	require.NoError(t, err)

	assert.Equal(t, schedule.OrderStatusPaused, o.Status)
	assert.True(t, o.PausedAt.Valid)
	assert.Equal(t, testNow, o.PausedAt.Time)
	assert.Equal(t, "on vacation", o.PauseReason.String)
	assert.False(t, o.NextExecutionAt.Valid, "pause must clear the next execution slot")
}

func TestPauseRejectsNonActive(t *testing.T) {
	l := testLifecycle()
	for _, status := range []schedule.OrderStatus{
		schedule.OrderStatusPaused,
		schedule.OrderStatusCompleted,
		schedule.OrderStatusCancelled,
		schedule.OrderStatusFailed,
		schedule.OrderStatusExpired,
	} {
		o := activeDailyOrder()
		o.Status = status
		err := l.Pause(o, "")
		assert.ErrorIs(t, err, xerrors.ErrInvalidTransition, string(status))
		assert.Equal(t, status, o.Status, "status must not change on a rejected transition")
	}
}

func TestResumeRecomputesNextExecution(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	require.NoError(t, l.Pause(o, "paused"))

	err := l.Resume(o)
	require.NoError(t, err)

	assert.Equal(t, schedule.OrderStatusActive, o.Status)
	assert.False(t, o.PausedAt.Valid)
	assert.False(t, o.PauseReason.Valid)
	require.True(t, o.NextExecutionAt.Valid)
	// Today's 12:00 slot is still ahead of the 10:00 clock.
	assert.Equal(t, time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC), o.NextExecutionAt.Time)
}

func TestResumeRejectsNonPaused(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	assert.ErrorIs(t, l.Resume(o), xerrors.ErrInvalidTransition)
}

func TestCancelFromActiveAndPaused(t *testing.T) {
	l := testLifecycle()

	o := activeDailyOrder()
	require.NoError(t, l.Cancel(o, "moved away"))
	assert.Equal(t, schedule.OrderStatusCancelled, o.Status)
	assert.True(t, o.CancelledAt.Valid)
	assert.Equal(t, "moved away", o.CancellationReason.String)
	assert.False(t, o.NextExecutionAt.Valid)

	p := activeDailyOrder()
	p.Status = schedule.OrderStatusPaused
	require.NoError(t, l.Cancel(p, ""))
	assert.Equal(t, schedule.OrderStatusCancelled, p.Status)
	assert.False(t, p.CancellationReason.Valid)
}

func TestCancelRejectsTerminal(t *testing.T) {
	l := testLifecycle()
	for _, status := range []schedule.OrderStatus{
		schedule.OrderStatusCompleted,
		schedule.OrderStatusCancelled,
		schedule.OrderStatusFailed,
		schedule.OrderStatusExpired,
	} {
		o := activeDailyOrder()
		o.Status = status
		assert.ErrorIs(t, l.Cancel(o, ""), xerrors.ErrInvalidTransition, string(status))
	}
}

func TestRecordExecutionSuccess(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()

	err := l.RecordExecution(o, schedule.OutcomeSuccess)
	require.NoError(t, err)

	assert.Equal(t, 1, o.ExecutionCount)
	assert.Equal(t, 1, o.SuccessfulExecutions)
	assert.Equal(t, 0, o.FailedExecutions)
	require.True(t, o.LastExecutedAt.Valid)
	assert.Equal(t, testNow, o.LastExecutedAt.Time)
	assert.Equal(t, schedule.OrderStatusActive, o.Status)
	require.True(t, o.NextExecutionAt.Valid)
	// The 12:00 slot today is after the 10:00 execution, so it is next.
	assert.Equal(t, time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC), o.NextExecutionAt.Time)
}

func TestRecordExecutionReachingCapCompletes(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	o.MaxExecutions = sql.NullInt32{Int32: 3, Valid: true}
	o.ExecutionCount = 2
	o.SuccessfulExecutions = 2

	err := l.RecordExecution(o, schedule.OutcomeSuccess)
	require.NoError(t, err)

	assert.Equal(t, schedule.OrderStatusCompleted, o.Status)
	assert.Equal(t, 3, o.ExecutionCount)
	assert.False(t, o.NextExecutionAt.Valid)
}

func TestRecordExecutionPastEndDateExpires(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	o.EndDate = sql.NullTime{Time: testNow.Add(-time.Hour), Valid: true}

	err := l.RecordExecution(o, schedule.OutcomeSuccess)
	require.NoError(t, err)

	assert.Equal(t, schedule.OrderStatusExpired, o.Status)
	assert.False(t, o.NextExecutionAt.Valid)
}

func TestRecordExecutionFailureEscalation(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()

	// Two failures stay below the threshold.
	require.NoError(t, l.RecordExecution(o, schedule.OutcomeFailed))
	require.NoError(t, l.RecordExecution(o, schedule.OutcomeFailed))
	assert.Equal(t, schedule.OrderStatusActive, o.Status)
	assert.True(t, o.NextExecutionAt.Valid, "transient failures keep the schedule running")

	// The third tips it over.
	require.NoError(t, l.RecordExecution(o, schedule.OutcomeFailed))
	assert.Equal(t, schedule.OrderStatusFailed, o.Status)
	assert.Equal(t, 3, o.FailedExecutions)
	assert.False(t, o.NextExecutionAt.Valid)
}

func TestRecordExecutionFailureThresholdNeedsParity(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	o.ExecutionCount = 7
	o.SuccessfulExecutions = 5
	o.FailedExecutions = 2

	// Third failure, but successes still outnumber failures.
	require.NoError(t, l.RecordExecution(o, schedule.OutcomeFailed))
	assert.Equal(t, schedule.OrderStatusActive, o.Status)
	assert.Equal(t, 3, o.FailedExecutions)
}

func TestRecordExecutionRejectsNonActive(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	o.Status = schedule.OrderStatusPaused
	assert.ErrorIs(t, l.RecordExecution(o, schedule.OutcomeSuccess), xerrors.ErrInvalidTransition)
}

func TestRecordExecutionUnknownOutcome(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	assert.ErrorIs(t, l.RecordExecution(o, schedule.ExecutionOutcome("skipped")), xerrors.ErrInvalidInput)
}

func TestExpire(t *testing.T) {
	l := testLifecycle()

	o := activeDailyOrder()
	o.EndDate = sql.NullTime{Time: testNow.AddDate(0, 0, -1), Valid: true}
	require.NoError(t, l.Expire(o))
	assert.Equal(t, schedule.OrderStatusExpired, o.Status)
	assert.False(t, o.NextExecutionAt.Valid)

	fresh := activeDailyOrder()
	fresh.EndDate = sql.NullTime{Time: testNow.AddDate(0, 0, 1), Valid: true}
	assert.ErrorIs(t, l.Expire(fresh), xerrors.ErrInvalidTransition)

	open := activeDailyOrder()
	assert.ErrorIs(t, l.Expire(open), xerrors.ErrInvalidTransition, "no end date")
}

func TestComputeNextExecutionOnceAlreadyRun(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	o.RecurrencePattern = recurrence.PatternOnce
	o.ExecutionCount = 1

	assert.False(t, l.ComputeNextExecution(o).Valid)
}

func TestComputeNextExecutionExhaustedCap(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	o.MaxExecutions = sql.NullInt32{Int32: 5, Valid: true}
	o.ExecutionCount = 5

	assert.False(t, l.ComputeNextExecution(o).Valid)
}

func TestComputeNextExecutionRespectsEndDate(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	// End date before the first candidate that clears the clock.
	o.EndDate = sql.NullTime{Time: time.Date(2024, time.June, 15, 11, 0, 0, 0, time.UTC), Valid: true}

	assert.False(t, l.ComputeNextExecution(o).Valid)
}

func TestComputeNextExecutionSkipsLastExecutedSlot(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	o.PreferredDeliveryTime = "08:00"
	o.ExecutionCount = 1
	o.SuccessfulExecutions = 1
	o.LastExecutedAt = sql.NullTime{Time: time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC), Valid: true}

	next := l.ComputeNextExecution(o)
	require.True(t, next.Valid)
	assert.Equal(t, time.Date(2024, time.June, 16, 8, 0, 0, 0, time.UTC), next.Time)
}

func TestComputeNextExecutionWeeklySelection(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	o.RecurrencePattern = recurrence.PatternWeekly
	// 2024-06-15 is a Saturday; next Monday is the 17th.
	o.SelectedDaysOfWeek = []time.Weekday{time.Monday}
	o.StartDate = time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC) // a Monday

	next := l.ComputeNextExecution(o)
	require.True(t, next.Valid)
	assert.Equal(t, time.Date(2024, time.June, 17, 12, 0, 0, 0, time.UTC), next.Time)
	assert.Equal(t, time.Monday, next.Time.Weekday())
}

func TestComputeNextExecutionOldAnchor(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	// Started long before the clock; the gap must not swallow the candidates.
	o.StartDate = testNow.AddDate(0, 0, -100)

	next := l.ComputeNextExecution(o)
	require.True(t, next.Valid, "a runnable daily order always gets a slot")
	assert.Equal(t, time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC), next.Time)
}

func TestComputeNextExecutionOldAnchorKeepsWeeklyPhase(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	o.RecurrencePattern = recurrence.PatternWeekly
	o.StartDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC) // a Monday

	next := l.ComputeNextExecution(o)
	require.True(t, next.Valid)
	assert.Equal(t, time.Monday, next.Time.Weekday())
	assert.Equal(t, time.Date(2024, time.June, 17, 12, 0, 0, 0, time.UTC), next.Time)
}

func TestComputeNextExecutionNonActive(t *testing.T) {
	l := testLifecycle()
	o := activeDailyOrder()
	o.Status = schedule.OrderStatusPaused
	assert.False(t, l.ComputeNextExecution(o).Valid)
}

func TestNeedsAttention(t *testing.T) {
	l := testLifecycle()

	o := activeDailyOrder()
	o.FailedExecutions = 3
	o.SuccessfulExecutions = 2
	assert.True(t, l.NeedsAttention(o))

	o = activeDailyOrder()
	o.FailedExecutions = 1
	o.SuccessfulExecutions = 5
	assert.False(t, l.NeedsAttention(o))

	o = activeDailyOrder()
	o.Status = schedule.OrderStatusPaused
	assert.True(t, l.NeedsAttention(o))

	assert.False(t, l.NeedsAttention(activeDailyOrder()))
}

func TestProgressPercentage(t *testing.T) {
	l := testLifecycle()

	o := activeDailyOrder()
	assert.Nil(t, l.ProgressPercentage(o), "uncapped orders report no progress")

	o.MaxExecutions = sql.NullInt32{Int32: 10, Valid: true}
	o.ExecutionCount = 5
	pct := l.ProgressPercentage(o)
	require.NotNil(t, pct)
	assert.InDelta(t, 50.0, *pct, 0.001)
}

func TestIsApproachingCompletion(t *testing.T) {
	l := testLifecycle()

	o := activeDailyOrder()
	assert.False(t, l.IsApproachingCompletion(o), "uncapped never approaches completion")

	o.MaxExecutions = sql.NullInt32{Int32: 10, Valid: true}
	o.ExecutionCount = 7
	assert.True(t, l.IsApproachingCompletion(o))

	o.ExecutionCount = 5
	assert.False(t, l.IsApproachingCompletion(o))
}

func TestRemainingExecutions(t *testing.T) {
	o := activeDailyOrder()
	assert.Equal(t, -1, o.RemainingExecutions())

	o.MaxExecutions = sql.NullInt32{Int32: 4, Valid: true}
	o.ExecutionCount = 1
	assert.Equal(t, 3, o.RemainingExecutions())

	o.ExecutionCount = 9
	assert.Equal(t, 0, o.RemainingExecutions(), "never negative")
}

func TestDeliveryTimeOfDay(t *testing.T) {
	o := activeDailyOrder()

	h, m := o.DeliveryTimeOfDay()
	assert.Equal(t, 12, h)
	assert.Equal(t, 0, m)

	o.PreferredDeliveryTime = ""
	h, m = o.DeliveryTimeOfDay()
	assert.Zero(t, h)
	assert.Zero(t, m)

	o.PreferredDeliveryTime = "25:90"
	h, m = o.DeliveryTimeOfDay()
	assert.Zero(t, h)
	assert.Zero(t, m)
}
