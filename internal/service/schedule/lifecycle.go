// internal/service/schedule/lifecycle.go
package schedule

import (
	"database/sql"
	"fmt"
	"time"

	"jikoni-service/internal/domain/schedule"
	xerrors "jikoni-service/internal/pkg/errors"
	"jikoni-service/internal/pkg/recurrence"
)

// DefaultFailureThreshold is the number of failed executions after which an
// order is escalated to failed status, provided failures have at least caught
// up with successes.
const DefaultFailureThreshold = 3

// candidateWindow bounds how many recurrence dates are expanded when looking
// for the next execution slot.
const candidateWindow = 64

// Lifecycle owns the scheduled-order state machine. All methods mutate only
// the passed order and perform no I/O; the clock is injected so tests can pin
// time.
type Lifecycle struct {
	now              func() time.Time
	failureThreshold int
}

func NewLifecycle(now func() time.Time) *Lifecycle {
	return NewLifecycleWithPolicy(now, DefaultFailureThreshold)
}

func NewLifecycleWithPolicy(now func() time.Time, failureThreshold int) *Lifecycle {
	if now == nil {
		now = time.Now
	}
	if failureThreshold < 1 {
		failureThreshold = DefaultFailureThreshold
	}
	return &Lifecycle{now: now, failureThreshold: failureThreshold}
}

// Pause moves an active order to paused and clears its next execution slot.
func (l *Lifecycle) Pause(o *schedule.ScheduledOrder, reason string) error {
	if o.Status != schedule.OrderStatusActive {
		return fmt.Errorf("%w: cannot pause order in status %q", xerrors.ErrInvalidTransition, o.Status)
	}

	o.Status = schedule.OrderStatusPaused
	o.PausedAt = sql.NullTime{Time: l.now(), Valid: true}
	o.PauseReason = sql.NullString{String: reason, Valid: reason != ""}
	o.NextExecutionAt = sql.NullTime{}
	return nil
}

// Resume moves a paused order back to active and recomputes its next
// execution slot.
func (l *Lifecycle) Resume(o *schedule.ScheduledOrder) error {
	if o.Status != schedule.OrderStatusPaused {
		return fmt.Errorf("%w: cannot resume order in status %q", xerrors.ErrInvalidTransition, o.Status)
	}

	o.Status = schedule.OrderStatusActive
	o.PausedAt = sql.NullTime{}
	o.PauseReason = sql.NullString{}
	o.NextExecutionAt = l.ComputeNextExecution(o)
	return nil
}

// Cancel terminally cancels an active or paused order.
func (l *Lifecycle) Cancel(o *schedule.ScheduledOrder, reason string) error {
	if o.Status != schedule.OrderStatusActive && o.Status != schedule.OrderStatusPaused {
		return fmt.Errorf("%w: cannot cancel order in status %q", xerrors.ErrInvalidTransition, o.Status)
	}

	o.Status = schedule.OrderStatusCancelled
	o.CancelledAt = sql.NullTime{Time: l.now(), Valid: true}
	o.CancellationReason = sql.NullString{String: reason, Valid: reason != ""}
	o.NextExecutionAt = sql.NullTime{}
	return nil
}

// RecordExecution applies the outcome of one execution attempt: counters,
// terminal transitions (completed, expired, failed escalation) and the next
// execution slot.
func (l *Lifecycle) RecordExecution(o *schedule.ScheduledOrder, outcome schedule.ExecutionOutcome) error {
	if o.Status != schedule.OrderStatusActive {
		return fmt.Errorf("%w: cannot record execution on order in status %q", xerrors.ErrInvalidTransition, o.Status)
	}

	now := l.now()
	o.ExecutionCount++

	switch outcome {
	case schedule.OutcomeSuccess:
		o.SuccessfulExecutions++
		o.LastExecutedAt = sql.NullTime{Time: now, Valid: true}
	case schedule.OutcomeFailed:
		o.FailedExecutions++
		if o.FailedExecutions >= l.failureThreshold && o.FailedExecutions >= o.SuccessfulExecutions {
			o.Status = schedule.OrderStatusFailed
			o.NextExecutionAt = sql.NullTime{}
			return nil
		}
	default:
		return fmt.Errorf("%w: unknown execution outcome %q", xerrors.ErrInvalidInput, outcome)
	}

	if o.MaxExecutions.Valid && o.ExecutionCount >= int(o.MaxExecutions.Int32) {
		o.Status = schedule.OrderStatusCompleted
		o.NextExecutionAt = sql.NullTime{}
		return nil
	}

	if o.EndDate.Valid && o.EndDate.Time.Before(now) {
		o.Status = schedule.OrderStatusExpired
		o.NextExecutionAt = sql.NullTime{}
		return nil
	}

	// A transient failure does not halt the schedule.
	o.NextExecutionAt = l.ComputeNextExecution(o)
	return nil
}

// Expire marks an active order past its end date as expired. No-op error for
// anything else.
func (l *Lifecycle) Expire(o *schedule.ScheduledOrder) error {
	if o.Status != schedule.OrderStatusActive {
		return fmt.Errorf("%w: cannot expire order in status %q", xerrors.ErrInvalidTransition, o.Status)
	}
	if !o.EndDate.Valid || !o.EndDate.Time.Before(l.now()) {
		return fmt.Errorf("%w: order end date has not passed", xerrors.ErrInvalidTransition)
	}

	o.Status = schedule.OrderStatusExpired
	o.NextExecutionAt = sql.NullTime{}
	return nil
}

// ComputeNextExecution finds the first recurrence candidate at or after now
// that the order is still allowed to run: strictly after the last execution,
// no later than the end date, within the remaining execution cap. Returns an
// invalid NullTime when the order can no longer run.
func (l *Lifecycle) ComputeNextExecution(o *schedule.ScheduledOrder) sql.NullTime {
	if o.Status != schedule.OrderStatusActive {
		return sql.NullTime{}
	}
	if remaining := o.RemainingExecutions(); remaining == 0 {
		return sql.NullTime{}
	}
	if o.RecurrencePattern == recurrence.PatternOnce && o.ExecutionCount > 0 {
		return sql.NullTime{}
	}

	now := l.now()

	anchor := o.StartDate
	if o.LastExecutedAt.Valid && o.LastExecutedAt.Time.After(anchor) {
		anchor = o.LastExecutedAt.Time
	}

	spec := recurrence.Spec{
		Start:              anchor,
		Pattern:            o.RecurrencePattern,
		CustomIntervalDays: int(o.CustomIntervalDays.Int32),
		DaysOfWeek:         o.SelectedDaysOfWeek,
		MaxOccurrences:     candidateWindow,
	}

	// An anchor far in the past must not exhaust the candidate window before
	// reaching the present; catch the sequence up without losing its phase.
	if anchor.Before(now) {
		spec.Start = recurrence.FastForward(spec, now)
	}

	dates, err := recurrence.Generate(spec)
	if err != nil {
		return sql.NullTime{}
	}

	hour, minute := o.DeliveryTimeOfDay()

	for _, d := range dates {
		candidate := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location())

		if o.LastExecutedAt.Valid && !candidate.After(o.LastExecutedAt.Time) {
			continue
		}
		if candidate.Before(now) {
			continue
		}
		if o.EndDate.Valid && candidate.After(o.EndDate.Time) {
			return sql.NullTime{}
		}
		return sql.NullTime{Time: candidate, Valid: true}
	}

	return sql.NullTime{}
}

// NeedsAttention flags orders a customer should review: paused, failed, or
// with a failure rate at least as high as the success rate.
func (l *Lifecycle) NeedsAttention(o *schedule.ScheduledOrder) bool {
	if o.Status == schedule.OrderStatusPaused || o.Status == schedule.OrderStatusFailed {
		return true
	}
	return o.FailedExecutions > 0 && o.FailedExecutions >= o.SuccessfulExecutions
}

// ProgressPercentage reports completion toward the execution cap, nil when
// the order is uncapped.
func (l *Lifecycle) ProgressPercentage(o *schedule.ScheduledOrder) *float64 {
	if !o.MaxExecutions.Valid || o.MaxExecutions.Int32 == 0 {
		return nil
	}
	pct := 100 * float64(o.ExecutionCount) / float64(o.MaxExecutions.Int32)
	return &pct
}

// IsApproachingCompletion reports whether a capped order has three or fewer
// executions left.
func (l *Lifecycle) IsApproachingCompletion(o *schedule.ScheduledOrder) bool {
	if !o.MaxExecutions.Valid {
		return false
	}
	return o.RemainingExecutions() <= 3
}
