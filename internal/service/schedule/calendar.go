// internal/service/schedule/calendar.go
package schedule

import (
	"fmt"
	"sort"
	"time"

	"jikoni-service/internal/domain/schedule"
	"jikoni-service/internal/pkg/recurrence"
)

// BuildCalendar projects a set of scheduled orders onto a date range as
// discrete calendar events plus aggregate statistics. Pure: consumes the
// loaded orders and execution history, mutates nothing.
//
// The view type only groups presentation on the client; it does not change
// which events are generated.
func (l *Lifecycle) BuildCalendar(
	orders []schedule.ScheduledOrder,
	history []schedule.OrderExecution,
	q schedule.CalendarQuery,
) schedule.CalendarViewResponse {
	viewType := q.ViewType
	if viewType == "" {
		viewType = schedule.CalendarViewMonthly
	}

	ordersByID := make(map[int64]*schedule.ScheduledOrder, len(orders))
	stats := schedule.CalendarStatistics{TotalOrders: len(orders)}

	for i := range orders {
		o := &orders[i]
		ordersByID[o.ID] = o

		switch o.Status {
		case schedule.OrderStatusActive:
			stats.ActiveOrders++
		case schedule.OrderStatusPaused:
			stats.PausedOrders++
		}
	}

	events := []schedule.CalendarEvent{}

	// Upcoming: one event per projected execution date inside the window.
	for i := range orders {
		o := &orders[i]
		if o.Status.Terminal() {
			continue
		}
		for _, when := range l.projectDates(o, q.StartDate, q.EndDate) {
			events = append(events, schedule.CalendarEvent{
				ScheduledOrderID: o.ID,
				OrderReference:   o.OrderReference,
				Name:             o.Name,
				EventTime:        when,
				Status:           o.Status,
				Description:      fmt.Sprintf("%s (%s)", o.Name, schedule.PatternDescription(o.RecurrencePattern)),
				CanModify:        canModify(o.Status),
				NeedsAttention:   l.NeedsAttention(o),
			})
			stats.UpcomingExecutions++
		}
	}

	// Executed dates from history. The completed/failed counts are always
	// range-scoped over history, even when the events themselves are not
	// requested.
	for _, exec := range history {
		if exec.ExecutedAt.Before(q.StartDate) || exec.ExecutedAt.After(q.EndDate) {
			continue
		}

		switch exec.Outcome {
		case schedule.OutcomeSuccess:
			stats.CompletedExecutions++
		case schedule.OutcomeFailed:
			stats.FailedExecutions++
		}

		if !q.IncludeExecutionHistory {
			continue
		}

		parent, ok := ordersByID[exec.ScheduledOrderID]
		if !ok {
			continue
		}
		if parent.Status.Terminal() && !q.IncludeCompletedOrders {
			continue
		}

		events = append(events, schedule.CalendarEvent{
			ScheduledOrderID: parent.ID,
			OrderReference:   parent.OrderReference,
			Name:             parent.Name,
			EventTime:        exec.ExecutedAt,
			Status:           parent.Status,
			Description:      executionDescription(parent.Name, exec),
			IsHistorical:     true,
			Outcome:          string(exec.Outcome),
			CanModify:        canModify(parent.Status),
			NeedsAttention:   l.NeedsAttention(parent),
		})
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].EventTime.Before(events[j].EventTime)
	})

	return schedule.CalendarViewResponse{
		ViewType:   viewType,
		StartDate:  q.StartDate,
		EndDate:    q.EndDate,
		Events:     events,
		Statistics: stats,
	}
}

// projectDates expands the order's recurrence into the concrete dates falling
// inside [from, to], bounded by the order's end date and its remaining
// execution capacity.
func (l *Lifecycle) projectDates(o *schedule.ScheduledOrder, from, to time.Time) []time.Time {
	remaining := o.RemainingExecutions()
	if remaining == 0 {
		return nil
	}
	if o.RecurrencePattern == recurrence.PatternOnce && o.ExecutionCount > 0 {
		return nil
	}

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

	// Catch a stale anchor up to the query window so the candidate window is
	// spent inside [from, to] rather than on the gap before it. The skipped
	// steps still count against a capped order's remaining capacity.
	if anchor.Before(from) {
		start, steps := recurrence.FastForwardCount(spec, from)
		if remaining > 0 {
			remaining -= steps
			if remaining <= 0 {
				return nil
			}
		}
		spec.Start = start
	}

	candidates, err := recurrence.Generate(spec)
	if err != nil {
		return nil
	}

	hour, minute := o.DeliveryTimeOfDay()

	dates := []time.Time{}
	for _, d := range candidates {
		when := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location())

		if o.LastExecutedAt.Valid && !when.After(o.LastExecutedAt.Time) {
			continue
		}
		if o.EndDate.Valid && when.After(o.EndDate.Time) {
			break
		}
		if when.After(to) {
			break
		}
		if when.Before(from) {
			continue
		}

		dates = append(dates, when)
		if remaining > 0 && len(dates) >= remaining {
			break
		}
	}

	return dates
}

func canModify(s schedule.OrderStatus) bool {
	return s == schedule.OrderStatusActive || s == schedule.OrderStatusPaused
}

func executionDescription(name string, exec schedule.OrderExecution) string {
	if exec.Outcome == schedule.OutcomeSuccess {
		return fmt.Sprintf("%s delivered", name)
	}
	if exec.FailureReason.Valid {
		return fmt.Sprintf("%s failed: %s", name, exec.FailureReason.String)
	}
	return fmt.Sprintf("%s failed", name)
}
