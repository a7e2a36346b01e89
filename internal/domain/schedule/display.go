// internal/domain/schedule/display.go
package schedule

import "jikoni-service/internal/pkg/recurrence"

// Display lookup tables for the web and partner consoles. Plain maps keyed by
// the enum types; helpers fall back to a neutral value for unknown keys.

var statusColors = map[OrderStatus]string{
	OrderStatusActive:    "#22c55e",
	OrderStatusPaused:    "#f59e0b",
	OrderStatusCompleted: "#3b82f6",
	OrderStatusCancelled: "#6b7280",
	OrderStatusFailed:    "#ef4444",
	OrderStatusExpired:   "#9ca3af",
}

var statusLabels = map[OrderStatus]string{
	OrderStatusActive:    "Active",
	OrderStatusPaused:    "Paused",
	OrderStatusCompleted: "Completed",
	OrderStatusCancelled: "Cancelled",
	OrderStatusFailed:    "Failed",
	OrderStatusExpired:   "Expired",
}

var patternDescriptions = map[recurrence.Pattern]string{
	recurrence.PatternOnce:     "One-time order",
	recurrence.PatternDaily:    "Every day",
	recurrence.PatternWeekly:   "Weekly on selected days",
	recurrence.PatternBiweekly: "Every two weeks",
	recurrence.PatternMonthly:  "Monthly",
	recurrence.PatternCustom:   "Custom interval",
}

// StatusColor returns the console color hex for a status.
func StatusColor(s OrderStatus) string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return "#6b7280"
}

// StatusLabel returns the human-readable label for a status.
func StatusLabel(s OrderStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// PatternDescription returns the human-readable cadence description.
func PatternDescription(p recurrence.Pattern) string {
	if d, ok := patternDescriptions[p]; ok {
		return d
	}
	return string(p)
}
