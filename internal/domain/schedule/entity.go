// internal/domain/schedule/entity.go
package schedule

import (
	"database/sql"
	"fmt"
	"time"

	"jikoni-service/internal/pkg/recurrence"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"
	OrderStatusPaused    OrderStatus = "paused"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusExpired   OrderStatus = "expired"
)

// Terminal reports whether no further transitions are permitted.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed, OrderStatusExpired:
		return true
	}
	return false
}

type ExecutionOutcome string

const (
	OutcomeSuccess ExecutionOutcome = "success"
	OutcomeFailed  ExecutionOutcome = "failed"
)

// ScheduledOrder is a recurring food order owned by a customer.
type ScheduledOrder struct {
	ID             int64  `json:"id" db:"id"`
	OrderReference string `json:"order_reference" db:"order_reference"`

	CustomerIdentityID int64          `json:"customer_identity_id" db:"customer_identity_id"`
	Name               string         `json:"name" db:"name"`
	Description        sql.NullString `json:"description,omitempty" db:"description"`

	// Recurrence
	RecurrencePattern     recurrence.Pattern `json:"recurrence_pattern" db:"recurrence_pattern"`
	StartDate             time.Time          `json:"start_date" db:"start_date"`
	EndDate               sql.NullTime       `json:"end_date,omitempty" db:"end_date"`
	PreferredDeliveryTime string             `json:"preferred_delivery_time" db:"preferred_delivery_time"` // "HH:MM"
	CustomIntervalDays    sql.NullInt32      `json:"custom_interval_days,omitempty" db:"custom_interval_days"`
	SelectedDaysOfWeek    []time.Weekday     `json:"selected_days_of_week,omitempty" db:"selected_days_of_week"`

	// Order payload
	OrderTemplate        map[string]interface{} `json:"order_template" db:"order_template"`
	EstimatedAmount      decimal.Decimal        `json:"estimated_amount" db:"estimated_amount"`
	Currency             string                 `json:"currency" db:"currency"`
	DeliveryInstructions sql.NullString         `json:"delivery_instructions,omitempty" db:"delivery_instructions"`

	// Execution accounting
	ExecutionCount       int           `json:"execution_count" db:"execution_count"`
	SuccessfulExecutions int           `json:"successful_executions" db:"successful_executions"`
	FailedExecutions     int           `json:"failed_executions" db:"failed_executions"`
	MaxExecutions        sql.NullInt32 `json:"max_executions,omitempty" db:"max_executions"`
	LastExecutedAt       sql.NullTime  `json:"last_executed_at,omitempty" db:"last_executed_at"`
	NextExecutionAt      sql.NullTime  `json:"next_execution_at,omitempty" db:"next_execution_at"`

	// Status
	Status             OrderStatus    `json:"status" db:"status"`
	PausedAt           sql.NullTime   `json:"paused_at,omitempty" db:"paused_at"`
	PauseReason        sql.NullString `json:"pause_reason,omitempty" db:"pause_reason"`
	CancelledAt        sql.NullTime   `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason sql.NullString `json:"cancellation_reason,omitempty" db:"cancellation_reason"`

	// Preferences
	AIOptimizationEnabled     bool           `json:"ai_optimization_enabled" db:"ai_optimization_enabled"`
	ReminderEnabled           bool           `json:"reminder_enabled" db:"reminder_enabled"`
	ReminderMinutesBefore     int            `json:"reminder_minutes_before" db:"reminder_minutes_before"`
	PreferredPaymentMethod    sql.NullString `json:"preferred_payment_method,omitempty" db:"preferred_payment_method"`
	MembershipBenefitsApplied bool           `json:"membership_benefits_applied" db:"membership_benefits_applied"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RemainingExecutions returns how many runs are left under the cap, or -1
// when the order is uncapped.
func (o *ScheduledOrder) RemainingExecutions() int {
	if !o.MaxExecutions.Valid {
		return -1
	}
	remaining := int(o.MaxExecutions.Int32) - o.ExecutionCount
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// DeliveryTimeOfDay parses PreferredDeliveryTime ("HH:MM"). Zero values when
// unset or malformed.
func (o *ScheduledOrder) DeliveryTimeOfDay() (hour, minute int) {
	if o.PreferredDeliveryTime == "" {
		return 0, 0
	}
	if _, err := fmt.Sscanf(o.PreferredDeliveryTime, "%d:%d", &hour, &minute); err != nil {
		return 0, 0
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0
	}
	return hour, minute
}

// OrderExecution is one realized attempt to place the templated order.
type OrderExecution struct {
	ID               int64            `json:"id" db:"id"`
	ScheduledOrderID int64            `json:"scheduled_order_id" db:"scheduled_order_id"`
	ExecutionNumber  int              `json:"execution_number" db:"execution_number"`
	ExecutedAt       time.Time        `json:"executed_at" db:"executed_at"`
	Outcome          ExecutionOutcome `json:"outcome" db:"outcome"`
	FailureReason    sql.NullString   `json:"failure_reason,omitempty" db:"failure_reason"`
	Amount           decimal.Decimal  `json:"amount" db:"amount"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// CalendarEvent is one projected or historical execution instance, derived
// per query and never persisted.
type CalendarEvent struct {
	ScheduledOrderID int64       `json:"scheduled_order_id"`
	OrderReference   string      `json:"order_reference"`
	Name             string      `json:"name"`
	EventTime        time.Time   `json:"event_time"`
	Status           OrderStatus `json:"status"`
	Description      string      `json:"description"`
	IsHistorical     bool        `json:"is_historical"`
	Outcome          string      `json:"outcome,omitempty"`
	CanModify        bool        `json:"can_modify"`
	NeedsAttention   bool        `json:"needs_attention"`
}

// CalendarStatistics aggregates the orders and events visible in a queried
// range. Always recomputed, never cached.
type CalendarStatistics struct {
	TotalOrders         int `json:"total_orders"`
	ActiveOrders        int `json:"active_orders"`
	PausedOrders        int `json:"paused_orders"`
	CompletedExecutions int `json:"completed_executions"`
	FailedExecutions    int `json:"failed_executions"`
	UpcomingExecutions  int `json:"upcoming_executions"`
}

type ScheduleStats struct {
	TotalOrders          int64 `json:"total_orders"`
	ActiveOrders         int64 `json:"active_orders"`
	PausedOrders         int64 `json:"paused_orders"`
	TotalExecutions      int64 `json:"total_executions"`
	SuccessfulExecutions int64 `json:"successful_executions"`
	FailedExecutions     int64 `json:"failed_executions"`
}
