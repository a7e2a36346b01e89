// internal/domain/schedule/dto.go
package schedule

import (
	"time"

	"jikoni-service/internal/pkg/recurrence"

	"github.com/shopspring/decimal"
)

type CreateScheduledOrderRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`

	// Recurrence
	RecurrencePattern     recurrence.Pattern `json:"recurrence_pattern" binding:"required"`
	StartDate             time.Time          `json:"start_date" binding:"required"`
	EndDate               *time.Time         `json:"end_date"`
	PreferredDeliveryTime string             `json:"preferred_delivery_time" binding:"required"`
	CustomIntervalDays    *int32             `json:"custom_interval_days"`
	SelectedDaysOfWeek    []time.Weekday     `json:"selected_days_of_week"`

	// Order payload
	OrderTemplate        map[string]interface{} `json:"order_template" binding:"required"`
	EstimatedAmount      decimal.Decimal        `json:"estimated_amount" binding:"required"`
	Currency             string                 `json:"currency"`
	DeliveryInstructions string                 `json:"delivery_instructions"`

	// Limits & preferences
	MaxExecutions             *int32 `json:"max_executions"`
	AIOptimizationEnabled     bool   `json:"ai_optimization_enabled"`
	ReminderEnabled           bool   `json:"reminder_enabled"`
	ReminderMinutesBefore     int    `json:"reminder_minutes_before"`
	PreferredPaymentMethod    string `json:"preferred_payment_method"`
	MembershipBenefitsApplied bool   `json:"membership_benefits_applied"`
}

type UpdateScheduledOrderRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`

	RecurrencePattern     *recurrence.Pattern `json:"recurrence_pattern"`
	StartDate             *time.Time          `json:"start_date"`
	EndDate               *time.Time          `json:"end_date"`
	PreferredDeliveryTime *string             `json:"preferred_delivery_time"`
	CustomIntervalDays    *int32              `json:"custom_interval_days"`
	SelectedDaysOfWeek    []time.Weekday      `json:"selected_days_of_week"`

	OrderTemplate        map[string]interface{} `json:"order_template"`
	EstimatedAmount      *decimal.Decimal       `json:"estimated_amount"`
	DeliveryInstructions *string                `json:"delivery_instructions"`

	MaxExecutions             *int32  `json:"max_executions"`
	AIOptimizationEnabled     *bool   `json:"ai_optimization_enabled"`
	ReminderEnabled           *bool   `json:"reminder_enabled"`
	ReminderMinutesBefore     *int    `json:"reminder_minutes_before"`
	PreferredPaymentMethod    *string `json:"preferred_payment_method"`
	MembershipBenefitsApplied *bool   `json:"membership_benefits_applied"`
}

type ScheduledOrderListFilters struct {
	Status    *OrderStatus        `form:"status"`
	Pattern   *recurrence.Pattern `form:"pattern"`
	DueToday  bool                `form:"due_today"`
	Page      int                 `form:"page"`
	PageSize  int                 `form:"page_size"`
	SortBy    string              `form:"sort_by"`
	SortOrder string              `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

type ScheduledOrderListResponse struct {
	Orders     []ScheduledOrder `json:"orders"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

type TransitionRequest struct {
	Reason string `json:"reason"`
}

type RecordExecutionRequest struct {
	Outcome       ExecutionOutcome `json:"outcome" binding:"required,oneof=success failed"`
	FailureReason string           `json:"failure_reason"`
	// IdempotencyKey lets a retrying executor replay the call without
	// double-counting the execution.
	IdempotencyKey string `json:"idempotency_key"`
}

type CalendarViewType string

const (
	CalendarViewDaily   CalendarViewType = "daily"
	CalendarViewWeekly  CalendarViewType = "weekly"
	CalendarViewMonthly CalendarViewType = "monthly"
	CalendarViewYearly  CalendarViewType = "yearly"
)

type CalendarQuery struct {
	StartDate               time.Time        `form:"start_date" time_format:"2006-01-02" binding:"required"`
	EndDate                 time.Time        `form:"end_date" time_format:"2006-01-02" binding:"required"`
	ViewType                CalendarViewType `form:"view_type"`
	IncludeCompletedOrders  bool             `form:"include_completed_orders"`
	IncludeExecutionHistory bool             `form:"include_execution_history"`
}

type CalendarViewResponse struct {
	ViewType   CalendarViewType   `json:"view_type"`
	StartDate  time.Time          `json:"start_date"`
	EndDate    time.Time          `json:"end_date"`
	Events     []CalendarEvent    `json:"events"`
	Statistics CalendarStatistics `json:"statistics"`
}

// ScheduledOrderDetail is an order plus its derived lifecycle metrics.
type ScheduledOrderDetail struct {
	Order                   ScheduledOrder `json:"order"`
	NeedsAttention          bool           `json:"needs_attention"`
	ProgressPercentage      *float64       `json:"progress_percentage,omitempty"`
	RemainingExecutions     *int           `json:"remaining_executions,omitempty"`
	IsApproachingCompletion bool           `json:"is_approaching_completion"`
	StatusLabel             string         `json:"status_label"`
	StatusColor             string         `json:"status_color"`
	PatternDescription      string         `json:"pattern_description"`
}

type ExecutionListFilters struct {
	Outcome  *ExecutionOutcome `form:"outcome"`
	Page     int               `form:"page"`
	PageSize int               `form:"page_size"`
}

type ExecutionListResponse struct {
	Executions []OrderExecution `json:"executions"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}
