// internal/service/schedule/schedule_service.go
package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"jikoni-service/internal/domain/schedule"
	xerrors "jikoni-service/internal/pkg/errors"
	"jikoni-service/internal/pkg/idempotency"
	"jikoni-service/internal/pkg/recurrence"
	"jikoni-service/internal/repository/postgres"
	"jikoni-service/internal/ws"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type ScheduleService struct {
	orderRepo     *postgres.ScheduledOrderRepository
	executionRepo *postgres.OrderExecutionRepository
	db            *postgres.DB
	lifecycle     *Lifecycle
	idempotency   *idempotency.Store
	hub           *ws.Hub
	logger        *zap.Logger
}

func NewScheduleService(
	orderRepo *postgres.ScheduledOrderRepository,
	executionRepo *postgres.OrderExecutionRepository,
	db *postgres.DB,
	lifecycle *Lifecycle,
	idempotencyStore *idempotency.Store,
	hub *ws.Hub,
	logger *zap.Logger,
) *ScheduleService {
	return &ScheduleService{
		orderRepo:     orderRepo,
		executionRepo: executionRepo,
		db:            db,
		lifecycle:     lifecycle,
		idempotency:   idempotencyStore,
		hub:           hub,
		logger:        logger,
	}
}

// CreateScheduledOrder validates and persists a new recurring order.
func (s *ScheduleService) CreateScheduledOrder(ctx context.Context, customerID int64, req *schedule.CreateScheduledOrderRequest) (*schedule.ScheduledOrder, error) {
	if err := s.validateRecurrence(req.RecurrencePattern, req.CustomIntervalDays); err != nil {
		return nil, err
	}

	if !req.EstimatedAmount.IsPositive() {
		return nil, fmt.Errorf("%w: estimated amount must be positive", xerrors.ErrInvalidInput)
	}

	now := s.lifecycle.now()
	if req.StartDate.Before(startOfDay(now)) {
		return nil, fmt.Errorf("%w: start date must not be in the past", xerrors.ErrInvalidInput)
	}

	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		return nil, fmt.Errorf("%w: end date must not precede start date", xerrors.ErrInvalidInput)
	}

	currency := req.Currency
	if currency == "" {
		currency = "KES"
	}

	order := &schedule.ScheduledOrder{
		OrderReference:     s.generateOrderReference(),
		CustomerIdentityID: customerID,
		Name:               req.Name,
		Description:        sql.NullString{String: req.Description, Valid: req.Description != ""},

		RecurrencePattern:     req.RecurrencePattern,
		StartDate:             req.StartDate,
		PreferredDeliveryTime: req.PreferredDeliveryTime,
		SelectedDaysOfWeek:    req.SelectedDaysOfWeek,

		OrderTemplate:        req.OrderTemplate,
		EstimatedAmount:      req.EstimatedAmount,
		Currency:             currency,
		DeliveryInstructions: sql.NullString{String: req.DeliveryInstructions, Valid: req.DeliveryInstructions != ""},

		Status: schedule.OrderStatusActive,

		AIOptimizationEnabled:     req.AIOptimizationEnabled,
		ReminderEnabled:           req.ReminderEnabled,
		ReminderMinutesBefore:     req.ReminderMinutesBefore,
		PreferredPaymentMethod:    sql.NullString{String: req.PreferredPaymentMethod, Valid: req.PreferredPaymentMethod != ""},
		MembershipBenefitsApplied: req.MembershipBenefitsApplied,
	}

	if req.EndDate != nil {
		order.EndDate = sql.NullTime{Time: *req.EndDate, Valid: true}
	}
	if req.CustomIntervalDays != nil {
		order.CustomIntervalDays = sql.NullInt32{Int32: *req.CustomIntervalDays, Valid: true}
	}
	if req.MaxExecutions != nil {
		if *req.MaxExecutions < 1 {
			return nil, fmt.Errorf("%w: max executions must be positive", xerrors.ErrInvalidInput)
		}
		order.MaxExecutions = sql.NullInt32{Int32: *req.MaxExecutions, Valid: true}
	}

	order.NextExecutionAt = s.lifecycle.ComputeNextExecution(order)

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.orderRepo.CreateWithTx(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("scheduled order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_reference", order.OrderReference),
		zap.Int64("customer_id", customerID),
		zap.String("pattern", string(order.RecurrencePattern)),
	)

	s.publish(customerID, ws.EventOrderCreated, order)

	return order, nil
}

// GetScheduledOrder retrieves an order, enforcing ownership.
func (s *ScheduleService) GetScheduledOrder(ctx context.Context, customerID, orderID int64) (*schedule.ScheduledOrder, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerIdentityID != customerID {
		return nil, xerrors.ErrUnauthorized
	}
	return order, nil
}

// DescribeOrder returns an order with its derived metrics and display fields.
func (s *ScheduleService) DescribeOrder(ctx context.Context, customerID, orderID int64) (*schedule.ScheduledOrderDetail, error) {
	order, err := s.GetScheduledOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}

	detail := &schedule.ScheduledOrderDetail{
		Order:                   *order,
		NeedsAttention:          s.lifecycle.NeedsAttention(order),
		ProgressPercentage:      s.lifecycle.ProgressPercentage(order),
		IsApproachingCompletion: s.lifecycle.IsApproachingCompletion(order),
		StatusLabel:             schedule.StatusLabel(order.Status),
		StatusColor:             schedule.StatusColor(order.Status),
		PatternDescription:      schedule.PatternDescription(order.RecurrencePattern),
	}

	if remaining := order.RemainingExecutions(); remaining >= 0 {
		detail.RemainingExecutions = &remaining
	}

	return detail, nil
}

// ListScheduledOrders retrieves a customer's orders with filters.
func (s *ScheduleService) ListScheduledOrders(ctx context.Context, customerID int64, filters *schedule.ScheduledOrderListFilters) (*schedule.ScheduledOrderListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}

	orders, total, err := s.orderRepo.List(ctx, customerID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled orders: %w", err)
	}

	totalPages := int(total) / filters.PageSize
	if int(total)%filters.PageSize > 0 {
		totalPages++
	}

	return &schedule.ScheduledOrderListResponse{
		Orders:     orders,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: totalPages,
	}, nil
}

// UpdateScheduledOrder applies a partial update and recomputes the execution
// slot when the cadence changed.
func (s *ScheduleService) UpdateScheduledOrder(ctx context.Context, customerID, orderID int64, req *schedule.UpdateScheduledOrderRequest) (*schedule.ScheduledOrder, error) {
	order, err := s.GetScheduledOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot update order in status %q", xerrors.ErrInvalidTransition, order.Status)
	}

	cadenceChanged, err := applyUpdate(order, req)
	if err != nil {
		return nil, err
	}

	var customDays *int32
	if order.CustomIntervalDays.Valid {
		customDays = &order.CustomIntervalDays.Int32
	}
	if err := s.validateRecurrence(order.RecurrencePattern, customDays); err != nil {
		return nil, err
	}

	if cadenceChanged && order.Status == schedule.OrderStatusActive {
		order.NextExecutionAt = s.lifecycle.ComputeNextExecution(order)
	}

	if err := s.orderRepo.Update(ctx, orderID, order); err != nil {
		s.logger.Error("failed to update scheduled order", zap.Error(err))
		return nil, err
	}

	s.logger.Info("scheduled order updated", zap.Int64("order_id", orderID))
	s.publish(customerID, ws.EventOrderUpdated, order)

	return s.orderRepo.FindByID(ctx, orderID)
}

// applyUpdate merges a partial update into order and validates the merged
// result. Reports whether any cadence-affecting field changed.
func applyUpdate(order *schedule.ScheduledOrder, req *schedule.UpdateScheduledOrderRequest) (bool, error) {
	cadenceChanged := false

	if req.Name != nil {
		order.Name = *req.Name
	}
	if req.Description != nil {
		order.Description = sql.NullString{String: *req.Description, Valid: *req.Description != ""}
	}
	if req.RecurrencePattern != nil {
		order.RecurrencePattern = *req.RecurrencePattern
		cadenceChanged = true
	}
	if req.StartDate != nil {
		order.StartDate = *req.StartDate
		cadenceChanged = true
	}
	if req.EndDate != nil {
		order.EndDate = sql.NullTime{Time: *req.EndDate, Valid: true}
		cadenceChanged = true
	}
	if req.PreferredDeliveryTime != nil {
		order.PreferredDeliveryTime = *req.PreferredDeliveryTime
		cadenceChanged = true
	}
	if req.CustomIntervalDays != nil {
		order.CustomIntervalDays = sql.NullInt32{Int32: *req.CustomIntervalDays, Valid: true}
		cadenceChanged = true
	}
	if req.SelectedDaysOfWeek != nil {
		order.SelectedDaysOfWeek = req.SelectedDaysOfWeek
		cadenceChanged = true
	}
	if req.OrderTemplate != nil {
		order.OrderTemplate = req.OrderTemplate
	}
	if req.EstimatedAmount != nil {
		if !req.EstimatedAmount.IsPositive() {
			return false, fmt.Errorf("%w: estimated amount must be positive", xerrors.ErrInvalidInput)
		}
		order.EstimatedAmount = *req.EstimatedAmount
	}
	if req.DeliveryInstructions != nil {
		order.DeliveryInstructions = sql.NullString{String: *req.DeliveryInstructions, Valid: *req.DeliveryInstructions != ""}
	}
	if req.MaxExecutions != nil {
		order.MaxExecutions = sql.NullInt32{Int32: *req.MaxExecutions, Valid: true}
		cadenceChanged = true
	}
	if req.AIOptimizationEnabled != nil {
		order.AIOptimizationEnabled = *req.AIOptimizationEnabled
	}
	if req.ReminderEnabled != nil {
		order.ReminderEnabled = *req.ReminderEnabled
	}
	if req.ReminderMinutesBefore != nil {
		order.ReminderMinutesBefore = *req.ReminderMinutesBefore
	}
	if req.PreferredPaymentMethod != nil {
		order.PreferredPaymentMethod = sql.NullString{String: *req.PreferredPaymentMethod, Valid: *req.PreferredPaymentMethod != ""}
	}
	if req.MembershipBenefitsApplied != nil {
		order.MembershipBenefitsApplied = *req.MembershipBenefitsApplied
	}

	if order.EndDate.Valid && order.EndDate.Time.Before(order.StartDate) {
		return false, fmt.Errorf("%w: end date must not precede start date", xerrors.ErrInvalidInput)
	}

	return cadenceChanged, nil
}

// PauseScheduledOrder pauses an active order.
func (s *ScheduleService) PauseScheduledOrder(ctx context.Context, customerID, orderID int64, reason string) (*schedule.ScheduledOrder, error) {
	order, err := s.GetScheduledOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.lifecycle.Pause(order, reason); err != nil {
		return nil, err
	}

	if err := s.orderRepo.UpdateLifecycle(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("scheduled order paused", zap.Int64("order_id", orderID), zap.String("reason", reason))
	s.publish(customerID, ws.EventOrderPaused, order)

	return order, nil
}

// ResumeScheduledOrder resumes a paused order.
func (s *ScheduleService) ResumeScheduledOrder(ctx context.Context, customerID, orderID int64) (*schedule.ScheduledOrder, error) {
	order, err := s.GetScheduledOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.lifecycle.Resume(order); err != nil {
		return nil, err
	}

	if err := s.orderRepo.UpdateLifecycle(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("scheduled order resumed", zap.Int64("order_id", orderID))
	s.publish(customerID, ws.EventOrderResumed, order)

	return order, nil
}

// CancelScheduledOrder terminally cancels an order.
func (s *ScheduleService) CancelScheduledOrder(ctx context.Context, customerID, orderID int64, reason string) (*schedule.ScheduledOrder, error) {
	order, err := s.GetScheduledOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.lifecycle.Cancel(order, reason); err != nil {
		return nil, err
	}

	if err := s.orderRepo.UpdateLifecycle(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("scheduled order cancelled", zap.Int64("order_id", orderID), zap.String("reason", reason))
	s.publish(customerID, ws.EventOrderCancelled, order)

	return order, nil
}

// RecordExecution applies the outcome the delivery executor reports for one
// attempt: lifecycle counters plus a history row, atomically. A repeated
// idempotency key is rejected so executor retries cannot double-count.
func (s *ScheduleService) RecordExecution(ctx context.Context, customerID, orderID int64, req *schedule.RecordExecutionRequest) (*schedule.ScheduledOrder, *schedule.OrderExecution, error) {
	if req.IdempotencyKey != "" {
		first, err := s.idempotency.Claim(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, nil, err
		}
		if !first {
			return nil, nil, fmt.Errorf("%w: execution already recorded", xerrors.ErrDuplicateEntry)
		}
	}

	order, err := s.GetScheduledOrder(ctx, customerID, orderID)
	if err != nil {
		s.releaseClaim(ctx, req.IdempotencyKey)
		return nil, nil, err
	}

	if err := s.lifecycle.RecordExecution(order, req.Outcome); err != nil {
		s.releaseClaim(ctx, req.IdempotencyKey)
		return nil, nil, err
	}

	execution := &schedule.OrderExecution{
		ScheduledOrderID: orderID,
		ExecutionNumber:  order.ExecutionCount,
		ExecutedAt:       s.lifecycle.now(),
		Outcome:          req.Outcome,
		FailureReason:    sql.NullString{String: req.FailureReason, Valid: req.FailureReason != ""},
		Amount:           order.EstimatedAmount,
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		s.releaseClaim(ctx, req.IdempotencyKey)
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.executionRepo.CreateWithTx(ctx, tx, execution); err != nil {
		s.releaseClaim(ctx, req.IdempotencyKey)
		return nil, nil, err
	}

	if err := s.orderRepo.UpdateLifecycleWithTx(ctx, tx, order); err != nil {
		s.releaseClaim(ctx, req.IdempotencyKey)
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		s.releaseClaim(ctx, req.IdempotencyKey)
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("execution recorded",
		zap.Int64("order_id", orderID),
		zap.Int("execution_number", execution.ExecutionNumber),
		zap.String("outcome", string(req.Outcome)),
		zap.String("status", string(order.Status)),
	)

	s.publish(customerID, ws.EventOrderExecuted, order)

	return order, execution, nil
}

// GetExecutionHistory retrieves the execution history of one order.
func (s *ScheduleService) GetExecutionHistory(ctx context.Context, customerID, orderID int64, filters *schedule.ExecutionListFilters) (*schedule.ExecutionListResponse, error) {
	if _, err := s.GetScheduledOrder(ctx, customerID, orderID); err != nil {
		return nil, err
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}

	executions, total, err := s.executionRepo.List(ctx, orderID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get execution history: %w", err)
	}

	totalPages := int(total) / filters.PageSize
	if int(total)%filters.PageSize > 0 {
		totalPages++
	}

	return &schedule.ExecutionListResponse{
		Executions: executions,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: totalPages,
	}, nil
}

// GetCalendar loads a customer's orders and ranged history and projects them
// onto the queried window.
func (s *ScheduleService) GetCalendar(ctx context.Context, customerID int64, q schedule.CalendarQuery) (*schedule.CalendarViewResponse, error) {
	if q.EndDate.Before(q.StartDate) {
		return nil, fmt.Errorf("%w: end date must not precede start date", xerrors.ErrInvalidInput)
	}

	orders, err := s.orderRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	history, err := s.executionRepo.ListInRange(ctx, customerID, q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}

	view := s.lifecycle.BuildCalendar(orders, history, q)
	return &view, nil
}

// GetDueOrders retrieves a customer's orders whose execution time has arrived.
func (s *ScheduleService) GetDueOrders(ctx context.Context, customerID int64) ([]schedule.ScheduledOrder, error) {
	allDue, err := s.orderRepo.GetDueOrders(ctx, s.lifecycle.now())
	if err != nil {
		return nil, fmt.Errorf("failed to get due orders: %w", err)
	}

	due := []schedule.ScheduledOrder{}
	for _, order := range allDue {
		if order.CustomerIdentityID == customerID {
			due = append(due, order)
		}
	}

	return due, nil
}

// GetScheduleStats retrieves aggregate statistics for a customer.
func (s *ScheduleService) GetScheduleStats(ctx context.Context, customerID int64) (*schedule.ScheduleStats, error) {
	stats, err := s.orderRepo.GetStats(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

// ExpireOverdueOrders moves every active order past its end date to expired.
// Called by the sweep worker.
func (s *ScheduleService) ExpireOverdueOrders(ctx context.Context) (int, error) {
	candidates, err := s.orderRepo.GetExpiredCandidates(ctx, s.lifecycle.now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range candidates {
		order := &candidates[i]
		if err := s.lifecycle.Expire(order); err != nil {
			continue
		}
		if err := s.orderRepo.UpdateLifecycle(ctx, order); err != nil {
			s.logger.Error("failed to persist expiry", zap.Int64("order_id", order.ID), zap.Error(err))
			continue
		}
		expired++
		s.publish(order.CustomerIdentityID, ws.EventOrderExpired, order)
	}

	if expired > 0 {
		s.logger.Info("expired overdue orders", zap.Int("count", expired))
	}

	return expired, nil
}

// NotifyDueOrders broadcasts a reminder event for every due order with
// reminders enabled. Called by the sweep worker.
func (s *ScheduleService) NotifyDueOrders(ctx context.Context) (int, error) {
	now := s.lifecycle.now()

	due, err := s.orderRepo.GetDueOrders(ctx, now.Add(maxReminderLead))
	if err != nil {
		return 0, err
	}

	notified := 0
	for i := range due {
		order := &due[i]
		if !order.ReminderEnabled || !order.NextExecutionAt.Valid {
			continue
		}
		lead := time.Duration(order.ReminderMinutesBefore) * time.Minute
		if order.NextExecutionAt.Time.Add(-lead).After(now) {
			continue
		}
		s.publish(order.CustomerIdentityID, ws.EventOrderDue, order)
		notified++
	}

	return notified, nil
}

const maxReminderLead = 2 * time.Hour

// ========== Helpers ==========

func (s *ScheduleService) validateRecurrence(pattern recurrence.Pattern, customDays *int32) error {
	if !pattern.Valid() {
		return fmt.Errorf("%w: unknown recurrence pattern %q", xerrors.ErrInvalidSpecification, pattern)
	}

	if pattern == recurrence.PatternCustom {
		if customDays == nil || *customDays < 1 {
			return fmt.Errorf("%w: custom pattern requires a positive interval in days", xerrors.ErrInvalidSpecification)
		}
	}

	return nil
}

func (s *ScheduleService) generateOrderReference() string {
	timestamp := s.lifecycle.now().Format("20060102")
	return fmt.Sprintf("SCH-%s-%s", timestamp, ulid.Make().String()[16:])
}

func (s *ScheduleService) publish(customerID int64, eventType ws.EventType, order *schedule.ScheduledOrder) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(customerID, ws.Event{
		Type:           eventType,
		OrderID:        order.ID,
		OrderReference: order.OrderReference,
		Status:         order.Status,
		Timestamp:      s.lifecycle.now(),
	})
}

func (s *ScheduleService) releaseClaim(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
