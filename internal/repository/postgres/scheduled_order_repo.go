// internal/repository/postgres/scheduled_order_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"jikoni-service/internal/domain/schedule"
	xerrors "jikoni-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ScheduledOrderRepository struct {
	db *pgxpool.Pool
}

func NewScheduledOrderRepository(db *pgxpool.Pool) *ScheduledOrderRepository {
	return &ScheduledOrderRepository{db: db}
}

const scheduledOrderColumns = `
	id, order_reference, customer_identity_id, name, description,
	recurrence_pattern, start_date, end_date, preferred_delivery_time,
	custom_interval_days, selected_days_of_week,
	order_template, estimated_amount, currency, delivery_instructions,
	execution_count, successful_executions, failed_executions, max_executions,
	last_executed_at, next_execution_at,
	status, paused_at, pause_reason, cancelled_at, cancellation_reason,
	ai_optimization_enabled, reminder_enabled, reminder_minutes_before,
	preferred_payment_method, membership_benefits_applied,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheduledOrder(row rowScanner) (*schedule.ScheduledOrder, error) {
	var o schedule.ScheduledOrder
	var templateJSON, daysJSON []byte

	err := row.Scan(
		&o.ID, &o.OrderReference, &o.CustomerIdentityID, &o.Name, &o.Description,
		&o.RecurrencePattern, &o.StartDate, &o.EndDate, &o.PreferredDeliveryTime,
		&o.CustomIntervalDays, &daysJSON,
		&templateJSON, &o.EstimatedAmount, &o.Currency, &o.DeliveryInstructions,
		&o.ExecutionCount, &o.SuccessfulExecutions, &o.FailedExecutions, &o.MaxExecutions,
		&o.LastExecutedAt, &o.NextExecutionAt,
		&o.Status, &o.PausedAt, &o.PauseReason, &o.CancelledAt, &o.CancellationReason,
		&o.AIOptimizationEnabled, &o.ReminderEnabled, &o.ReminderMinutesBefore,
		&o.PreferredPaymentMethod, &o.MembershipBenefitsApplied,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(templateJSON) > 0 {
		if err := json.Unmarshal(templateJSON, &o.OrderTemplate); err != nil {
			return nil, fmt.Errorf("failed to decode order template: %w", err)
		}
	}
	if len(daysJSON) > 0 {
		if err := json.Unmarshal(daysJSON, &o.SelectedDaysOfWeek); err != nil {
			return nil, fmt.Errorf("failed to decode selected days: %w", err)
		}
	}

	return &o, nil
}

func marshalOrderJSON(o *schedule.ScheduledOrder) (templateJSON, daysJSON []byte, err error) {
	if o.OrderTemplate != nil {
		templateJSON, err = json.Marshal(o.OrderTemplate)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal order template: %w", err)
		}
	}
	if o.SelectedDaysOfWeek != nil {
		daysJSON, err = json.Marshal(o.SelectedDaysOfWeek)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal selected days: %w", err)
		}
	}
	return templateJSON, daysJSON, nil
}

// CreateWithTx inserts a scheduled order within a transaction.
func (r *ScheduledOrderRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, o *schedule.ScheduledOrder) error {
	query := `
		INSERT INTO scheduled_orders (
			order_reference, customer_identity_id, name, description,
			recurrence_pattern, start_date, end_date, preferred_delivery_time,
			custom_interval_days, selected_days_of_week,
			order_template, estimated_amount, currency, delivery_instructions,
			max_executions, next_execution_at, status,
			ai_optimization_enabled, reminder_enabled, reminder_minutes_before,
			preferred_payment_method, membership_benefits_applied
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		          $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id, created_at, updated_at
	`

	templateJSON, daysJSON, err := marshalOrderJSON(o)
	if err != nil {
		return err
	}

	err = tx.QueryRow(
		ctx, query,
		o.OrderReference, o.CustomerIdentityID, o.Name, o.Description,
		o.RecurrencePattern, o.StartDate, o.EndDate, o.PreferredDeliveryTime,
		o.CustomIntervalDays, daysJSON,
		templateJSON, o.EstimatedAmount, o.Currency, o.DeliveryInstructions,
		o.MaxExecutions, o.NextExecutionAt, o.Status,
		o.AIOptimizationEnabled, o.ReminderEnabled, o.ReminderMinutesBefore,
		o.PreferredPaymentMethod, o.MembershipBenefitsApplied,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create scheduled order: %w", err)
	}

	return nil
}

// FindByID retrieves a scheduled order by ID.
func (r *ScheduledOrderRepository) FindByID(ctx context.Context, id int64) (*schedule.ScheduledOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM scheduled_orders WHERE id = $1`, scheduledOrderColumns)

	o, err := scanScheduledOrder(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find scheduled order: %w", err)
	}

	return o, nil
}

// Update persists the mutable fields of a scheduled order.
func (r *ScheduledOrderRepository) Update(ctx context.Context, id int64, o *schedule.ScheduledOrder) error {
	query := `
		UPDATE scheduled_orders
		SET name = $1, description = $2,
		    recurrence_pattern = $3, start_date = $4, end_date = $5,
		    preferred_delivery_time = $6, custom_interval_days = $7,
		    selected_days_of_week = $8, order_template = $9,
		    estimated_amount = $10, delivery_instructions = $11,
		    max_executions = $12, next_execution_at = $13,
		    ai_optimization_enabled = $14, reminder_enabled = $15,
		    reminder_minutes_before = $16, preferred_payment_method = $17,
		    membership_benefits_applied = $18, updated_at = $19
		WHERE id = $20
	`

	templateJSON, daysJSON, err := marshalOrderJSON(o)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(
		ctx, query,
		o.Name, o.Description,
		o.RecurrencePattern, o.StartDate, o.EndDate,
		o.PreferredDeliveryTime, o.CustomIntervalDays,
		daysJSON, templateJSON,
		o.EstimatedAmount, o.DeliveryInstructions,
		o.MaxExecutions, o.NextExecutionAt,
		o.AIOptimizationEnabled, o.ReminderEnabled,
		o.ReminderMinutesBefore, o.PreferredPaymentMethod,
		o.MembershipBenefitsApplied, time.Now(),
		id,
	)

	if err != nil {
		return fmt.Errorf("failed to update scheduled order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// UpdateLifecycleWithTx persists the lifecycle-owned fields (status, pause and
// cancel bookkeeping, counters, execution timestamps) within a transaction.
func (r *ScheduledOrderRepository) UpdateLifecycleWithTx(ctx context.Context, tx pgx.Tx, o *schedule.ScheduledOrder) error {
	query := `
		UPDATE scheduled_orders
		SET status = $1, paused_at = $2, pause_reason = $3,
		    cancelled_at = $4, cancellation_reason = $5,
		    execution_count = $6, successful_executions = $7, failed_executions = $8,
		    last_executed_at = $9, next_execution_at = $10, updated_at = $11
		WHERE id = $12
	`

	result, err := tx.Exec(
		ctx, query,
		o.Status, o.PausedAt, o.PauseReason,
		o.CancelledAt, o.CancellationReason,
		o.ExecutionCount, o.SuccessfulExecutions, o.FailedExecutions,
		o.LastExecutedAt, o.NextExecutionAt, time.Now(),
		o.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update order lifecycle: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// UpdateLifecycle is UpdateLifecycleWithTx outside a transaction.
func (r *ScheduledOrderRepository) UpdateLifecycle(ctx context.Context, o *schedule.ScheduledOrder) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.UpdateLifecycleWithTx(ctx, tx, o); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// List retrieves scheduled orders for a customer with filters.
func (r *ScheduledOrderRepository) List(ctx context.Context, customerID int64, filters *schedule.ScheduledOrderListFilters) ([]schedule.ScheduledOrder, int64, error) {
	conditions := []string{"customer_identity_id = $1"}
	args := []interface{}{customerID}
	argPos := 2

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filters.Status)
		argPos++
	}

	if filters.Pattern != nil {
		conditions = append(conditions, fmt.Sprintf("recurrence_pattern = $%d", argPos))
		args = append(args, *filters.Pattern)
		argPos++
	}

	if filters.DueToday {
		conditions = append(conditions, fmt.Sprintf("DATE(next_execution_at) = $%d", argPos))
		args = append(args, time.Now().Format("2006-01-02"))
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM scheduled_orders WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count scheduled orders: %w", err)
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}

	offset := (filters.Page - 1) * filters.PageSize

	sortBy := "next_execution_at"
	switch filters.SortBy {
	case "created_at", "start_date", "name", "status":
		sortBy = filters.SortBy
	}
	sortOrder := "ASC"
	if strings.EqualFold(filters.SortOrder, "desc") {
		sortOrder = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM scheduled_orders
		WHERE %s
		ORDER BY %s %s NULLS LAST
		LIMIT $%d OFFSET $%d
	`, scheduledOrderColumns, whereClause, sortBy, sortOrder, argPos, argPos+1)

	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list scheduled orders: %w", err)
	}
	defer rows.Close()

	orders := []schedule.ScheduledOrder{}
	for rows.Next() {
		o, err := scanScheduledOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan scheduled order: %w", err)
		}
		orders = append(orders, *o)
	}

	return orders, total, nil
}

// ListByCustomer retrieves every scheduled order for a customer, for calendar
// projection.
func (r *ScheduledOrderRepository) ListByCustomer(ctx context.Context, customerID int64) ([]schedule.ScheduledOrder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM scheduled_orders
		WHERE customer_identity_id = $1
		ORDER BY created_at ASC
	`, scheduledOrderColumns)

	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customer orders: %w", err)
	}
	defer rows.Close()

	orders := []schedule.ScheduledOrder{}
	for rows.Next() {
		o, err := scanScheduledOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled order: %w", err)
		}
		orders = append(orders, *o)
	}

	return orders, nil
}

// GetDueOrders retrieves active orders whose next execution time has arrived.
func (r *ScheduledOrderRepository) GetDueOrders(ctx context.Context, asOf time.Time) ([]schedule.ScheduledOrder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM scheduled_orders
		WHERE status = 'active' AND next_execution_at IS NOT NULL AND next_execution_at <= $1
		ORDER BY next_execution_at ASC
	`, scheduledOrderColumns)

	rows, err := r.db.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to get due orders: %w", err)
	}
	defer rows.Close()

	orders := []schedule.ScheduledOrder{}
	for rows.Next() {
		o, err := scanScheduledOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled order: %w", err)
		}
		orders = append(orders, *o)
	}

	return orders, nil
}

// GetExpiredCandidates retrieves active orders whose end date has passed.
func (r *ScheduledOrderRepository) GetExpiredCandidates(ctx context.Context, asOf time.Time) ([]schedule.ScheduledOrder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM scheduled_orders
		WHERE status = 'active' AND end_date IS NOT NULL AND end_date < $1
		ORDER BY end_date ASC
	`, scheduledOrderColumns)

	rows, err := r.db.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired candidates: %w", err)
	}
	defer rows.Close()

	orders := []schedule.ScheduledOrder{}
	for rows.Next() {
		o, err := scanScheduledOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled order: %w", err)
		}
		orders = append(orders, *o)
	}

	return orders, nil
}

// GetStats retrieves order and execution statistics for a customer.
func (r *ScheduledOrderRepository) GetStats(ctx context.Context, customerID int64) (*schedule.ScheduleStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(CASE WHEN status = 'active' THEN 1 END) AS active,
			COUNT(CASE WHEN status = 'paused' THEN 1 END) AS paused,
			COALESCE(SUM(execution_count), 0) AS executions,
			COALESCE(SUM(successful_executions), 0) AS successful,
			COALESCE(SUM(failed_executions), 0) AS failed
		FROM scheduled_orders
		WHERE customer_identity_id = $1
	`

	var stats schedule.ScheduleStats
	err := r.db.QueryRow(ctx, query, customerID).Scan(
		&stats.TotalOrders,
		&stats.ActiveOrders,
		&stats.PausedOrders,
		&stats.TotalExecutions,
		&stats.SuccessfulExecutions,
		&stats.FailedExecutions,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return &stats, nil
}
