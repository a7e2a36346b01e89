// internal/repository/postgres/order_execution_repo.go
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jikoni-service/internal/domain/schedule"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderExecutionRepository struct {
	db *pgxpool.Pool
}

func NewOrderExecutionRepository(db *pgxpool.Pool) *OrderExecutionRepository {
	return &OrderExecutionRepository{db: db}
}

// CreateWithTx inserts an execution record within a transaction.
func (r *OrderExecutionRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, exec *schedule.OrderExecution) error {
	query := `
		INSERT INTO order_executions (
			scheduled_order_id, execution_number, executed_at, outcome, failure_reason, amount
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := tx.QueryRow(
		ctx, query,
		exec.ScheduledOrderID, exec.ExecutionNumber, exec.ExecutedAt,
		exec.Outcome, exec.FailureReason, exec.Amount,
	).Scan(&exec.ID, &exec.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create order execution: %w", err)
	}

	return nil
}

// List retrieves executions for a scheduled order with filters.
func (r *OrderExecutionRepository) List(ctx context.Context, orderID int64, filters *schedule.ExecutionListFilters) ([]schedule.OrderExecution, int64, error) {
	conditions := []string{"scheduled_order_id = $1"}
	args := []interface{}{orderID}
	argPos := 2

	if filters.Outcome != nil {
		conditions = append(conditions, fmt.Sprintf("outcome = $%d", argPos))
		args = append(args, *filters.Outcome)
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM order_executions WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count executions: %w", err)
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`
		SELECT id, scheduled_order_id, execution_number, executed_at, outcome, failure_reason, amount, created_at
		FROM order_executions
		WHERE %s
		ORDER BY executed_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)

	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	executions := []schedule.OrderExecution{}
	for rows.Next() {
		var e schedule.OrderExecution
		err := rows.Scan(
			&e.ID, &e.ScheduledOrderID, &e.ExecutionNumber, &e.ExecutedAt,
			&e.Outcome, &e.FailureReason, &e.Amount, &e.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, e)
	}

	return executions, total, nil
}

// ListInRange retrieves a customer's executions inside a time window, for
// calendar history and statistics.
func (r *OrderExecutionRepository) ListInRange(ctx context.Context, customerID int64, from, to time.Time) ([]schedule.OrderExecution, error) {
	query := `
		SELECT e.id, e.scheduled_order_id, e.execution_number, e.executed_at,
		       e.outcome, e.failure_reason, e.amount, e.created_at
		FROM order_executions e
		JOIN scheduled_orders o ON o.id = e.scheduled_order_id
		WHERE o.customer_identity_id = $1 AND e.executed_at >= $2 AND e.executed_at <= $3
		ORDER BY e.executed_at ASC
	`

	rows, err := r.db.Query(ctx, query, customerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions in range: %w", err)
	}
	defer rows.Close()

	executions := []schedule.OrderExecution{}
	for rows.Next() {
		var e schedule.OrderExecution
		err := rows.Scan(
			&e.ID, &e.ScheduledOrderID, &e.ExecutionNumber, &e.ExecutedAt,
			&e.Outcome, &e.FailureReason, &e.Amount, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, e)
	}

	return executions, nil
}
