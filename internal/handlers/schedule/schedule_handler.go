// internal/handlers/schedule/schedule_handler.go
package schedule

import (
	"errors"
	"net/http"
	"strconv"

	"jikoni-service/internal/domain/schedule"
	"jikoni-service/internal/middleware"
	xerrors "jikoni-service/internal/pkg/errors"
	"jikoni-service/internal/pkg/response"
	service "jikoni-service/internal/service/schedule"

	"github.com/gin-gonic/gin"
)

type ScheduleHandler struct {
	scheduleService *service.ScheduleService
}

func NewScheduleHandler(scheduleService *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService: scheduleService,
	}
}

func respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, xerrors.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, xerrors.ErrInvalidInput),
		errors.Is(err, xerrors.ErrInvalidSpecification),
		errors.Is(err, xerrors.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, xerrors.ErrInvalidTransition),
		errors.Is(err, xerrors.ErrDuplicateEntry):
		status = http.StatusConflict
	}
	response.Error(c, status, message, err)
}

func orderIDParam(c *gin.Context) (int64, bool) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid order ID", err)
		return 0, false
	}
	return orderID, true
}

// ========== Scheduled Order Endpoints ==========

// CreateScheduledOrder creates a new recurring order
func (h *ScheduleHandler) CreateScheduledOrder(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	var req schedule.CreateScheduledOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.scheduleService.CreateScheduledOrder(c.Request.Context(), customerID, &req)
	if err != nil {
		respondError(c, "failed to create scheduled order", err)
		return
	}

	response.Success(c, http.StatusCreated, "scheduled order created successfully", result)
}

// GetScheduledOrder retrieves a scheduled order by ID
func (h *ScheduleHandler) GetScheduledOrder(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	result, err := h.scheduleService.GetScheduledOrder(c.Request.Context(), customerID, orderID)
	if err != nil {
		respondError(c, "scheduled order not found", err)
		return
	}

	response.Success(c, http.StatusOK, "scheduled order retrieved", result)
}

// GetScheduledOrderDetail retrieves an order with derived metrics
func (h *ScheduleHandler) GetScheduledOrderDetail(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	result, err := h.scheduleService.DescribeOrder(c.Request.Context(), customerID, orderID)
	if err != nil {
		respondError(c, "scheduled order not found", err)
		return
	}

	response.Success(c, http.StatusOK, "scheduled order detail retrieved", result)
}

// ListScheduledOrders retrieves scheduled orders with filters
func (h *ScheduleHandler) ListScheduledOrders(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	var filters schedule.ScheduledOrderListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.scheduleService.ListScheduledOrders(c.Request.Context(), customerID, &filters)
	if err != nil {
		respondError(c, "failed to list scheduled orders", err)
		return
	}

	response.Success(c, http.StatusOK, "scheduled orders retrieved", result)
}

// UpdateScheduledOrder applies a partial update
func (h *ScheduleHandler) UpdateScheduledOrder(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req schedule.UpdateScheduledOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.scheduleService.UpdateScheduledOrder(c.Request.Context(), customerID, orderID, &req)
	if err != nil {
		respondError(c, "failed to update scheduled order", err)
		return
	}

	response.Success(c, http.StatusOK, "scheduled order updated successfully", result)
}

// PauseScheduledOrder pauses an active order
func (h *ScheduleHandler) PauseScheduledOrder(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	// Reason body is optional.
	var req schedule.TransitionRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.scheduleService.PauseScheduledOrder(c.Request.Context(), customerID, orderID, req.Reason)
	if err != nil {
		respondError(c, "failed to pause scheduled order", err)
		return
	}

	response.Success(c, http.StatusOK, "scheduled order paused successfully", result)
}

// ResumeScheduledOrder resumes a paused order
func (h *ScheduleHandler) ResumeScheduledOrder(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	result, err := h.scheduleService.ResumeScheduledOrder(c.Request.Context(), customerID, orderID)
	if err != nil {
		respondError(c, "failed to resume scheduled order", err)
		return
	}

	response.Success(c, http.StatusOK, "scheduled order resumed successfully", result)
}

// CancelScheduledOrder cancels an order
func (h *ScheduleHandler) CancelScheduledOrder(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	// Reason body is optional.
	var req schedule.TransitionRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.scheduleService.CancelScheduledOrder(c.Request.Context(), customerID, orderID, req.Reason)
	if err != nil {
		respondError(c, "failed to cancel scheduled order", err)
		return
	}

	response.Success(c, http.StatusOK, "scheduled order cancelled successfully", result)
}

// ========== Execution Endpoints ==========

// RecordExecution records the outcome of one execution attempt
func (h *ScheduleHandler) RecordExecution(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req schedule.RecordExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	order, execution, err := h.scheduleService.RecordExecution(c.Request.Context(), customerID, orderID, &req)
	if err != nil {
		respondError(c, "failed to record execution", err)
		return
	}

	response.Success(c, http.StatusOK, "execution recorded successfully", gin.H{
		"order":     order,
		"execution": execution,
	})
}

// BatchRecordExecutions records multiple execution outcomes at once
func (h *ScheduleHandler) BatchRecordExecutions(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	var req struct {
		Executions []struct {
			OrderID        int64                     `json:"order_id" binding:"required"`
			Outcome        schedule.ExecutionOutcome `json:"outcome" binding:"required,oneof=success failed"`
			FailureReason  string                    `json:"failure_reason"`
			IdempotencyKey string                    `json:"idempotency_key"`
		} `json:"executions" binding:"required,min=1,max=50"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	successCount := 0
	failureCount := 0
	results := []gin.H{}

	for _, exec := range req.Executions {
		input := &schedule.RecordExecutionRequest{
			Outcome:        exec.Outcome,
			FailureReason:  exec.FailureReason,
			IdempotencyKey: exec.IdempotencyKey,
		}

		order, execution, err := h.scheduleService.RecordExecution(c.Request.Context(), customerID, exec.OrderID, input)
		if err != nil {
			failureCount++
			results = append(results, gin.H{
				"order_id": exec.OrderID,
				"success":  false,
				"error":    err.Error(),
			})
		} else {
			successCount++
			results = append(results, gin.H{
				"order_id":     exec.OrderID,
				"success":      true,
				"execution_id": execution.ID,
				"status":       order.Status,
			})
		}
	}

	response.Success(c, http.StatusOK, "batch recording completed", gin.H{
		"total":         len(req.Executions),
		"success_count": successCount,
		"failure_count": failureCount,
		"results":       results,
	})
}

// GetExecutionHistory retrieves execution history for an order
func (h *ScheduleHandler) GetExecutionHistory(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var filters schedule.ExecutionListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.scheduleService.GetExecutionHistory(c.Request.Context(), customerID, orderID, &filters)
	if err != nil {
		respondError(c, "failed to get execution history", err)
		return
	}

	response.Success(c, http.StatusOK, "execution history retrieved", result)
}

// GetDueOrders retrieves orders due for execution
func (h *ScheduleHandler) GetDueOrders(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	orders, err := h.scheduleService.GetDueOrders(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, "failed to get due orders", err)
		return
	}

	response.Success(c, http.StatusOK, "due orders retrieved", gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// ========== Calendar & Statistics ==========

// GetCalendar projects the customer's orders onto a date range
func (h *ScheduleHandler) GetCalendar(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	var q schedule.CalendarQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.scheduleService.GetCalendar(c.Request.Context(), customerID, q)
	if err != nil {
		respondError(c, "failed to build calendar", err)
		return
	}

	response.Success(c, http.StatusOK, "calendar retrieved", result)
}

// GetScheduleStats retrieves schedule statistics
func (h *ScheduleHandler) GetScheduleStats(c *gin.Context) {
	customerID := middleware.MustGetIdentityID(c)

	stats, err := h.scheduleService.GetScheduleStats(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, "failed to get schedule stats", err)
		return
	}

	response.Success(c, http.StatusOK, "schedule statistics retrieved", stats)
}
