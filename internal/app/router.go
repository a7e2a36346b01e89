// internal/app/router.go
package app

import (
	"time"

	scheduleHandler "jikoni-service/internal/handlers/schedule"
	"jikoni-service/internal/middleware"
	"jikoni-service/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handlers struct {
	ScheduleHandler *scheduleHandler.ScheduleHandler
	Hub             *ws.Hub
	AuthMiddleware  *middleware.AuthMiddleware
	RedisClient     *redis.Client
	RateLimitRPM    int64
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.AuthMiddleware.Auth(), func(c *gin.Context) {
		h.Hub.HandleConnection(c, middleware.MustGetIdentityID(c))
	})

	// ==================== Scheduled Orders ====================
	schedules := api.Group("/schedules")
	schedules.Use(
		h.AuthMiddleware.Auth(),
		middleware.RateLimitMiddleware(h.RedisClient, logger, h.RateLimitRPM, time.Minute),
	)
	{
		// CRUD
		schedules.POST("", h.ScheduleHandler.CreateScheduledOrder)
		schedules.GET("", h.ScheduleHandler.ListScheduledOrders)

		// Fixed paths before parameterized ones
		schedules.GET("/due", h.ScheduleHandler.GetDueOrders)
		schedules.GET("/calendar", h.ScheduleHandler.GetCalendar)
		schedules.GET("/stats/overview", h.ScheduleHandler.GetScheduleStats)
		schedules.POST("/batch/execute", h.ScheduleHandler.BatchRecordExecutions)

		schedules.GET("/:id", h.ScheduleHandler.GetScheduledOrder)
		schedules.GET("/:id/detail", h.ScheduleHandler.GetScheduledOrderDetail)
		schedules.PUT("/:id", h.ScheduleHandler.UpdateScheduledOrder)

		// Lifecycle control
		schedules.PUT("/:id/pause", h.ScheduleHandler.PauseScheduledOrder)
		schedules.PUT("/:id/resume", h.ScheduleHandler.ResumeScheduledOrder)
		schedules.PUT("/:id/cancel", h.ScheduleHandler.CancelScheduledOrder)

		// Execution
		schedules.POST("/:id/execute", h.ScheduleHandler.RecordExecution)
		schedules.GET("/:id/history", h.ScheduleHandler.GetExecutionHistory)
	}
}
