package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"slotwise/handlers"
	"slotwise/middleware"
)

// RegisterReservationRoutes wires the customer- and shop-facing lifecycle
// endpoints. Customers book, check state, reschedule, and cancel; shops
// confirm, complete, check in, cancel, and record no-shows.
func RegisterReservationRoutes(r *gin.Engine, rh *handlers.ReservationHandler) {
	customer := r.Group("/api/reservations")
	{
		customer.Use(middleware.JWTAuthMiddleware("customer"))
		customer.POST("", rh.CreateReservationHandler)
		customer.GET("/:id", rh.GetReservationHandler)
		customer.GET("/:id/audit", rh.AuditHandler)
		customer.POST("/:id/cancel", rh.CancelReservationHandler)
		customer.POST("/:id/reschedule/validate", rh.ValidateRescheduleHandler)
		customer.POST("/:id/reschedule", rh.RescheduleHandler)
	}

	shop := r.Group("/api/shop/reservations")
	{
		shop.Use(middleware.JWTAuthMiddleware("shop"))
		shop.GET("/:id", rh.GetReservationHandler)
		shop.GET("/:id/audit", rh.AuditHandler)
		shop.POST("/:id/confirm", rh.ConfirmReservationHandler)
		shop.POST("/:id/check-in", rh.CheckInHandler)
		shop.POST("/:id/complete", rh.CompleteReservationHandler)
		shop.POST("/:id/cancel", rh.CancelReservationHandler)
		shop.POST("/:id/no-show", rh.MarkNoShowHandler)
		shop.POST("/:id/reschedule/validate", rh.ValidateRescheduleHandler)
		shop.POST("/:id/reschedule", rh.RescheduleHandler)
	}
}

// RegisterAdminRoutes sets up the operational endpoints.
func RegisterAdminRoutes(r *gin.Engine, ah *handlers.AdminHandler) {
	adminGroup := r.Group("/api/admin")
	{
		adminGroup.Use(middleware.JWTAuthAdminMiddleware())
		adminGroup.GET("/scheduler/status", ah.SchedulerStatusHandler)
		adminGroup.POST("/scheduler/run", ah.SchedulerRunNowHandler)
		adminGroup.GET("/grace-config", ah.GetGraceConfigHandler)
		adminGroup.PUT("/grace-config", ah.UpdateGraceConfigHandler)
		adminGroup.POST("/conflicts/scan", ah.ScanConflictsHandler)
		adminGroup.GET("/conflicts", ah.ListConflictsHandler)
		adminGroup.POST("/conflicts/:id/resolve", ah.ResolveConflictHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Hi, I'm Slotwise"})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, rh *handlers.ReservationHandler, ah *handlers.AdminHandler) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)
	RegisterReservationRoutes(r, rh)
	RegisterAdminRoutes(r, ah)
}
