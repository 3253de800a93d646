package http

import (
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-booking-engine/internal/auth"
	"github.com/nekogravitycat/court-booking-engine/internal/booking"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/bookings")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.POST("", h.Create)
		group.GET("/:id", h.Get)
		group.POST("/:id/cancel", h.Cancel)
	}

	// === Operator Routes ===
	staff := group.Group("", auth.RequireRole(string(booking.RoleOperator), string(booking.RoleAdmin)))
	{
		staff.GET("/stats", h.Stats)
		staff.PATCH("/:id/status", h.UpdateStatus)
	}
}
