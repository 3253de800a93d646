package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	courts := g.Group("/courts", authMiddleware)
	{
		courts.GET("/:id/slots", h.Slots)
		courts.GET("/:id/conflicts", h.Conflicts)
	}

	facilities := g.Group("/facilities", authMiddleware)
	{
		facilities.GET("/:id/availability", h.Bulk)
	}
}
