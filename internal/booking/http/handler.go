package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-booking-engine/internal/auth"
	"github.com/nekogravitycat/court-booking-engine/internal/booking"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/request"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/response"
)

type Handler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *Handler {
	return &Handler{service: service}
}

// Create books a court window for the authenticated user.
func (h *Handler) Create(c *gin.Context) {
	var body CreateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	userID := auth.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	b, err := h.service.Create(c.Request.Context(), booking.CreateRequest{
		UserID:     userID,
		ResourceID: body.ResourceID,
		StartTime:  body.StartTime,
		EndTime:    body.EndTime,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewBookingResponse(b))
}

// Get returns a booking to its owner, or to any operator or admin.
func (h *Handler) Get(c *gin.Context) {
	id, ok := request.BindID(c)
	if !ok {
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	if !canRead(b, auth.GetUserID(c), booking.Role(auth.GetUserRole(c))) {
		// Hide existence from other users.
		response.Error(c, booking.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// canRead allows the owner and staff. Any other role, known or not, is treated as a stranger.
func canRead(b *booking.Booking, userID string, role booking.Role) bool {
	if userID != "" && b.UserID == userID {
		return true
	}
	return role == booking.RoleOperator || role == booking.RoleAdmin
}

// Cancel cancels the authenticated user's own booking.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := request.BindID(c)
	if !ok {
		return
	}

	b, err := h.service.Cancel(c.Request.Context(), id, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// UpdateStatus moves a booking through its lifecycle. Operators and admins only;
// the service checks the operator owns the court's facility.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := request.BindID(c)
	if !ok {
		return
	}

	var body UpdateStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	b, err := h.service.UpdateStatus(
		c.Request.Context(),
		id,
		booking.Status(body.Status),
		auth.GetUserID(c),
		booking.Role(auth.GetUserRole(c)),
	)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// Stats returns aggregate booking counts.
func (h *Handler) Stats(c *gin.Context) {
	var q StatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	if err := q.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	stats, err := h.service.GetBookingStats(c.Request.Context(), q.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
