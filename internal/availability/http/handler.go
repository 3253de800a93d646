package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-booking-engine/internal/availability"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/request"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/response"
)

const defaultDurationMinutes = 60

type Handler struct {
	resolver *availability.Resolver
	// loc interprets calendar dates given without a zone.
	loc *time.Location
}

func NewHandler(resolver *availability.Resolver, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{resolver: resolver, loc: loc}
}

func (h *Handler) parseDate(c *gin.Context, s string) (time.Time, bool) {
	date, err := time.ParseInLocation(dateLayout, s, h.loc)
	if err != nil {
		response.BadRequest(c, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

// Slots lists the bookable windows of a court on a day.
func (h *Handler) Slots(c *gin.Context) {
	id, ok := request.BindID(c)
	if !ok {
		return
	}

	var q SlotsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	if q.Duration == 0 {
		q.Duration = defaultDurationMinutes
	}
	date, ok := h.parseDate(c, q.Date)
	if !ok {
		return
	}

	slots, err := h.resolver.GetAvailableSlots(c.Request.Context(), id, date, time.Duration(q.Duration)*time.Minute)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewSlotsResponse(id, q.Date, q.Duration, slots))
}

// Conflicts reports the active bookings overlapping a window on a court.
func (h *Handler) Conflicts(c *gin.Context) {
	id, ok := request.BindID(c)
	if !ok {
		return
	}

	var q ConflictsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	if err := q.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	res := h.resolver.CheckBookingConflicts(c.Request.Context(), id, q.Start, q.End, q.ExcludeBookingID)
	if res.Err != nil {
		response.Error(c, res.Err)
		return
	}
	c.JSON(http.StatusOK, NewConflictResponse(res))
}

// Bulk reports, for every active court of a facility, whether a window is free.
func (h *Handler) Bulk(c *gin.Context) {
	id, ok := request.BindID(c)
	if !ok {
		return
	}

	var q BulkQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	date, ok := h.parseDate(c, q.Date)
	if !ok {
		return
	}

	results, err := h.resolver.CheckBulkAvailability(c.Request.Context(), id, date, q.Start, q.End)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]CourtAvailabilityResponse, len(results))
	for i, r := range results {
		items[i] = NewCourtAvailabilityResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
