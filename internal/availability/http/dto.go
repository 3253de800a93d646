package http

import (
	"time"

	"github.com/nekogravitycat/court-booking-engine/internal/availability"
	"github.com/nekogravitycat/court-booking-engine/internal/booking"
	bookingHttp "github.com/nekogravitycat/court-booking-engine/internal/booking/http"
)

const dateLayout = "2006-01-02"

type SlotsQuery struct {
	Date     string `form:"date" binding:"required"`
	Duration int    `form:"duration" binding:"omitempty,min=1,max=1440"` // minutes
}

type ConflictsQuery struct {
	Start            time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	End              time.Time `form:"end" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	ExcludeBookingID string    `form:"exclude_booking_id" binding:"omitempty,uuid"`
}

// Validate performs custom validation for ConflictsQuery.
func (q *ConflictsQuery) Validate() error {
	return booking.ValidateWindow(q.Start, q.End)
}

type BulkQuery struct {
	Date  string `form:"date" binding:"required"`
	Start string `form:"start" binding:"required"`
	End   string `form:"end" binding:"required"`
}

type SlotResponse struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Available bool      `json:"available"`
}

type SlotsResponse struct {
	ResourceID string         `json:"resource_id"`
	Date       string         `json:"date"`
	Duration   int            `json:"duration"`
	Slots      []SlotResponse `json:"slots"`
}

func NewSlotsResponse(resourceID, date string, duration int, slots []availability.Slot) SlotsResponse {
	items := make([]SlotResponse, len(slots))
	for i, s := range slots {
		items[i] = SlotResponse{StartTime: s.StartTime, EndTime: s.EndTime, Available: s.Available}
	}
	return SlotsResponse{ResourceID: resourceID, Date: date, Duration: duration, Slots: items}
}

type ConflictResponse struct {
	HasConflict bool                          `json:"has_conflict"`
	Unverified  bool                          `json:"unverified,omitempty"`
	Conflicts   []bookingHttp.BookingResponse `json:"conflicts"`
}

func NewConflictResponse(res booking.ConflictResult) ConflictResponse {
	return ConflictResponse{
		HasConflict: res.HasConflict,
		Unverified:  res.Unverified,
		Conflicts:   bookingResponses(res.Conflicts),
	}
}

// CourtTag is the compact court reference used in availability answers.
type CourtTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CourtAvailabilityResponse struct {
	Court     CourtTag                      `json:"court"`
	Available bool                          `json:"available"`
	Reason    string                        `json:"reason,omitempty"`
	Conflicts []bookingHttp.BookingResponse `json:"conflicts"`
}

func NewCourtAvailabilityResponse(a availability.CourtAvailability) CourtAvailabilityResponse {
	return CourtAvailabilityResponse{
		Court:     CourtTag{ID: a.Court.ID, Name: a.Court.Name},
		Available: a.Available,
		Reason:    a.Reason,
		Conflicts: bookingResponses(a.Conflicts),
	}
}

func bookingResponses(bookings []*booking.Booking) []bookingHttp.BookingResponse {
	items := make([]bookingHttp.BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = bookingHttp.NewBookingResponse(b)
	}
	return items
}
