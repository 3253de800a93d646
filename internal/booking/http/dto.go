package http

import (
	"time"

	"github.com/nekogravitycat/court-booking-engine/internal/booking"
)

type BookingResponse struct {
	ID            string    `json:"id"`
	ResourceID    string    `json:"resource_id"`
	FacilityID    string    `json:"facility_id"`
	UserID        string    `json:"user_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	DurationHours float64   `json:"duration_hours"`
	UnitPrice     int64     `json:"unit_price"`
	TotalPrice    int64     `json:"total_price"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:            b.ID,
		ResourceID:    b.ResourceID,
		FacilityID:    b.FacilityID,
		UserID:        b.UserID,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		DurationHours: b.DurationHours,
		UnitPrice:     b.UnitPrice,
		TotalPrice:    b.TotalPrice,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

type CreateBookingRequest struct {
	ResourceID string    `json:"resource_id" binding:"required,uuid"`
	StartTime  time.Time `json:"start_time" binding:"required"`
	EndTime    time.Time `json:"end_time" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending confirmed cancelled completed"`
}

// StatsQuery defines query parameters for booking statistics.
type StatsQuery struct {
	FacilityID string     `form:"facility_id" binding:"omitempty,uuid"`
	From       *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Validate performs custom validation for StatsQuery.
func (q *StatsQuery) Validate() error {
	if q.From != nil && q.To != nil && !q.To.After(*q.From) {
		return booking.ErrInvalidTimeRange
	}
	return nil
}

func (q *StatsQuery) Filter() booking.StatsFilter {
	f := booking.StatsFilter{FacilityID: q.FacilityID}
	if q.From != nil {
		f.From = *q.From
	}
	if q.To != nil {
		f.To = *q.To
	}
	return f
}
