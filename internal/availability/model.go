package availability

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/court-booking-engine/internal/booking"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
)

var (
	ErrInvalidDuration = apperror.New(http.StatusBadRequest, "duration must be positive and fit within a day")
	ErrInvalidClock    = apperror.New(http.StatusBadRequest, "time of day must be HH:MM or HH:MM:SS")
)

// Slot is a candidate booking window on a court.
type Slot struct {
	StartTime time.Time
	EndTime   time.Time
	Available bool
}

// Reasons a court is reported unavailable by CheckBulkAvailability.
const (
	ReasonBooked     = "booked"
	ReasonClosed     = "outside operating hours"
	ReasonUnverified = "availability could not be verified"
)

// CourtAvailability is one court's answer to a bulk availability query.
type CourtAvailability struct {
	Court     *court.Court
	Available bool
	Conflicts []*booking.Booking
	Reason    string // empty when available
}
