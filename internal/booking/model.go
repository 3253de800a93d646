package booking

import (
	"context"
	"net/http"
	"time"

	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
)

var (
	ErrNotFound              = apperror.New(http.StatusNotFound, "booking not found")
	ErrResourceNotFound      = apperror.Wrap(ErrNotFound, http.StatusNotFound, "court not found or inactive")
	ErrConflict              = apperror.New(http.StatusConflict, "time slot already booked")
	ErrLockUnavailable       = apperror.New(http.StatusConflict, "time slot is being booked by another request, please retry")
	ErrPermissionDenied      = apperror.New(http.StatusForbidden, "permission denied")
	ErrInvalidState          = apperror.New(http.StatusUnprocessableEntity, "booking status does not allow this operation")
	ErrCancelCutoff          = apperror.Wrap(ErrInvalidState, http.StatusUnprocessableEntity, "cannot cancel inside cutoff window")
	ErrInvalidTimeRange      = apperror.New(http.StatusBadRequest, "start time must be before end time")
	ErrWindowTooLong         = apperror.Wrap(ErrInvalidTimeRange, http.StatusBadRequest, "time window must not exceed 24 hours")
	ErrStartTimePast         = apperror.New(http.StatusBadRequest, "cannot create booking in the past")
	ErrOutsideOperatingHours = apperror.New(http.StatusBadRequest, "booking must be within the court's operating hours")
	ErrInvalidStatus         = apperror.New(http.StatusBadRequest, "invalid booking status")
	ErrUpstream              = apperror.New(http.StatusServiceUnavailable, "booking backend unavailable, please retry later")
)

// MaxWindow bounds every booking and conflict-check window. Operating hours
// never cross midnight, so no bookable window is longer.
const MaxWindow = 24 * time.Hour

// ValidateWindow checks that [start, end) is non-empty and at most MaxWindow long.
func ValidateWindow(start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidTimeRange
	}
	if end.Sub(start) > MaxWindow {
		return ErrWindowTooLong
	}
	return nil
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ActiveStatuses are the statuses that hold a court's time window.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

// transitions lists the statuses reachable from each status.
// Confirming a confirmed booking is allowed so the cache entry can be rewritten.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusConfirmed, StatusCompleted, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Role is the actor's role as carried by the access token.
type Role string

const (
	RoleUser     Role = "user"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Booking is a reservation of the half-open window [StartTime, EndTime) on a court.
type Booking struct {
	ID            string
	ResourceID    string
	FacilityID    string
	UserID        string
	StartTime     time.Time
	EndTime       time.Time
	DurationHours float64
	UnitPrice     int64
	TotalPrice    int64
	Status        Status
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Overlaps reports whether the booking intersects [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}

// ConflictResult is the answer of a conflict check.
type ConflictResult struct {
	HasConflict bool
	Conflicts   []*Booking
	// Unverified is set when the check could not complete and HasConflict was forced to true.
	Unverified bool
	// Err is set when the window was rejected before any lookup.
	Err error
}

// ConflictChecker decides whether a window is free on a court.
type ConflictChecker interface {
	CheckBookingConflicts(ctx context.Context, resourceID string, start, end time.Time, excludeBookingID string) ConflictResult
}

// StatsFilter scopes a statistics query. Empty FacilityID means every facility;
// From/To bound booking start times as [From, To).
type StatsFilter struct {
	FacilityID string
	From       time.Time
	To         time.Time
}

type Stats struct {
	Total     int   `json:"total"`
	Pending   int   `json:"pending"`
	Confirmed int   `json:"confirmed"`
	Cancelled int   `json:"cancelled"`
	Completed int   `json:"completed"`
	Revenue   int64 `json:"revenue"` // sum of confirmed and completed totals
}
