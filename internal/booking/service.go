package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nekogravitycat/court-booking-engine/internal/conflictcache"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/events"
	"github.com/nekogravitycat/court-booking-engine/internal/kv"
	"github.com/nekogravitycat/court-booking-engine/internal/lock"
	"github.com/nekogravitycat/court-booking-engine/internal/obs"
)

const (
	DefaultCancelCutoff = 2 * time.Hour
	DefaultStatsTTL     = time.Minute

	// releaseTimeout bounds the lock release that runs after the request context may be gone.
	releaseTimeout = 3 * time.Second
)

type CreateRequest struct {
	UserID     string
	ResourceID string
	StartTime  time.Time
	EndTime    time.Time
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Booking, error)
	GetByID(ctx context.Context, id string) (*Booking, error)
	Cancel(ctx context.Context, id string, requesterID string) (*Booking, error)
	UpdateStatus(ctx context.Context, id string, status Status, actorID string, actorRole Role) (*Booking, error)
	GetBookingStats(ctx context.Context, filter StatsFilter) (*Stats, error)
}

// Dependencies are the collaborators of the booking service.
type Dependencies struct {
	Repo      Repository
	Courts    court.Repository
	Locks     *lock.Manager
	Cache     *conflictcache.Cache
	Checker   ConflictChecker
	KV        kv.Backend // stats cache
	Publisher events.Publisher
	Metrics   *obs.Metrics
}

type Options struct {
	CancelCutoff time.Duration
	StatsTTL     time.Duration
	// Location is the zone operating hours are read in. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

type service struct {
	Dependencies
	cancelCutoff time.Duration
	statsTTL     time.Duration
	loc          *time.Location
	now          func() time.Time
	tracer       trace.Tracer
}

// NewService wires the booking orchestrator. It is the only writer of lock,
// conflict cache and stats cache keys.
func NewService(deps Dependencies, opts Options) Service {
	s := &service{
		Dependencies: deps,
		cancelCutoff: opts.CancelCutoff,
		statsTTL:     opts.StatsTTL,
		loc:          opts.Location,
		now:          opts.Now,
		tracer:       obs.Tracer(),
	}
	if s.cancelCutoff <= 0 {
		s.cancelCutoff = DefaultCancelCutoff
	}
	if s.statsTTL <= 0 {
		s.statsTTL = DefaultStatsTTL
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.Publisher == nil {
		s.Publisher = events.Nop{}
	}
	return s
}

// finish records the outcome of an operation on its span and in metrics.
func (s *service) finish(span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		s.Metrics.BookingOp(op, "ok")
		return
	}
	s.Metrics.BookingOp(op, resultLabel(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrLockUnavailable):
		return "lock_unavailable"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "invalid_input"
	}
}

func upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}

func (s *service) Create(ctx context.Context, req CreateRequest) (b *Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Create", trace.WithAttributes(
		attribute.String("court.id", req.ResourceID),
		attribute.String("booking.start", req.StartTime.Format(time.RFC3339)),
		attribute.String("booking.end", req.EndTime.Format(time.RFC3339)),
	))
	defer func() { s.finish(span, "create", err) }()

	// 1. Validate Time Range
	if err := ValidateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if req.StartTime.Before(s.now()) {
		return nil, ErrStartTimePast
	}

	// 2. Lock the exact window. No retry: the caller decides whether to try again.
	token, ok, err := s.Locks.Acquire(ctx, req.ResourceID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	if !ok {
		return nil, ErrLockUnavailable
	}
	defer s.releaseLock(ctx, req.ResourceID, req.StartTime, req.EndTime, token)

	// 3. Check for Overlaps. An unverifiable check counts as a conflict.
	if res := s.Checker.CheckBookingConflicts(ctx, req.ResourceID, req.StartTime, req.EndTime, ""); res.HasConflict {
		return nil, ErrConflict
	}

	// 4. Validate Resource
	c, err := s.Courts.GetByID(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, court.ErrNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, upstream("load court", err)
	}
	if !c.IsActive {
		return nil, ErrResourceNotFound
	}
	// The same instant may arrive in any offset; hours are wall-clock times in the booking zone.
	if !c.Covers(req.StartTime.In(s.loc), req.EndTime.In(s.loc)) {
		return nil, ErrOutsideOperatingHours
	}

	// 5. Persist
	hours := req.EndTime.Sub(req.StartTime).Hours()
	b = &Booking{
		ResourceID:    req.ResourceID,
		FacilityID:    c.FacilityID,
		UserID:        req.UserID,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		DurationHours: hours,
		UnitPrice:     c.PricePerHour,
		TotalPrice:    int64(math.Round(hours * float64(c.PricePerHour))),
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
	}
	if err := s.Repo.Create(ctx, b); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrConflict
		}
		// The booking may or may not exist now; report it rather than guess.
		return nil, upstream("persist booking", err)
	}

	// 6. Best-effort side effects. The booking exists from here on.
	if err := s.Cache.CacheBooking(ctx, b.ResourceID, b.StartTime, b.EndTime, b.ID); err != nil {
		log.Printf("booking: cache write for %s failed, entry will be missing until rechecked: %v", b.ID, err)
	}
	s.invalidateStats(ctx, b.FacilityID)
	s.publish(ctx, events.BookingCreated, b, req.UserID)

	return b, nil
}

// releaseLock frees the window lock on a context detached from the request,
// so a cancelled request still releases it.
func (s *service) releaseLock(ctx context.Context, resourceID string, start, end time.Time, token string) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	released, err := s.Locks.Release(relCtx, resourceID, start, end, token)
	if err != nil {
		log.Printf("booking: release lock %s failed, it expires in %s: %v", lock.Key(resourceID, start, end), s.Locks.TTL(), err)
		return
	}
	if !released {
		log.Printf("booking: lock %s expired before release", lock.Key(resourceID, start, end))
	}
}

func (s *service) GetByID(ctx context.Context, id string) (*Booking, error) {
	b, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, upstream("load booking", err)
	}
	return b, nil
}

func (s *service) Cancel(ctx context.Context, id string, requesterID string) (b *Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Cancel", trace.WithAttributes(attribute.String("booking.id", id)))
	defer func() { s.finish(span, "cancel", err) }()

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != requesterID {
		return nil, ErrPermissionDenied
	}
	if current.Status.IsTerminal() {
		return nil, ErrInvalidState
	}
	if current.StartTime.Sub(s.now()) < s.cancelCutoff {
		return nil, ErrCancelCutoff
	}

	b, err = s.Repo.UpdateStatus(ctx, id, StatusCancelled, ActiveStatuses...)
	if err != nil {
		if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, upstream("cancel booking", err)
	}

	s.uncache(ctx, b)
	s.invalidateStats(ctx, b.FacilityID)
	s.publish(ctx, events.BookingCancelled, b, requesterID)
	return b, nil
}

func (s *service) UpdateStatus(ctx context.Context, id string, status Status, actorID string, actorRole Role) (b *Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.UpdateStatus", trace.WithAttributes(
		attribute.String("booking.id", id),
		attribute.String("booking.status", string(status)),
	))
	defer func() { s.finish(span, "update_status", err) }()

	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeOperator(ctx, current, actorID, actorRole); err != nil {
		return nil, err
	}

	if !current.Status.CanTransitionTo(status) {
		return nil, ErrInvalidState
	}

	b, err = s.Repo.UpdateStatus(ctx, id, status, current.Status)
	if err != nil {
		if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, upstream("update booking status", err)
	}

	switch status {
	case StatusCancelled:
		s.uncache(ctx, b)
	case StatusConfirmed:
		if err := s.Cache.CacheBooking(ctx, b.ResourceID, b.StartTime, b.EndTime, b.ID); err != nil {
			log.Printf("booking: cache write for %s failed: %v", b.ID, err)
		}
	}
	s.invalidateStats(ctx, b.FacilityID)
	s.publish(ctx, events.BookingStatusChanged, b, actorID)
	return b, nil
}

// authorizeOperator allows administrators and the operator of the court's facility.
func (s *service) authorizeOperator(ctx context.Context, b *Booking, actorID string, role Role) error {
	if role == RoleAdmin {
		return nil
	}
	if role != RoleOperator {
		return ErrPermissionDenied
	}

	c, err := s.Courts.GetByID(ctx, b.ResourceID)
	if err != nil {
		if errors.Is(err, court.ErrNotFound) {
			return ErrPermissionDenied
		}
		return upstream("load court", err)
	}
	if c.OperatorID != actorID {
		return ErrPermissionDenied
	}
	return nil
}

func (s *service) uncache(ctx context.Context, b *Booking) {
	if err := s.Cache.RemoveBooking(ctx, b.ResourceID, b.StartTime, b.EndTime); err != nil {
		log.Printf("booking: cache removal for %s failed, window reopens when entries expire: %v", b.ID, err)
	}
}

func (s *service) publish(ctx context.Context, typ events.Type, b *Booking, actorID string) {
	ev := events.Event{
		Type:       typ,
		BookingID:  b.ID,
		ResourceID: b.ResourceID,
		UserID:     b.UserID,
		Status:     string(b.Status),
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		ActorID:    actorID,
		OccurredAt: s.now().UTC(),
	}
	if err := s.Publisher.Publish(ctx, ev); err != nil {
		log.Printf("booking: publish %s for %s failed: %v", typ, b.ID, err)
	}
}
