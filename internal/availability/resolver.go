// Package availability answers "is this window free" questions by combining
// the conflict cache with authoritative booking store queries.
package availability

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nekogravitycat/court-booking-engine/internal/booking"
	"github.com/nekogravitycat/court-booking-engine/internal/conflictcache"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/obs"
)

const (
	DefaultStride      = 30 * time.Minute
	DefaultConcurrency = 8
)

// OverlapFinder is the part of the booking store the resolver reads.
type OverlapFinder interface {
	FindOverlapping(ctx context.Context, resourceID string, start, end time.Time, statuses []booking.Status, excludeBookingID string) ([]*booking.Booking, error)
}

type Options struct {
	// Stride is the distance between consecutive candidate slot starts.
	Stride time.Duration
	// Concurrency bounds the parallel per-court checks of a bulk query.
	Concurrency int
	Now         func() time.Time
}

type Resolver struct {
	store   OverlapFinder
	courts  court.Repository
	cache   *conflictcache.Cache
	metrics *obs.Metrics
	tracer  trace.Tracer

	stride      time.Duration
	concurrency int
	now         func() time.Time
}

var _ booking.ConflictChecker = (*Resolver)(nil)

// NewResolver creates a resolver. cache may be nil, in which case every check goes to the store.
func NewResolver(store OverlapFinder, courts court.Repository, cache *conflictcache.Cache, opts Options, metrics *obs.Metrics) *Resolver {
	r := &Resolver{
		store:       store,
		courts:      courts,
		cache:       cache,
		metrics:     metrics,
		tracer:      obs.Tracer(),
		stride:      opts.Stride,
		concurrency: opts.Concurrency,
		now:         opts.Now,
	}
	if r.stride <= 0 {
		r.stride = DefaultStride
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultConcurrency
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// CheckBookingConflicts reports whether [start, end) on the court overlaps an active booking.
//
// The cache is consulted first, but the store decides: a cache hit the store
// does not confirm is cleared, and a cache miss is still verified. If either
// lookup fails the window is reported as conflicting with Unverified set.
// Windows longer than booking.MaxWindow are refused without a lookup, with Err set.
func (r *Resolver) CheckBookingConflicts(ctx context.Context, resourceID string, start, end time.Time, excludeBookingID string) booking.ConflictResult {
	if err := booking.ValidateWindow(start, end); err != nil {
		r.metrics.ConflictCheck("rejected")
		return booking.ConflictResult{HasConflict: true, Unverified: true, Err: err}
	}

	cached := false
	if r.cache != nil {
		hit, err := r.cache.CheckConflict(ctx, resourceID, start, end)
		if err != nil {
			return r.unverified(resourceID, start, end, err)
		}
		cached = hit
	}

	conflicts, err := r.store.FindOverlapping(ctx, resourceID, start, end, booking.ActiveStatuses, excludeBookingID)
	if err != nil {
		return r.unverified(resourceID, start, end, err)
	}

	if len(conflicts) > 0 {
		r.metrics.ConflictCheck("conflict")
		return booking.ConflictResult{HasConflict: true, Conflicts: conflicts}
	}

	// The excluded booking may own the cached keys legitimately, so leave them alone.
	if cached && excludeBookingID == "" {
		cleared, err := r.cache.ClearStale(ctx, resourceID, start, end)
		if err != nil {
			log.Printf("availability: clear stale conflict keys for %s failed: %v", resourceID, err)
		} else {
			log.Printf("availability: cleared %d stale conflict keys for %s [%s, %s)",
				cleared, resourceID, start.Format(time.RFC3339), end.Format(time.RFC3339))
		}
		r.metrics.ConflictCheck("self_healed")
		return booking.ConflictResult{}
	}

	r.metrics.ConflictCheck("free")
	return booking.ConflictResult{}
}

func (r *Resolver) unverified(resourceID string, start, end time.Time, err error) booking.ConflictResult {
	log.Printf("availability: conflict check for %s [%s, %s) failed, denying: %v",
		resourceID, start.Format(time.RFC3339), end.Format(time.RFC3339), err)
	r.metrics.ConflictCheck("unverified")
	return booking.ConflictResult{HasConflict: true, Unverified: true}
}

// loadCourt returns an active court or booking.ErrResourceNotFound.
func (r *Resolver) loadCourt(ctx context.Context, resourceID string) (*court.Court, error) {
	c, err := r.courts.GetByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, court.ErrNotFound) {
			return nil, booking.ErrResourceNotFound
		}
		return nil, fmt.Errorf("load court: %w: %w", booking.ErrUpstream, err)
	}
	if !c.IsActive {
		return nil, booking.ErrResourceNotFound
	}
	return c, nil
}

// GetAvailableSlots lists every window of the given duration that starts on a
// stride boundary from opening time and ends by closing time on date.
// A slot is available if it is in the future and overlaps no active booking.
func (r *Resolver) GetAvailableSlots(ctx context.Context, resourceID string, date time.Time, duration time.Duration) ([]Slot, error) {
	ctx, span := r.tracer.Start(ctx, "availability.GetAvailableSlots", trace.WithAttributes(
		attribute.String("court.id", resourceID),
		attribute.String("slot.date", date.Format(time.DateOnly)),
	))
	defer span.End()

	if duration <= 0 || duration > 24*time.Hour {
		return nil, ErrInvalidDuration
	}

	c, err := r.loadCourt(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	open, closing, err := c.HoursOn(date)
	if err != nil {
		return nil, fmt.Errorf("court %s: %w", c.ID, err)
	}

	var slots []Slot
	for t := open; !t.Add(duration).After(closing); t = t.Add(r.stride) {
		slots = append(slots, Slot{StartTime: t, EndTime: t.Add(duration)})
	}
	if len(slots) == 0 {
		return slots, nil
	}

	// One query covers the whole day; each slot is then checked with the overlap predicate.
	bookings, err := r.store.FindOverlapping(ctx, resourceID, open, closing, booking.ActiveStatuses, "")
	if err != nil {
		log.Printf("availability: load bookings of %s on %s failed, reporting no slots free: %v",
			resourceID, date.Format(time.DateOnly), err)
		r.metrics.ConflictCheck("unverified")
		return slots, nil
	}

	now := r.now()
	for i := range slots {
		s := &slots[i]
		s.Available = !s.StartTime.Before(now) && !overlapsAny(bookings, s.StartTime, s.EndTime)
	}
	return slots, nil
}

func overlapsAny(bookings []*booking.Booking, start, end time.Time) bool {
	for _, b := range bookings {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// CheckBulkAvailability checks the window between startClock and endClock on
// date for every active court of a facility, in parallel. Results keep the
// court listing order.
func (r *Resolver) CheckBulkAvailability(ctx context.Context, facilityID string, date time.Time, startClock, endClock string) ([]CourtAvailability, error) {
	ctx, span := r.tracer.Start(ctx, "availability.CheckBulkAvailability", trace.WithAttributes(
		attribute.String("facility.id", facilityID),
	))
	defer span.End()

	from, err := court.ParseClock(startClock)
	if err != nil {
		return nil, ErrInvalidClock
	}
	to, err := court.ParseClock(endClock)
	if err != nil {
		return nil, ErrInvalidClock
	}
	if to <= from {
		return nil, booking.ErrInvalidTimeRange
	}
	start, end := court.At(date, from), court.At(date, to)

	courts, err := r.courts.ListActiveByFacility(ctx, facilityID)
	if err != nil {
		return nil, fmt.Errorf("list courts: %w: %w", booking.ErrUpstream, err)
	}
	span.SetAttributes(attribute.Int("facility.courts", len(courts)))

	results := make([]CourtAvailability, len(courts))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, c := range courts {
		results[i].Court = c
		if !c.Covers(start, end) {
			results[i].Reason = ReasonClosed
			continue
		}
		g.Go(func() error {
			res := r.CheckBookingConflicts(ctx, c.ID, start, end, "")
			results[i].Available = !res.HasConflict
			results[i].Conflicts = res.Conflicts
			switch {
			case res.Unverified:
				results[i].Reason = ReasonUnverified
			case res.HasConflict:
				results[i].Reason = ReasonBooked
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
