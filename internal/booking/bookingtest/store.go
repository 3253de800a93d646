// Package bookingtest provides in-memory stores for tests of the booking engine.
package bookingtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/court-booking-engine/internal/booking"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
)

// Store is an in-memory booking.Repository. Like the database exclusion
// constraint, Create rejects a booking that overlaps an active one on the same court.
type Store struct {
	mu       sync.Mutex
	bookings map[string]*booking.Booking
	courts   map[string]*court.Court
	now      func() time.Time

	// Err, when set, fails every call.
	Err error
	// FindErr, when set, fails FindOverlapping only.
	FindErr error
	// FindCalls counts FindOverlapping calls.
	FindCalls int
}

func NewStore() *Store {
	return &Store{
		bookings: make(map[string]*booking.Booking),
		courts:   make(map[string]*court.Court),
		now:      time.Now,
	}
}

func (s *Store) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}

func (s *Store) SetFindErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FindErr = err
}

func (s *Store) FindCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FindCalls
}

// Put stores a booking as-is, bypassing the overlap check. It assigns an ID if missing.
func (s *Store) Put(b *booking.Booking) *booking.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.FacilityID == "" {
		if c, ok := s.courts[b.ResourceID]; ok {
			b.FacilityID = c.FacilityID
		}
	}
	cp := *b
	s.bookings[b.ID] = &cp
	return b
}

// AddCourt registers a court so Stats can scope by facility and Courts can serve it.
func (s *Store) AddCourt(c *court.Court) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.courts[c.ID] = &cp
}

// All returns a copy of every stored booking, ordered by start time.
func (s *Store) All() []*booking.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*booking.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (s *Store) Create(_ context.Context, b *booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, existing := range s.bookings {
		if existing.ResourceID == b.ResourceID && existing.Status.IsActive() && existing.Overlaps(b.StartTime, b.EndTime) {
			return booking.ErrConflict
		}
	}

	b.ID = uuid.NewString()
	b.CreatedAt = s.now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, status booking.Status, from ...booking.Status) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	b, ok := s.bookings[id]
	if !ok {
		if len(from) > 0 {
			return nil, booking.ErrInvalidState
		}
		return nil, booking.ErrNotFound
	}
	if len(from) > 0 && !contains(from, b.Status) {
		return nil, booking.ErrInvalidState
	}
	b.Status = status
	b.UpdatedAt = s.now()
	cp := *b
	return &cp, nil
}

func (s *Store) FindOverlapping(_ context.Context, resourceID string, start, end time.Time, statuses []booking.Status, excludeBookingID string) ([]*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FindCalls++
	if s.Err != nil {
		return nil, s.Err
	}
	if s.FindErr != nil {
		return nil, s.FindErr
	}

	var out []*booking.Booking
	for _, b := range s.bookings {
		if b.ResourceID != resourceID || b.ID == excludeBookingID || !contains(statuses, b.Status) {
			continue
		}
		if b.Overlaps(start, end) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *Store) Stats(_ context.Context, filter booking.StatsFilter) (*booking.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	var st booking.Stats
	for _, b := range s.bookings {
		if filter.FacilityID != "" && b.FacilityID != filter.FacilityID {
			continue
		}
		if !filter.From.IsZero() && b.StartTime.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !b.StartTime.Before(filter.To) {
			continue
		}
		st.Total++
		switch b.Status {
		case booking.StatusPending:
			st.Pending++
		case booking.StatusConfirmed:
			st.Confirmed++
			st.Revenue += b.TotalPrice
		case booking.StatusCancelled:
			st.Cancelled++
		case booking.StatusCompleted:
			st.Completed++
			st.Revenue += b.TotalPrice
		}
	}
	return &st, nil
}

func contains(statuses []booking.Status, s booking.Status) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Courts is an in-memory court.Repository.
type Courts struct {
	mu     sync.Mutex
	courts map[string]*court.Court

	Err error
}

func NewCourts(courts ...*court.Court) *Courts {
	c := &Courts{courts: make(map[string]*court.Court)}
	for _, ct := range courts {
		c.Add(ct)
	}
	return c
}

func (c *Courts) Add(ct *court.Court) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *ct
	c.courts[ct.ID] = &cp
}

func (c *Courts) GetByID(_ context.Context, id string) (*court.Court, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	ct, ok := c.courts[id]
	if !ok {
		return nil, court.ErrNotFound
	}
	cp := *ct
	return &cp, nil
}

func (c *Courts) ListActiveByFacility(_ context.Context, facilityID string) ([]*court.Court, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	var out []*court.Court
	for _, ct := range c.courts {
		if ct.FacilityID == facilityID && ct.IsActive {
			cp := *ct
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Court returns an active court open 06:00-22:00 at 500 per hour.
func Court(id, facilityID, operatorID string) *court.Court {
	return &court.Court{
		ID:           id,
		FacilityID:   facilityID,
		OperatorID:   operatorID,
		Name:         fmt.Sprintf("Court %s", id),
		OpenTime:     "06:00:00",
		CloseTime:    "22:00:00",
		PricePerHour: 500,
		IsActive:     true,
	}
}
