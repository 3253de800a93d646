package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nekogravitycat/court-booking-engine/internal/db"
)

// Repository is the durable booking store and the source of truth for conflicts.
type Repository interface {
	// Create inserts a booking and fills in its ID and timestamps.
	// It returns ErrConflict if the store rejects an overlapping active booking.
	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)

	// UpdateStatus sets the status of a booking whose current status is one of from.
	// It returns ErrInvalidState if the booking exists but its status changed meanwhile.
	UpdateStatus(ctx context.Context, id string, status Status, from ...Status) (*Booking, error)

	// FindOverlapping returns the bookings on the court with one of the given statuses whose
	// interval overlaps [start, end). excludeBookingID is ignored when empty.
	FindOverlapping(ctx context.Context, resourceID string, start, end time.Time, statuses []Status, excludeBookingID string) ([]*Booking, error)

	Stats(ctx context.Context, filter StatsFilter) (*Stats, error)
}

type pgxRepository struct {
	pool db.Querier
}

func NewPgxRepository(pool db.Querier) Repository {
	return &pgxRepository{pool: pool}
}

const facilityIDExpr = "(SELECT c.facility_id FROM public.courts c WHERE c.id = b.resource_id)"

var bookingColumns = []string{
	"b.id", "b.resource_id", facilityIDExpr, "b.user_id",
	"b.start_time", "b.end_time", "b.duration_hours", "b.unit_price", "b.total_price",
	"b.status", "b.payment_status", "b.created_at", "b.updated_at",
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var status, payment string
	if err := row.Scan(
		&b.ID, &b.ResourceID, &b.FacilityID, &b.UserID,
		&b.StartTime, &b.EndTime, &b.DurationHours, &b.UnitPrice, &b.TotalPrice,
		&status, &payment, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Status = Status(status)
	b.PaymentStatus = PaymentStatus(payment)
	return &b, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *pgxRepository) Create(ctx context.Context, b *Booking) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.bookings").
		Columns(
			"resource_id", "user_id", "start_time", "end_time",
			"duration_hours", "unit_price", "total_price", "status", "payment_status",
		).
		Values(
			b.ResourceID, b.UserID, b.StartTime, b.EndTime,
			b.DurationHours, b.UnitPrice, b.TotalPrice, string(b.Status), string(b.PaymentStatus),
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ExclusionViolation {
			return ErrConflict
		}
		return fmt.Errorf("create booking failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings b").
		Where(squirrel.Eq{"b.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) UpdateStatus(ctx context.Context, id string, status Status, from ...Status) (*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	update := psql.Update("public.bookings b").
		Set("status", string(status)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"b.id": id})
	if len(from) > 0 {
		update = update.Where(squirrel.Eq{"b.status": statusStrings(from)})
	}

	query, args, err := update.Suffix("RETURNING " + strings.Join(bookingColumns, ", ")).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update booking status query failed: %w", err)
	}

	b, err := scanBooking(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if len(from) > 0 {
				return nil, ErrInvalidState
			}
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update booking status failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) FindOverlapping(ctx context.Context, resourceID string, start, end time.Time, statuses []Status, excludeBookingID string) ([]*Booking, error) {
	// Overlap of half-open intervals: existing.start < end AND existing.end > start
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(bookingColumns...).
		From("public.bookings b").
		Where(squirrel.Eq{"b.resource_id": resourceID}).
		Where(squirrel.Eq{"b.status": statusStrings(statuses)}).
		Where(squirrel.Lt{"b.start_time": end}).
		Where(squirrel.Gt{"b.end_time": start})

	if excludeBookingID != "" {
		query = query.Where(squirrel.NotEq{"b.id": excludeBookingID})
	}

	sql, args, err := query.OrderBy("b.start_time ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find overlapping query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("find overlapping bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find overlapping bookings failed: %w", err)
	}
	return bookings, nil
}

func (r *pgxRepository) Stats(ctx context.Context, filter StatsFilter) (*Stats, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(
		"count(*)",
		"count(*) FILTER (WHERE b.status = 'pending')",
		"count(*) FILTER (WHERE b.status = 'confirmed')",
		"count(*) FILTER (WHERE b.status = 'cancelled')",
		"count(*) FILTER (WHERE b.status = 'completed')",
		"COALESCE(SUM(b.total_price) FILTER (WHERE b.status IN ('confirmed', 'completed')), 0)::bigint",
	).
		From("public.bookings b").
		Join("public.courts c ON b.resource_id = c.id")

	if filter.FacilityID != "" {
		query = query.Where(squirrel.Eq{"c.facility_id": filter.FacilityID})
	}
	if !filter.From.IsZero() {
		query = query.Where(squirrel.GtOrEq{"b.start_time": filter.From})
	}
	if !filter.To.IsZero() {
		query = query.Where(squirrel.Lt{"b.start_time": filter.To})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build booking stats query failed: %w", err)
	}

	var s Stats
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(
		&s.Total, &s.Pending, &s.Confirmed, &s.Cancelled, &s.Completed, &s.Revenue,
	); err != nil {
		return nil, fmt.Errorf("booking stats failed: %w", err)
	}
	return &s, nil
}
