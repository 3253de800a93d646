package court

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/nekogravitycat/court-booking-engine/internal/db"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Court, error)
	// ListActiveByFacility returns the active courts of a facility ordered by name.
	ListActiveByFacility(ctx context.Context, facilityID string) ([]*Court, error)
}

type pgxRepository struct {
	pool db.Querier
}

func NewPgxRepository(pool db.Querier) Repository {
	return &pgxRepository{pool: pool}
}

var courtColumns = []string{
	"c.id", "c.facility_id", "f.operator_id", "c.name",
	"to_char(c.open_time, 'HH24:MI:SS')", "to_char(c.close_time, 'HH24:MI:SS')",
	"c.price_per_hour", "c.is_active", "c.created_at",
}

func scanCourt(row pgx.Row) (*Court, error) {
	var c Court
	err := row.Scan(
		&c.ID, &c.FacilityID, &c.OperatorID, &c.Name,
		&c.OpenTime, &c.CloseTime,
		&c.PricePerHour, &c.IsActive, &c.CreatedAt,
	)
	return &c, err
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Court, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(courtColumns...).
		From("public.courts c").
		Join("public.facilities f ON c.facility_id = f.id").
		Where(squirrel.Eq{"c.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get court query failed: %w", err)
	}

	c, err := scanCourt(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get court failed: %w", err)
	}
	return c, nil
}

func (r *pgxRepository) ListActiveByFacility(ctx context.Context, facilityID string) ([]*Court, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(courtColumns...).
		From("public.courts c").
		Join("public.facilities f ON c.facility_id = f.id").
		Where(squirrel.Eq{"c.facility_id": facilityID, "c.is_active": true}).
		OrderBy("c.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list courts query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list courts failed: %w", err)
	}
	defer rows.Close()

	var courts []*Court
	for rows.Next() {
		c, err := scanCourt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan court failed: %w", err)
		}
		courts = append(courts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list courts failed: %w", err)
	}
	return courts, nil
}
