package court

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var courtRowColumns = []string{
	"id", "facility_id", "operator_id", "name", "open_time", "close_time",
	"price_per_hour", "is_active", "created_at",
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgxRepository(mock)
}

func TestRepositoryGetByID(t *testing.T) {
	mock, repo := newMockRepo(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN public.facilities f ON c.facility_id = f.id WHERE c.id = $1")).
		WithArgs("court-1").
		WillReturnRows(pgxmock.NewRows(courtRowColumns).
			AddRow("court-1", "fac-1", "op-1", "Court 1", "06:00:00", "22:00:00", int64(500), true, created))

	c, err := repo.GetByID(context.Background(), "court-1")
	require.NoError(t, err)
	assert.Equal(t, &Court{
		ID: "court-1", FacilityID: "fac-1", OperatorID: "op-1", Name: "Court 1",
		OpenTime: "06:00:00", CloseTime: "22:00:00", PricePerHour: 500, IsActive: true, CreatedAt: created,
	}, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM public.courts c")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryGetByIDError(t *testing.T) {
	mock, repo := newMockRepo(t)
	boom := errors.New("connection refused")
	mock.ExpectQuery(regexp.QuoteMeta("FROM public.courts c")).WillReturnError(boom)

	_, err := repo.GetByID(context.Background(), "court-1")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRepositoryListActiveByFacility(t *testing.T) {
	mock, repo := newMockRepo(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.facility_id = $1 AND c.is_active = $2 ORDER BY c.name ASC")).
		WithArgs("fac-1", true).
		WillReturnRows(pgxmock.NewRows(courtRowColumns).
			AddRow("court-1", "fac-1", "op-1", "A", "06:00:00", "22:00:00", int64(500), true, created).
			AddRow("court-2", "fac-1", "op-1", "B", "08:00:00", "20:00:00", int64(300), true, created))

	courts, err := repo.ListActiveByFacility(context.Background(), "fac-1")
	require.NoError(t, err)
	require.Len(t, courts, 2)
	assert.Equal(t, "court-1", courts[0].ID)
	assert.Equal(t, int64(300), courts[1].PricePerHour)
	assert.NoError(t, mock.ExpectationsWereMet())
}
