package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/segment-cli/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateRun(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), "transactions.csv", 4, int64(42), "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "transactions.csv", 4, 42)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("complete", 1000, 0.82, pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.CompleteRun(context.Background(), "run-1", 1000, 0.82))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("complete", 0, 0.0, pgxmock.AnyArg(), "absent").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "absent", 0, 0)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestPostgres_FailRun(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("failed", "boom", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FailRun(context.Background(), "run-1", "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func runColumns() []string {
	return []string{"id", "input", "k", "seed", "status", "customers", "ratio", "error", "created_at", "updated_at"}
}

func TestPostgres_GetRun(t *testing.T) {
	s, mock := newMockPostgres(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, input, k, seed, status").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns()).
			AddRow("run-1", "transactions.csv", 4, int64(42), "complete", 1000, 0.82, "", now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 1000, run.Customers)
	assert.InDelta(t, 0.82, run.Ratio, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT id, input, k, seed, status").
		WithArgs("absent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "absent")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestPostgres_ListRuns(t *testing.T) {
	s, mock := newMockPostgres(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, input, k, seed, status").
		WithArgs("complete", 5).
		WillReturnRows(pgxmock.NewRows(runColumns()).
			AddRow("run-2", "b.csv", 4, int64(2), "complete", 50, 0.7, "", now, now).
			AddRow("run-1", "a.csv", 4, int64(1), "complete", 40, 0.6, "", now.Add(-time.Hour), now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete, Limit: 5})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, model.RunStatusComplete, runs[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveCustomers(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectCopyFrom(pgx.Identifier{"customers"}, customerColumns).
		WillReturnResult(2)

	age := 34.0
	customers := []model.Customer{
		{ID: "C1", Age: &age, RFMScore: 3.33, RFMLevel: "433", Segment: model.SegmentPotentialLoyalists, Cluster: 1},
		{ID: "C2", RFMScore: 1.0, RFMLevel: "111", Segment: model.SegmentHibernating, Cluster: 2},
	}
	require.NoError(t, s.SaveCustomers(context.Background(), "run-1", customers))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveCustomers_Empty(t *testing.T) {
	s, mock := newMockPostgres(t)

	// No COPY issued for an empty batch.
	require.NoError(t, s.SaveCustomers(context.Background(), "run-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveProfiles(t *testing.T) {
	s, mock := newMockPostgres(t)

	profiles := []model.ClusterProfile{
		{Cluster: 1, Count: 30},
		{Cluster: 2, Count: 20},
	}
	for range profiles {
		mock.ExpectExec("INSERT INTO cluster_profiles").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, s.SaveProfiles(context.Background(), "run-1", profiles))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveElbow(t *testing.T) {
	s, mock := newMockPostgres(t)

	curve := []model.ElbowPoint{{K: 1, WithinSS: 100}, {K: 2, WithinSS: 40}}
	for _, p := range curve {
		mock.ExpectExec("INSERT INTO elbow_points").
			WithArgs("run-1", p.K, p.WithinSS).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, s.SaveElbow(context.Background(), "run-1", curve))
	assert.NoError(t, mock.ExpectationsWereMet())
}
