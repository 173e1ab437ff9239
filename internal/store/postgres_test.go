package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-import/internal/city"
	"github.com/sells-group/crm-import/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_Companies(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, .* FROM companies ORDER BY id`).
		WillReturnRows(mock.NewRows([]string{"id", "name", "email", "phone", "city"}).
			AddRow("0001", "شركة الأمان", "", "0501234567", "الرياض").
			AddRow("0002", "شركة النور", "info@nour.sa", "", "جدة"))

	got, err := s.Companies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Company{
		{ID: "0001", Name: "شركة الأمان", Phone: "0501234567", City: "الرياض"},
		{ID: "0002", Name: "شركة النور", Email: "info@nour.sa", City: "جدة"},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Companies_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM companies`).WillReturnError(fmt.Errorf("connection reset"))

	_, err := s.Companies(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list companies")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Branches(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM branches`).
		WillReturnRows(mock.NewRows([]string{"id", "company_id", "name", "city"}).
			AddRow("b1", "0001", "فرع العليا", "الرياض"))

	got, err := s.Branches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Branch{{ID: "b1", CompanyID: "0001", Name: "فرع العليا", City: "الرياض"}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddCity_New(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COALESCE\(code, ''\) FROM cities WHERE name = \$1`).
		WithArgs("تبوك").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO cities`).
		WithArgs("تبوك", "TUU").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.AddCity(context.Background(), model.City{Name: " تبوك ", Code: "tuu"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddCity_CodeTaken(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM cities WHERE name`).
		WithArgs("تبوك").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO cities`).
		WithArgs("تبوك", "RUH").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, Message: "duplicate key value"})

	err := s.AddCity(context.Background(), model.City{Name: "تبوك", Code: "RUH"})
	assert.ErrorIs(t, err, city.ErrCodeTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddCity_KnownNameOtherCode(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM cities WHERE name`).
		WithArgs("الرياض").
		WillReturnRows(mock.NewRows([]string{"code"}).AddRow("RUH"))

	err := s.AddCity(context.Background(), model.City{Name: "الرياض", Code: "RYD"})
	assert.ErrorIs(t, err, city.ErrCodeTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddCity_KnownNameNoop(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM cities WHERE name`).
		WithArgs("الرياض").
		WillReturnRows(mock.NewRows([]string{"code"}).AddRow("RUH"))

	require.NoError(t, s.AddCity(context.Background(), model.City{Name: "الرياض"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveImport_Companies(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO import_runs`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(id::int\), 0\) FROM companies`).
		WillReturnRows(mock.NewRows([]string{"max"}).AddRow(5))
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_companies"}, companyColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "companies" .* ON CONFLICT \("id"\) DO UPDATE SET`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"import_rows"}, importRowColumns).WillReturnResult(2)
	mock.ExpectCommit()

	rows := []map[string]string{
		companyRow("", "شركة أ", "جدة"),
		companyRow("0003", "شركة ب", "جدة"),
	}
	run := &model.ImportRun{Entity: model.EntityCompanies, Imported: 2}
	require.NoError(t, s.SaveImport(context.Background(), run, rows))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	assert.Equal(t, "0006", rows[0][model.KeyCompanyID])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveImport_Contracts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO import_runs`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"contracts"}, contractColumns).WillReturnResult(1)
	mock.ExpectCopyFrom(pgx.Identifier{"import_rows"}, importRowColumns).WillReturnResult(1)
	mock.ExpectCommit()

	err := s.SaveImport(context.Background(), &model.ImportRun{Entity: model.EntityContractsAdvanced}, []map[string]string{{
		model.KeyCompanyID:            "0001",
		model.KeyContractStartDate:    "01-Jan-2024",
		model.KeyContractPeriodMonths: "12",
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveImport_RunInsertFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO import_runs`).WillReturnError(fmt.Errorf("relation does not exist"))
	mock.ExpectRollback()

	err := s.SaveImport(context.Background(), &model.ImportRun{Entity: model.EntityCompanies}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert import run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListImports(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM import_runs ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(mock.NewRows([]string{"id", "entity", "source", "total_rows", "imported", "error_rows", "warning_rows", "skipped_rows", "created_at"}).
			AddRow("run-1", "branches", "b.xlsx", 10, 7, 3, 1, 2, created))

	runs, err := s.ListImports(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.ImportRun{
		ID: "run-1", Entity: model.EntityBranches, Source: "b.xlsx", TotalRows: 10,
		Imported: 7, ErrorRows: 3, WarningRows: 1, SkippedRows: 2, CreatedAt: created,
	}, runs[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS companies`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
