package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

const lookupSQL = "SELECT id, image_url FROM employees WHERE email = $1 FOR UPDATE"

func sourceEmployee() *domain.Employee {
	return &domain.Employee{
		CvPartnerUserID: "u1",
		Name:            "Kari Nordmann",
		Email:           "test@company.no",
		Telephone:       "11223344",
		OfficeName:      "Oslo",
		ImageURL:        "http://images/u1.png",
		Competencies:    pq.StringArray{"Go"},
		HasCompetencies: true,
	}
}

func TestUpsertFromSourceInsertsNewEmployee(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmployeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lookupSQL)).
		WithArgs("test@company.no").
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_url"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO employees (id, cv_partner_user_id, cv_partner_cv_id, name, email")).
		WithArgs(anyArgs(12)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e := sourceEmployee()
	res, err := repo.UpsertFromSource(context.Background(), e)
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.NotEqual(t, uuid.Nil, res.ID)
	assert.Equal(t, res.ID, e.ID)
	assert.Empty(t, res.PreviousImageURL)
}

func TestUpsertFromSourceUpdatesExistingEmployee(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmployeeRepository(db)
	existingID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lookupSQL)).
		WithArgs("test@company.no").
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_url"}).AddRow(existingID.String(), "http://old.png"))
	// no statement may touch emergency_contacts or allergies
	mock.ExpectExec(regexp.QuoteMeta("UPDATE employees SET cv_partner_user_id = $1, cv_partner_cv_id = $2, name = $3")).
		WithArgs(append(anyArgs(8), existingID)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.UpsertFromSource(context.Background(), sourceEmployee())
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, existingID, res.ID)
	assert.Equal(t, "http://old.png", res.PreviousImageURL)
}

func TestUpsertFromSourceWritesEmploymentDatesWhenKnown(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmployeeRepository(db)
	existingID := uuid.New()
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lookupSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_url"}).AddRow(existingID.String(), ""))
	mock.ExpectExec(regexp.QuoteMeta("start_date = $9, end_date = $10, updated_at = now() WHERE id = $11")).
		WithArgs(append(anyArgs(10), existingID)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e := sourceEmployee()
	e.HasEmployment = true
	e.EndDate = &end
	_, err := repo.UpsertFromSource(context.Background(), e)
	require.NoError(t, err)
}

func TestUpsertFromSourceKeepsCompetenciesWithoutCv(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmployeeRepository(db)
	existingID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lookupSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_url"}).AddRow(existingID.String(), ""))
	mock.ExpectExec(regexp.QuoteMeta("image_thumb_url = $7, updated_at = now() WHERE id = $8")).
		WithArgs(append(anyArgs(7), existingID)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e := sourceEmployee()
	e.HasCompetencies = false
	_, err := repo.UpsertFromSource(context.Background(), e)
	require.NoError(t, err)
}

func TestUpsertFromSourceRetriesUniqueViolationAsUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmployeeRepository(db)
	winnerID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lookupSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_url"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO employees")).
		WithArgs(anyArgs(12)...).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lookupSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_url"}).AddRow(winnerID.String(), ""))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE employees SET")).
		WithArgs(append(anyArgs(8), winnerID)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.UpsertFromSource(context.Background(), sourceEmployee())
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, winnerID, res.ID)
}

func TestUpsertFromSourceWrapsPersistenceErrors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmployeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lookupSQL)).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.UpsertFromSource(context.Background(), sourceEmployee())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Contains(t, err.Error(), "test@company.no")
}

func TestUpdateImageURL(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmployeeRepository(db)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE employees SET image_url = $1 WHERE id = $2")).
		WithArgs("http://localhost:8080/images/x.png", id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateImageURL(context.Background(), id, "http://localhost:8080/images/x.png"))
}

func TestListActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmployeeRepository(db)
	now := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM employees WHERE (end_date IS NULL OR end_date >= $1) AND email LIKE $2 ORDER BY name ASC, email ASC")).
		WithArgs("2024-01-01", `%.n\_o`).
		WillReturnRows(sqlmock.NewRows(employeeColumns).
			AddRow(uuid.NewString(), "u1", "", "Anne", "anne@company.no", "", "Oslo", "", "", nil, nil, "{}", now, now).
			AddRow(uuid.NewString(), "u2", "", "Bjørn", "bjorn@company.no", "", "Oslo", "", "", nil, nil, "{Go,SQL}", now, now))

	employees, err := repo.ListActive(context.Background(), domain.EmployeeFilter{Country: "n_o", Now: now})
	require.NoError(t, err)
	require.Len(t, employees, 2)
	assert.Equal(t, "Anne", employees[0].Name)
	assert.Equal(t, pq.StringArray{"Go", "SQL"}, employees[1].Competencies)
}

func TestFindByAliasAndCountryEscapesWildcards(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmployeeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM employees WHERE email LIKE $1 ORDER BY email ASC")).
		WithArgs(`te\%st@%.no`).
		WillReturnRows(sqlmock.NewRows(employeeColumns))

	employees, err := repo.FindByAliasAndCountry(context.Background(), "te%st", "no")
	require.NoError(t, err)
	assert.Empty(t, employees)
}

func TestGetAggregate(t *testing.T) {
	now := time.Now()

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewEmployeeRepository(db)
		id := uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta("FROM employees WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(employeeColumns))

		_, err := repo.GetAggregate(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("loads sub-records explicitly", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewEmployeeRepository(db)
		id := uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta("FROM employees WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(employeeColumns).
				AddRow(id.String(), "u1", "cv1", "Kari", "test@company.no", "", "Oslo", "", "", nil, nil, "{}", now, now))
		mock.ExpectQuery(regexp.QuoteMeta("FROM emergency_contacts WHERE employee_id = $1")).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"employee_id", "name", "phone", "relation", "comment"}))
		mock.ExpectQuery(regexp.QuoteMeta("FROM employee_allergies_and_dietary_preferences WHERE employee_id = $1")).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"employee_id", "default_allergies", "other_allergies", "dietary_preferences", "comment"}).
				AddRow(id.String(), "{MILK,GLUTEN}", "{apple}", "{VEGAN}", ""))

		agg, err := repo.GetAggregate(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "Kari", agg.Employee.Name)
		assert.Nil(t, agg.EmergencyContact)
		require.NotNil(t, agg.AllergiesAndDietaryPreferences)
		assert.Equal(t, pq.StringArray{"MILK", "GLUTEN"}, agg.AllergiesAndDietaryPreferences.DefaultAllergies)
	})
}

func TestUpsertAllergiesAndDietaryPreferencesStoresEmptyLists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmployeeRepository(db)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO employee_allergies_and_dietary_preferences")).
		WithArgs(id, `{"EGG"}`, "{}", "{}", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertAllergiesAndDietaryPreferences(context.Background(), &domain.AllergiesAndDietaryPreferences{
		EmployeeID:       id,
		DefaultAllergies: pq.StringArray{"EGG"},
	})
	require.NoError(t, err)
}

func TestUpsertEmergencyContact(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmployeeRepository(db)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (employee_id) DO UPDATE SET")).
		WithArgs(id, "Kari Nordmann", "11223344", "", "").
		WillReturnError(errors.New("boom"))

	err := repo.UpsertEmergencyContact(context.Background(), &domain.EmergencyContact{
		EmployeeID: id,
		Name:       "Kari Nordmann",
		Phone:      "11223344",
	})
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\%b\_c\\d`, escapeLike(`a%b_c\d`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

func TestListCompetencies(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmployeeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE end_date IS NULL OR end_date >= CURRENT_DATE")).
		WillReturnRows(sqlmock.NewRows([]string{"competency"}).AddRow("Go").AddRow("Kotlin"))

	got, err := repo.ListCompetencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Kotlin"}, got)
}

func TestPing(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer raw.Close()
	repo := NewEmployeeRepository(sqlx.NewDb(raw, "postgres"))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, repo.Ping(context.Background()))

	mock.ExpectPing()
	assert.NoError(t, repo.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
