package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/locvowork/employee_directory/internal/repository/builder"
)

var employeeColumns = []string{
	"id", "cv_partner_user_id", "cv_partner_cv_id", "name", "email", "telephone",
	"office_name", "image_url", "image_thumb_url", "start_date", "end_date",
	"competencies", "created_at", "updated_at",
}

const uniqueViolation = "23505"

const dateLayout = "2006-01-02"

type employeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository creates a new instance of EmployeeRepository
func NewEmployeeRepository(db *sqlx.DB) domain.EmployeeRepository {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) UpsertFromSource(ctx context.Context, e *domain.Employee) (domain.UpsertResult, error) {
	res, err := r.upsert(ctx, e)
	if isUniqueViolation(err) {
		// another writer inserted the same email between our lookup and insert;
		// the second attempt finds the row and updates it
		res, err = r.upsert(ctx, e)
	}
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("%w: upsert %s: %w", domain.ErrPersistence, e.Email, err)
	}
	e.ID = res.ID
	return res, nil
}

func (r *employeeRepository) upsert(ctx context.Context, e *domain.Employee) (domain.UpsertResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing struct {
		ID       uuid.UUID `db:"id"`
		ImageURL string    `db:"image_url"`
	}
	query, args := builder.NewSQLBuilder().
		Select("id", "image_url").
		From("employees").
		Where("email = ?", e.Email).
		Suffix("FOR UPDATE").
		Build()

	var res domain.UpsertResult
	err = tx.GetContext(ctx, &existing, query, args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res = domain.UpsertResult{ID: uuid.New(), Created: true}
		if err := insertEmployee(ctx, tx, res.ID, e); err != nil {
			return domain.UpsertResult{}, err
		}
	case err != nil:
		return domain.UpsertResult{}, fmt.Errorf("failed to look up employee: %w", err)
	default:
		res = domain.UpsertResult{ID: existing.ID, PreviousImageURL: existing.ImageURL}
		if err := updateEmployee(ctx, tx, existing.ID, e); err != nil {
			return domain.UpsertResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.UpsertResult{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return res, nil
}

func insertEmployee(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, e *domain.Employee) error {
	query, args := builder.NewSQLBuilder().
		Insert("employees",
			"id", "cv_partner_user_id", "cv_partner_cv_id", "name", "email", "telephone",
			"office_name", "image_url", "image_thumb_url", "start_date", "end_date", "competencies").
		Values(id, e.CvPartnerUserID, e.CvPartnerCvID, e.Name, e.Email, e.Telephone,
			e.OfficeName, e.ImageURL, e.ImageThumbURL, e.StartDate, e.EndDate, nonNil(e.Competencies)).
		Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert employee: %w", err)
	}
	return nil
}

// updateEmployee overwrites source-controlled columns only. Employment dates
// and competencies are touched only when their source reported them.
func updateEmployee(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, e *domain.Employee) error {
	b := builder.NewSQLBuilder().Update("employees").
		Set("cv_partner_user_id", e.CvPartnerUserID).
		Set("cv_partner_cv_id", e.CvPartnerCvID).
		Set("name", e.Name).
		Set("telephone", e.Telephone).
		Set("office_name", e.OfficeName).
		Set("image_url", e.ImageURL).
		Set("image_thumb_url", e.ImageThumbURL)
	if e.HasCompetencies {
		b.Set("competencies", nonNil(e.Competencies))
	}
	if e.HasEmployment {
		b.Set("start_date", e.StartDate).Set("end_date", e.EndDate)
	}
	query, args := b.SetRaw("updated_at = now()").Where("id = ?", id).Build()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update employee: %w", err)
	}
	return nil
}

func (r *employeeRepository) UpdateImageURL(ctx context.Context, id uuid.UUID, imageURL string) error {
	query, args := builder.NewSQLBuilder().Update("employees").
		Set("image_url", imageURL).
		Where("id = ?", id).
		Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: update image url: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (r *employeeRepository) ListActive(ctx context.Context, filter domain.EmployeeFilter) ([]domain.Employee, error) {
	query, args := activeQuery(filter).Build()

	var employees []domain.Employee
	if err := r.db.SelectContext(ctx, &employees, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}
	return employees, nil
}

func (r *employeeRepository) ListActiveAggregates(ctx context.Context, filter domain.EmployeeFilter) ([]domain.EmployeeAggregate, error) {
	employees, err := r.ListActive(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(employees) == 0 {
		return []domain.EmployeeAggregate{}, nil
	}

	ids := make(pq.StringArray, len(employees))
	for i, e := range employees {
		ids[i] = e.ID.String()
	}

	var contacts []domain.EmergencyContact
	if err := r.db.SelectContext(ctx, &contacts,
		`SELECT employee_id, name, phone, relation, comment
		FROM emergency_contacts WHERE employee_id = ANY($1::uuid[])`, ids); err != nil {
		return nil, fmt.Errorf("failed to load emergency contacts: %w", err)
	}
	var allergies []domain.AllergiesAndDietaryPreferences
	if err := r.db.SelectContext(ctx, &allergies,
		`SELECT employee_id, default_allergies, other_allergies, dietary_preferences, COALESCE(comment, '') AS comment
		FROM employee_allergies_and_dietary_preferences WHERE employee_id = ANY($1::uuid[])`, ids); err != nil {
		return nil, fmt.Errorf("failed to load allergies: %w", err)
	}

	contactByID := make(map[uuid.UUID]*domain.EmergencyContact, len(contacts))
	for i := range contacts {
		contactByID[contacts[i].EmployeeID] = &contacts[i]
	}
	allergiesByID := make(map[uuid.UUID]*domain.AllergiesAndDietaryPreferences, len(allergies))
	for i := range allergies {
		allergiesByID[allergies[i].EmployeeID] = &allergies[i]
	}

	out := make([]domain.EmployeeAggregate, len(employees))
	for i, e := range employees {
		out[i] = domain.EmployeeAggregate{
			Employee:                       e,
			EmergencyContact:               contactByID[e.ID],
			AllergiesAndDietaryPreferences: allergiesByID[e.ID],
		}
	}
	return out, nil
}

func activeQuery(filter domain.EmployeeFilter) *builder.SQLBuilder {
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}

	b := builder.NewSQLBuilder().
		Select(employeeColumns...).
		From("employees").
		WhereGroup(func(g *builder.SQLBuilder) *builder.SQLBuilder {
			// the last working day still counts as active
			return g.Where("end_date IS NULL").Or("end_date >= ?", now.Format(dateLayout))
		})
	if filter.Country != "" {
		b.Where("email LIKE ?", "%."+escapeLike(filter.Country))
	}
	b.OrderBy("name ASC").OrderBy("email ASC")
	if filter.Limit > 0 {
		b.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		b.Offset(filter.Offset)
	}
	return b
}

func (r *employeeRepository) FindByAliasAndCountry(ctx context.Context, alias, country string) ([]domain.Employee, error) {
	pattern := escapeLike(alias) + "@%." + escapeLike(country)
	query, args := builder.NewSQLBuilder().
		Select(employeeColumns...).
		From("employees").
		Where("email LIKE ?", pattern).
		OrderBy("email ASC").
		Build()

	var employees []domain.Employee
	if err := r.db.SelectContext(ctx, &employees, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find employee by alias: %w", err)
	}
	return employees, nil
}

func (r *employeeRepository) GetAggregate(ctx context.Context, id uuid.UUID) (*domain.EmployeeAggregate, error) {
	query, args := builder.NewSQLBuilder().
		Select(employeeColumns...).
		From("employees").
		Where("id = ?", id).
		Build()

	var agg domain.EmployeeAggregate
	if err := r.db.GetContext(ctx, &agg.Employee, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	var contact domain.EmergencyContact
	err := r.db.GetContext(ctx, &contact,
		`SELECT employee_id, name, phone, relation, comment FROM emergency_contacts WHERE employee_id = $1`, id)
	switch {
	case err == nil:
		agg.EmergencyContact = &contact
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to get emergency contact: %w", err)
	}

	var allergies domain.AllergiesAndDietaryPreferences
	err = r.db.GetContext(ctx, &allergies,
		`SELECT employee_id, default_allergies, other_allergies, dietary_preferences, COALESCE(comment, '') AS comment
		FROM employee_allergies_and_dietary_preferences WHERE employee_id = $1`, id)
	switch {
	case err == nil:
		agg.AllergiesAndDietaryPreferences = &allergies
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to get allergies: %w", err)
	}

	return &agg, nil
}

func (r *employeeRepository) ListCompetencies(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.SelectContext(ctx, &out, `
		SELECT DISTINCT unnest(competencies) AS competency
		FROM employees
		WHERE end_date IS NULL OR end_date >= CURRENT_DATE
		ORDER BY competency
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list competencies: %w", err)
	}
	return out, nil
}

func (r *employeeRepository) UpsertEmergencyContact(ctx context.Context, c *domain.EmergencyContact) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO emergency_contacts (employee_id, name, phone, relation, comment)
		VALUES (:employee_id, :name, :phone, :relation, :comment)
		ON CONFLICT (employee_id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			relation = EXCLUDED.relation,
			comment = EXCLUDED.comment
	`, c)
	if err != nil {
		return fmt.Errorf("%w: save emergency contact: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (r *employeeRepository) UpsertAllergiesAndDietaryPreferences(ctx context.Context, a *domain.AllergiesAndDietaryPreferences) error {
	row := *a
	row.DefaultAllergies = nonNil(a.DefaultAllergies)
	row.OtherAllergies = nonNil(a.OtherAllergies)
	row.DietaryPreferences = nonNil(a.DietaryPreferences)

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO employee_allergies_and_dietary_preferences
			(employee_id, default_allergies, other_allergies, dietary_preferences, comment)
		VALUES (:employee_id, :default_allergies, :other_allergies, :dietary_preferences, NULLIF(:comment, ''))
		ON CONFLICT (employee_id) DO UPDATE SET
			default_allergies = EXCLUDED.default_allergies,
			other_allergies = EXCLUDED.other_allergies,
			dietary_preferences = EXCLUDED.dietary_preferences,
			comment = EXCLUDED.comment
	`, &row)
	if err != nil {
		return fmt.Errorf("%w: save allergies and dietary preferences: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (r *employeeRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nonNil(a pq.StringArray) pq.StringArray {
	if a == nil {
		return pq.StringArray{}
	}
	return a
}
