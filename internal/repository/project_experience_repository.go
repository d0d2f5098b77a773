package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/locvowork/employee_directory/internal/repository/builder"
)

type projectExperienceRepository struct {
	db *sqlx.DB
}

// NewProjectExperienceRepository creates a new instance of ProjectExperienceRepository
func NewProjectExperienceRepository(db *sqlx.DB) domain.ProjectExperienceRepository {
	return &projectExperienceRepository{db: db}
}

func (r *projectExperienceRepository) SyncForEmployee(ctx context.Context, email string, experiences []domain.ProjectExperience, syncedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	expStmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO project_experiences
			(id, employee_email, title, description, customer, competencies,
			 month_from, year_from, month_to, year_to, last_synced)
		VALUES
			(:id, :employee_email, :title, :description, :customer, :competencies,
			 :month_from, :year_from, :month_to, :year_to, :last_synced)
		ON CONFLICT (id) DO UPDATE SET
			employee_email = EXCLUDED.employee_email,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			customer = EXCLUDED.customer,
			competencies = EXCLUDED.competencies,
			month_from = EXCLUDED.month_from,
			year_from = EXCLUDED.year_from,
			month_to = EXCLUDED.month_to,
			year_to = EXCLUDED.year_to,
			last_synced = EXCLUDED.last_synced
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare experience statement: %w", err)
	}
	defer expStmt.Close()

	roleStmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO project_experience_roles (id, project_experience_id, title, description, last_synced)
		VALUES (:id, :project_experience_id, :title, :description, :last_synced)
		ON CONFLICT (id) DO UPDATE SET
			project_experience_id = EXCLUDED.project_experience_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			last_synced = EXCLUDED.last_synced
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare role statement: %w", err)
	}
	defer roleStmt.Close()

	for _, exp := range experiences {
		exp.EmployeeEmail = email
		exp.LastSynced = syncedAt
		exp.Competencies = nonNil(exp.Competencies)
		if _, err := expStmt.ExecContext(ctx, exp); err != nil {
			return fmt.Errorf("failed to save project experience %s: %w", exp.ID, err)
		}
		for _, role := range exp.Roles {
			role.ProjectExperienceID = exp.ID
			role.LastSynced = syncedAt
			if _, err := roleStmt.ExecContext(ctx, role); err != nil {
				return fmt.Errorf("failed to save role %s: %w", role.ID, err)
			}
		}
	}

	// roles of experiences that survive but dropped a role
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM project_experience_roles r
		USING project_experiences p
		WHERE r.project_experience_id = p.id AND p.employee_email = $1 AND r.last_synced < $2
	`, email, syncedAt); err != nil {
		return fmt.Errorf("failed to prune roles: %w", err)
	}

	query, args := builder.NewSQLBuilder().
		Delete("project_experiences").
		Where("employee_email = ?", email).
		Where("last_synced < ?", syncedAt).
		Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to prune project experiences: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *projectExperienceRepository) ListByEmail(ctx context.Context, email string) ([]domain.ProjectExperience, error) {
	query, args := builder.NewSQLBuilder().
		Select("id", "employee_email", "title", "description", "customer", "competencies",
			"month_from", "year_from", "month_to", "year_to", "last_synced").
		From("project_experiences").
		Where("employee_email = ?", email).
		OrderBy("year_from DESC").
		OrderBy("month_from DESC").
		OrderBy("id ASC").
		Build()

	var experiences []domain.ProjectExperience
	if err := r.db.SelectContext(ctx, &experiences, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list project experiences: %w", err)
	}
	if len(experiences) == 0 {
		return []domain.ProjectExperience{}, nil
	}

	ids := make(pq.StringArray, len(experiences))
	index := make(map[string]int, len(experiences))
	for i, e := range experiences {
		ids[i] = e.ID
		index[e.ID] = i
		experiences[i].Roles = []domain.ProjectExperienceRole{}
	}

	var roles []domain.ProjectExperienceRole
	if err := r.db.SelectContext(ctx, &roles, `
		SELECT id, project_experience_id, title, description, last_synced
		FROM project_experience_roles
		WHERE project_experience_id = ANY($1)
		ORDER BY id
	`, ids); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	for _, role := range roles {
		i := index[role.ProjectExperienceID]
		experiences[i].Roles = append(experiences[i].Roles, role)
	}

	return experiences, nil
}
