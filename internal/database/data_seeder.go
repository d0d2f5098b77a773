package database

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/locvowork/employee_directory/internal/domain"
)

// EmployeeWriter is the part of the employee repository the seeder needs.
type EmployeeWriter interface {
	UpsertFromSource(ctx context.Context, e *domain.Employee) (domain.UpsertResult, error)
	UpsertEmergencyContact(ctx context.Context, c *domain.EmergencyContact) error
	UpsertAllergiesAndDietaryPreferences(ctx context.Context, a *domain.AllergiesAndDietaryPreferences) error
}

// ProjectWriter is the part of the project experience repository the seeder needs.
type ProjectWriter interface {
	SyncForEmployee(ctx context.Context, email string, experiences []domain.ProjectExperience, syncedAt time.Time) error
}

type DataSeeder struct {
	db        *sqlx.DB
	employees EmployeeWriter
	projects  ProjectWriter
	rnd       *rand.Rand
	now       time.Time
}

func NewDataSeeder(db *sqlx.DB, employees EmployeeWriter, projects ProjectWriter, seed int64) *DataSeeder {
	return &DataSeeder{
		db:        db,
		employees: employees,
		projects:  projects,
		rnd:       rand.New(rand.NewSource(seed)),
		now:       time.Now().UTC(),
	}
}

var (
	firstNames   = []string{"Kari", "Ola", "Ingrid", "Lars", "Sofie", "Erik", "Nora", "Anders", "Emma", "Jonas", "Maja", "Henrik"}
	lastNames    = []string{"Nordmann", "Hansen", "Johansen", "Olsen", "Larsen", "Andersen", "Berg", "Lund", "Svensson", "Nilsson"}
	offices      = map[string][]string{"no": {"Oslo", "Trondheim", "Bergen"}, "se": {"Stockholm", "Göteborg"}}
	competencies = []string{"Go", "Kotlin", "Java", "TypeScript", "React", "PostgreSQL", "Kubernetes", "AWS", "GCP", "Terraform"}
	customers    = []string{"Acme", "Nordic Bank", "Fjord Energy", "City Transit", "Health Region"}
	roleTitles   = []string{"Developer", "Tech Lead", "Architect", "Tester", "Scrum Master"}
	relations    = []string{"Partner", "Parent", "Sibling", "Friend"}
)

// SeedStats counts what a seeding run wrote.
type SeedStats struct {
	Employees          int
	Created            int
	EmergencyContacts  int
	Allergies          int
	ProjectExperiences int
}

// SeedData writes numEmployees fake employees through the same upsert path the
// sync uses, so running it twice updates rather than duplicates.
func (ds *DataSeeder) SeedData(ctx context.Context, numEmployees, numProjectsPerEmployee int) (SeedStats, error) {
	var stats SeedStats
	start := time.Now()

	for i := 0; i < numEmployees; i++ {
		e := ds.employee(i)
		res, err := ds.employees.UpsertFromSource(ctx, e)
		if err != nil {
			return stats, fmt.Errorf("failed to upsert %s: %w", e.Email, err)
		}
		stats.Employees++
		if res.Created {
			stats.Created++
		}

		// roughly two out of three get sub-records
		if ds.rnd.Intn(3) > 0 {
			if err := ds.employees.UpsertEmergencyContact(ctx, ds.contact(res.ID)); err != nil {
				return stats, fmt.Errorf("failed to seed emergency contact for %s: %w", e.Email, err)
			}
			stats.EmergencyContacts++
		}
		if ds.rnd.Intn(3) > 0 {
			if err := ds.employees.UpsertAllergiesAndDietaryPreferences(ctx, ds.allergies(res.ID)); err != nil {
				return stats, fmt.Errorf("failed to seed allergies for %s: %w", e.Email, err)
			}
			stats.Allergies++
		}

		experiences := ds.experiences(i, numProjectsPerEmployee)
		if err := ds.projects.SyncForEmployee(ctx, e.Email, experiences, ds.now); err != nil {
			return stats, fmt.Errorf("failed to seed project experiences for %s: %w", e.Email, err)
		}
		stats.ProjectExperiences += len(experiences)
	}

	fmt.Printf("Seeded %d employees (%d new), %d contacts, %d allergy records, %d project experiences in %v\n",
		stats.Employees, stats.Created, stats.EmergencyContacts, stats.Allergies, stats.ProjectExperiences, time.Since(start))
	return stats, nil
}

func (ds *DataSeeder) employee(i int) *domain.Employee {
	first := firstNames[i%len(firstNames)]
	last := lastNames[(i/len(firstNames))%len(lastNames)]
	country := "no"
	if i%4 == 3 {
		country = "se"
	}
	local := strings.ToLower(first + "." + last)
	if i >= len(firstNames)*len(lastNames) {
		local = fmt.Sprintf("%s%d", local, i)
	}

	startDate := ds.now.AddDate(-1-ds.rnd.Intn(10), -ds.rnd.Intn(12), 0).Truncate(24 * time.Hour)
	e := &domain.Employee{
		CvPartnerUserID: fmt.Sprintf("seed-user-%04d", i),
		CvPartnerCvID:   fmt.Sprintf("seed-cv-%04d", i),
		Name:            first + " " + last,
		Email:           local + "@company." + country,
		Telephone:       fmt.Sprintf("+47 %08d", ds.rnd.Intn(100000000)),
		OfficeName:      pick(ds.rnd, offices[country]),
		StartDate:       &startDate,
		Competencies:    pq.StringArray(sample(ds.rnd, competencies, 2+ds.rnd.Intn(4))),
		HasEmployment:   true,
		HasCompetencies: true,
	}
	// a few have already left
	if ds.rnd.Intn(10) == 0 {
		end := ds.now.AddDate(0, -ds.rnd.Intn(6)-1, 0).Truncate(24 * time.Hour)
		e.EndDate = &end
	}
	return e
}

func (ds *DataSeeder) contact(id uuid.UUID) *domain.EmergencyContact {
	return &domain.EmergencyContact{
		EmployeeID: id,
		Name:       pick(ds.rnd, firstNames) + " " + pick(ds.rnd, lastNames),
		Phone:      fmt.Sprintf("+47 %08d", ds.rnd.Intn(100000000)),
		Relation:   pick(ds.rnd, relations),
	}
}

func (ds *DataSeeder) allergies(id uuid.UUID) *domain.AllergiesAndDietaryPreferences {
	a := &domain.AllergiesAndDietaryPreferences{
		EmployeeID:         id,
		DefaultAllergies:   pq.StringArray(sample(ds.rnd, domain.DefaultAllergies(), ds.rnd.Intn(3))),
		OtherAllergies:     pq.StringArray{},
		DietaryPreferences: pq.StringArray(sample(ds.rnd, domain.DietaryPreferences(), 1)),
	}
	if ds.rnd.Intn(5) == 0 {
		a.OtherAllergies = pq.StringArray{"Kiwi"}
		a.Comment = "Mild reaction"
	}
	return a
}

func (ds *DataSeeder) experiences(i, n int) []domain.ProjectExperience {
	out := make([]domain.ProjectExperience, 0, n)
	year := ds.now.Year()
	for p := 0; p < n; p++ {
		customer := pick(ds.rnd, customers)
		from := year - 1 - p*2
		exp := domain.ProjectExperience{
			ID:           fmt.Sprintf("seed-project-%04d-%02d", i, p),
			Title:        customer + " platform",
			Customer:     customer,
			Competencies: pq.StringArray(sample(ds.rnd, competencies, 1+ds.rnd.Intn(3))),
			MonthFrom:    1 + ds.rnd.Intn(12),
			YearFrom:     from,
			MonthTo:      1 + ds.rnd.Intn(12),
			YearTo:       from + 1,
			Roles: []domain.ProjectExperienceRole{{
				ID:    fmt.Sprintf("seed-role-%04d-%02d", i, p),
				Title: pick(ds.rnd, roleTitles),
			}},
		}
		if p == 0 {
			// ongoing
			exp.MonthTo, exp.YearTo = 0, 0
		}
		out = append(out, exp)
	}
	return out
}

// ClearData removes every seeded employee. Sub-records and roles cascade.
func (ds *DataSeeder) ClearData(ctx context.Context) error {
	tx, err := ds.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM project_experiences WHERE id LIKE 'seed-project-%'"); err != nil {
		return fmt.Errorf("failed to delete project experiences: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM employees WHERE cv_partner_user_id LIKE 'seed-user-%'")
	if err != nil {
		return fmt.Errorf("failed to delete employees: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	n, _ := res.RowsAffected()
	fmt.Printf("Cleared %d seeded employees\n", n)
	return nil
}

// Presets
type SeedPreset string

const (
	PresetSmall  SeedPreset = "small"
	PresetMedium SeedPreset = "medium"
	PresetLarge  SeedPreset = "large"
)

// GetPresetConfig returns employee and project counts for a preset.
func GetPresetConfig(preset SeedPreset) (numEmployees, numProjects int) {
	switch preset {
	case PresetSmall:
		return 10, 2
	case PresetLarge:
		return 500, 6
	default:
		return 60, 4
	}
}

func pick(rnd *rand.Rand, items []string) string {
	return items[rnd.Intn(len(items))]
}

// sample randomly selects count distinct items.
func sample(rnd *rand.Rand, items []string, count int) []string {
	if count > len(items) {
		count = len(items)
	}
	out := make([]string, count)
	perm := rnd.Perm(len(items))
	for i := 0; i < count; i++ {
		out[i] = items[perm[i]]
	}
	return out
}
