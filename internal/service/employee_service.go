package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/locvowork/employee_directory/internal/database"
	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/locvowork/employee_directory/internal/logger"
)

const searchSize = 25

// SearchIndex is the full-text index over active employees.
type SearchIndex interface {
	SearchEmployeesByName(ctx context.Context, q string, size int) ([]database.EmployeeDoc, error)
	ReplaceAll(ctx context.Context, docs []database.EmployeeDoc) error
}

// EmployeeCv is an employee together with the CV data synced for them.
type EmployeeCv struct {
	Employee           domain.Employee
	Competencies       []string
	ProjectExperiences []domain.ProjectExperience
}

// EmployeeService defines the business operations on employees.
type EmployeeService interface {
	GetActiveEmployees(ctx context.Context, country string) ([]domain.Employee, error)
	GetActiveEmployeesExtended(ctx context.Context, country string) ([]domain.EmployeeAggregate, error)
	GetByAliasAndCountry(ctx context.Context, alias, country string) (*domain.EmployeeAggregate, error)

	AddOrUpdateEmergencyContactByAliasAndCountry(ctx context.Context, alias, country string, contact *domain.EmergencyContact) error
	UpdateAllergiesAndDietaryPreferencesByAliasAndCountry(ctx context.Context, alias, country string, a *domain.AllergiesAndDietaryPreferences) error
	IsValid(contact *domain.EmergencyContact) bool

	DefaultAllergies() []string
	DietaryPreferences() []string
	GetCompetencies(ctx context.Context, alias, country string) ([]string, error)
	GetCv(ctx context.Context, alias, country string) (*EmployeeCv, error)
	GetProjectExperiences(ctx context.Context, alias, country string, competencies []string) ([]domain.ProjectExperience, error)
	Search(ctx context.Context, q string) ([]database.EmployeeDoc, error)

	Healthy(ctx context.Context) bool
}

type employeeService struct {
	repo     domain.EmployeeRepository
	projects domain.ProjectExperienceRepository
	search   SearchIndex
	validate *validator.Validate
	now      func() time.Time
}

// NewEmployeeService creates a new EmployeeService. search may be nil when
// no index is configured.
func NewEmployeeService(repo domain.EmployeeRepository, projects domain.ProjectExperienceRepository, search SearchIndex) EmployeeService {
	return &employeeService{
		repo:     repo,
		projects: projects,
		search:   search,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *employeeService) GetActiveEmployees(ctx context.Context, country string) ([]domain.Employee, error) {
	return s.repo.ListActive(ctx, domain.EmployeeFilter{
		Country: strings.TrimSpace(country),
		Now:     s.now(),
	})
}

func (s *employeeService) GetActiveEmployeesExtended(ctx context.Context, country string) ([]domain.EmployeeAggregate, error) {
	return s.repo.ListActiveAggregates(ctx, domain.EmployeeFilter{
		Country: strings.TrimSpace(country),
		Now:     s.now(),
	})
}

func (s *employeeService) GetByAliasAndCountry(ctx context.Context, alias, country string) (*domain.EmployeeAggregate, error) {
	e, err := s.resolve(ctx, alias, country)
	if err != nil {
		return nil, err
	}
	return s.repo.GetAggregate(ctx, e.ID)
}

// resolve finds the single employee behind alias@*.country.
func (s *employeeService) resolve(ctx context.Context, alias, country string) (*domain.Employee, error) {
	alias = strings.TrimSpace(alias)
	country = strings.TrimSpace(country)
	if alias == "" || country == "" {
		return nil, fmt.Errorf("%w: alias and country are required", domain.ErrValidation)
	}

	matches, err := s.repo.FindByAliasAndCountry(ctx, alias, country)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s in %s", domain.ErrNotFound, alias, country)
	case 1:
		return &matches[0], nil
	default:
		emails := make([]string, len(matches))
		for i, m := range matches {
			emails[i] = m.Email
		}
		logger.ErrorLog(ctx, "Alias %s in %s matches %d employees: %s", alias, country, len(matches), strings.Join(emails, ", "))
		return nil, fmt.Errorf("%w: %s in %s", domain.ErrAmbiguousMatch, alias, country)
	}
}

func (s *employeeService) AddOrUpdateEmergencyContactByAliasAndCountry(ctx context.Context, alias, country string, contact *domain.EmergencyContact) error {
	if err := s.validateContact(contact); err != nil {
		return err
	}
	e, err := s.resolve(ctx, alias, country)
	if err != nil {
		return err
	}

	row := *contact
	row.EmployeeID = e.ID
	if err := s.repo.UpsertEmergencyContact(ctx, &row); err != nil {
		return err
	}
	logger.InfoLog(ctx, "Emergency contact saved for %s", e.Email)
	return nil
}

func (s *employeeService) UpdateAllergiesAndDietaryPreferencesByAliasAndCountry(ctx context.Context, alias, country string, a *domain.AllergiesAndDietaryPreferences) error {
	if a == nil {
		return fmt.Errorf("%w: missing body", domain.ErrValidation)
	}
	for _, v := range a.DefaultAllergies {
		if !domain.IsDefaultAllergy(v) {
			return fmt.Errorf("%w: unknown default allergy %q", domain.ErrValidation, v)
		}
	}
	for _, v := range a.DietaryPreferences {
		if !domain.IsDietaryPreference(v) {
			return fmt.Errorf("%w: unknown dietary preference %q", domain.ErrValidation, v)
		}
	}

	e, err := s.resolve(ctx, alias, country)
	if err != nil {
		return err
	}

	row := *a
	row.EmployeeID = e.ID
	row.DefaultAllergies = distinct(a.DefaultAllergies)
	row.OtherAllergies = distinct(a.OtherAllergies)
	row.DietaryPreferences = distinct(a.DietaryPreferences)
	row.Comment = strings.TrimSpace(a.Comment)
	if err := s.repo.UpsertAllergiesAndDietaryPreferences(ctx, &row); err != nil {
		return err
	}
	logger.InfoLog(ctx, "Allergies and dietary preferences saved for %s", e.Email)
	return nil
}

func (s *employeeService) IsValid(contact *domain.EmergencyContact) bool {
	return s.validateContact(contact) == nil
}

func (s *employeeService) validateContact(contact *domain.EmergencyContact) error {
	if contact == nil {
		return fmt.Errorf("%w: missing body", domain.ErrValidation)
	}
	c := *contact
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	if err := s.validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed on %s", domain.ErrValidation, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return nil
}

func (s *employeeService) DefaultAllergies() []string {
	return domain.DefaultAllergies()
}

func (s *employeeService) DietaryPreferences() []string {
	return domain.DietaryPreferences()
}

// GetCompetencies lists competencies of every active employee, or of one
// employee when alias is set.
func (s *employeeService) GetCompetencies(ctx context.Context, alias, country string) ([]string, error) {
	if strings.TrimSpace(alias) == "" {
		return s.repo.ListCompetencies(ctx)
	}
	e, err := s.resolve(ctx, alias, country)
	if err != nil {
		return nil, err
	}
	out := append([]string{}, e.Competencies...)
	sort.Strings(out)
	return out, nil
}

func (s *employeeService) GetCv(ctx context.Context, alias, country string) (*EmployeeCv, error) {
	e, err := s.resolve(ctx, alias, country)
	if err != nil {
		return nil, err
	}
	experiences, err := s.projects.ListByEmail(ctx, e.Email)
	if err != nil {
		return nil, err
	}
	return &EmployeeCv{
		Employee:           *e,
		Competencies:       append([]string{}, e.Competencies...),
		ProjectExperiences: experiences,
	}, nil
}

// GetProjectExperiences returns the employee's projects tagged with at least
// one of the given competencies. No competencies means no filter.
func (s *employeeService) GetProjectExperiences(ctx context.Context, alias, country string, competencies []string) ([]domain.ProjectExperience, error) {
	e, err := s.resolve(ctx, alias, country)
	if err != nil {
		return nil, err
	}
	experiences, err := s.projects.ListByEmail(ctx, e.Email)
	if err != nil {
		return nil, err
	}

	var wanted []string
	for _, c := range competencies {
		if c = strings.TrimSpace(c); c != "" {
			wanted = append(wanted, c)
		}
	}
	if len(wanted) == 0 {
		return experiences, nil
	}

	out := []domain.ProjectExperience{}
	for _, p := range experiences {
		if p.HasAnyCompetency(wanted) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *employeeService) Search(ctx context.Context, q string) ([]database.EmployeeDoc, error) {
	if s.search == nil {
		return nil, domain.ErrSearchUnavailable
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("%w: empty search query", domain.ErrValidation)
	}
	docs, err := s.search.SearchEmployeesByName(ctx, q, searchSize)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	return docs, nil
}

func (s *employeeService) Healthy(ctx context.Context) bool {
	if err := s.repo.Ping(ctx); err != nil {
		logger.WarnLog(ctx, "Database ping failed: %v", err)
		return false
	}
	return true
}

// distinct trims values and drops blanks and repeats, keeping first-seen order.
func distinct(values pq.StringArray) pq.StringArray {
	out := make(pq.StringArray, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
