package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/locvowork/employee_directory/internal/database"
	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/locvowork/employee_directory/internal/source/cvpartner"
	"github.com/locvowork/employee_directory/internal/source/vibes"
)

// memoryRepository keeps employees keyed by email, which gives it the same
// uniqueness guarantee as the database constraint.
type memoryRepository struct {
	mu         sync.Mutex
	byEmail    map[string]*domain.Employee
	contacts   map[uuid.UUID]domain.EmergencyContact
	allergies  map[uuid.UUID]domain.AllergiesAndDietaryPreferences
	failEmails map[string]bool
	upserts    int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		byEmail:    map[string]*domain.Employee{},
		contacts:   map[uuid.UUID]domain.EmergencyContact{},
		allergies:  map[uuid.UUID]domain.AllergiesAndDietaryPreferences{},
		failEmails: map[string]bool{},
	}
}

func (r *memoryRepository) seed(e domain.Employee) domain.Employee {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	r.byEmail[e.Email] = &e
	return e
}

func (r *memoryRepository) UpsertFromSource(_ context.Context, e *domain.Employee) (domain.UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.failEmails[e.Email] {
		return domain.UpsertResult{}, fmt.Errorf("%w: upsert %s: connection reset", domain.ErrPersistence, e.Email)
	}

	existing, ok := r.byEmail[e.Email]
	if !ok {
		row := *e
		row.ID = uuid.New()
		row.Competencies = append(pq.StringArray{}, e.Competencies...)
		r.byEmail[e.Email] = &row
		e.ID = row.ID
		return domain.UpsertResult{ID: row.ID, Created: true}, nil
	}

	res := domain.UpsertResult{ID: existing.ID, PreviousImageURL: existing.ImageURL}
	existing.CvPartnerUserID = e.CvPartnerUserID
	existing.CvPartnerCvID = e.CvPartnerCvID
	existing.Name = e.Name
	existing.Telephone = e.Telephone
	existing.OfficeName = e.OfficeName
	existing.ImageURL = e.ImageURL
	existing.ImageThumbURL = e.ImageThumbURL
	if e.HasCompetencies {
		existing.Competencies = append(pq.StringArray{}, e.Competencies...)
	}
	if e.HasEmployment {
		existing.StartDate = e.StartDate
		existing.EndDate = e.EndDate
	}
	e.ID = existing.ID
	return res, nil
}

func (r *memoryRepository) UpdateImageURL(_ context.Context, id uuid.UUID, imageURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byEmail {
		if e.ID == id {
			e.ImageURL = imageURL
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *memoryRepository) ListActive(_ context.Context, filter domain.EmployeeFilter) ([]domain.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Employee{}
	for _, e := range r.byEmail {
		if !e.IsActive(filter.Now) {
			continue
		}
		if filter.Country != "" && !strings.HasSuffix(e.Email, "."+filter.Country) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func (r *memoryRepository) ListActiveAggregates(ctx context.Context, filter domain.EmployeeFilter) ([]domain.EmployeeAggregate, error) {
	employees, _ := r.ListActive(ctx, filter)
	out := make([]domain.EmployeeAggregate, len(employees))
	for i, e := range employees {
		agg, _ := r.GetAggregate(ctx, e.ID)
		out[i] = *agg
	}
	return out, nil
}

func (r *memoryRepository) FindByAliasAndCountry(_ context.Context, alias, country string) ([]domain.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Employee{}
	for email, e := range r.byEmail {
		if strings.HasPrefix(email, alias+"@") && strings.HasSuffix(email, "."+country) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memoryRepository) GetAggregate(_ context.Context, id uuid.UUID) (*domain.EmployeeAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byEmail {
		if e.ID != id {
			continue
		}
		agg := &domain.EmployeeAggregate{Employee: *e}
		if c, ok := r.contacts[id]; ok {
			agg.EmergencyContact = &c
		}
		if a, ok := r.allergies[id]; ok {
			agg.AllergiesAndDietaryPreferences = &a
		}
		return agg, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memoryRepository) ListCompetencies(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := map[string]struct{}{}
	for _, e := range r.byEmail {
		for _, c := range e.Competencies {
			set[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (r *memoryRepository) UpsertEmergencyContact(_ context.Context, c *domain.EmergencyContact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[c.EmployeeID] = *c
	return nil
}

func (r *memoryRepository) UpsertAllergiesAndDietaryPreferences(_ context.Context, a *domain.AllergiesAndDietaryPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := *a
	if row.DefaultAllergies == nil {
		row.DefaultAllergies = pq.StringArray{}
	}
	if row.OtherAllergies == nil {
		row.OtherAllergies = pq.StringArray{}
	}
	if row.DietaryPreferences == nil {
		row.DietaryPreferences = pq.StringArray{}
	}
	r.allergies[a.EmployeeID] = row
	return nil
}

func (r *memoryRepository) Ping(context.Context) error { return nil }

func (r *memoryRepository) snapshot() map[string]domain.Employee {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]domain.Employee, len(r.byEmail))
	for k, v := range r.byEmail {
		out[k] = *v
	}
	return out
}

type memoryProjects struct {
	mu     sync.Mutex
	byMail map[string][]domain.ProjectExperience
}

func newMemoryProjects() *memoryProjects {
	return &memoryProjects{byMail: map[string][]domain.ProjectExperience{}}
}

func (p *memoryProjects) SyncForEmployee(_ context.Context, email string, experiences []domain.ProjectExperience, syncedAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ProjectExperience, len(experiences))
	for i, e := range experiences {
		e.EmployeeEmail = email
		e.LastSynced = syncedAt
		out[i] = e
	}
	p.byMail[email] = out
	return nil
}

func (p *memoryProjects) ListByEmail(_ context.Context, email string) ([]domain.ProjectExperience, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ProjectExperience{}, p.byMail[email]...), nil
}

type fakeSource struct {
	users    []cvpartner.User
	cvs      map[string]*cvpartner.CV
	fetchErr error
	cvErr    map[string]error
}

func (f *fakeSource) FetchAllEmployees(context.Context) ([]cvpartner.User, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.users, nil
}

func (f *fakeSource) FetchCV(_ context.Context, userID, _ string) (*cvpartner.CV, error) {
	if err := f.cvErr[userID]; err != nil {
		return nil, err
	}
	if cv, ok := f.cvs[userID]; ok {
		return cv, nil
	}
	return &cvpartner.CV{}, nil
}

type fakeEmployments struct {
	byEmail map[string]vibes.Employment
	err     error
}

func (f *fakeEmployments) FetchEmployments(context.Context) (map[string]vibes.Employment, error) {
	return f.byEmail, f.err
}

type fakeImages struct {
	mu      sync.Mutex
	saved   map[uuid.UUID]string
	deleted []string
	failing bool
}

func newFakeImages() *fakeImages {
	return &fakeImages{saved: map[uuid.UUID]string{}}
}

func (f *fakeImages) Save(_ context.Context, id uuid.UUID, sourceURI string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return "", fmt.Errorf("image host down")
	}
	f.saved[id] = sourceURI
	return "http://localhost:8080/images/" + id.String() + ".png", nil
}

func (f *fakeImages) Delete(_ context.Context, storedURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, storedURL)
	return nil
}

func (f *fakeImages) Owns(storedURL string) bool {
	return strings.HasPrefix(storedURL, "http://localhost:8080/images/")
}

type fakeIndex struct {
	docs    []database.EmployeeDoc
	results []database.EmployeeDoc
	err     error
}

func (f *fakeIndex) SearchEmployeesByName(_ context.Context, _ string, _ int) ([]database.EmployeeDoc, error) {
	return f.results, f.err
}

func (f *fakeIndex) ReplaceAll(_ context.Context, docs []database.EmployeeDoc) error {
	f.docs = docs
	return f.err
}

type fakePurger struct{ purged int }

func (f *fakePurger) Purge(context.Context) error {
	f.purged++
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	runs    int
	lastErr error
	records map[string]int
}

func (f *fakeRecorder) ObserveSyncRun(_ time.Time, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	f.lastErr = err
}

func (f *fakeRecorder) AddSyncRecords(outcome string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records == nil {
		f.records = map[string]int{}
	}
	f.records[outcome] += n
}
