package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/locvowork/employee_directory/internal/metrics"
	"github.com/locvowork/employee_directory/internal/source/cvpartner"
	"github.com/locvowork/employee_directory/internal/source/vibes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func user(id, name, email string) cvpartner.User {
	return cvpartner.User{UserID: id, Name: name, Email: email, OfficeName: "Oslo"}
}

func newSync(src *fakeSource, repo *memoryRepository, opts SyncOptions) *SyncService {
	return NewSyncService(src, nil, repo, newMemoryProjects(), opts)
}

func TestRunSyncIsIdempotent(t *testing.T) {
	repo := newMemoryRepository()
	src := &fakeSource{users: []cvpartner.User{
		user("u1", "Kari Nordmann", "kari@company.no"),
		user("u2", "Ola Nordmann", "ola@company.se"),
	}}
	svc := newSync(src, repo, SyncOptions{Workers: 2})

	first, err := svc.RunSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)
	before := repo.snapshot()

	second, err := svc.RunSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, before, repo.snapshot())
}

func TestRunSyncKeepsFirstDuplicateEmail(t *testing.T) {
	repo := newMemoryRepository()
	src := &fakeSource{users: []cvpartner.User{
		user("u1", "First", "dup@company.no"),
		user("u2", "Second", "dup@company.no"),
	}}

	report, err := newSync(src, repo, SyncOptions{Workers: 4}).RunSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)
	rows := repo.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "First", rows["dup@company.no"].Name)
}

func TestRunSyncPreservesUserControlledRecords(t *testing.T) {
	repo := newMemoryRepository()
	seeded := repo.seed(domain.Employee{Name: "Old Name", Email: "kari@company.no"})
	contact := domain.EmergencyContact{EmployeeID: seeded.ID, Name: "Ola", Phone: "99887766"}
	require.NoError(t, repo.UpsertEmergencyContact(context.Background(), &contact))
	allergies := domain.AllergiesAndDietaryPreferences{EmployeeID: seeded.ID, DefaultAllergies: pq.StringArray{"EGG"}}
	require.NoError(t, repo.UpsertAllergiesAndDietaryPreferences(context.Background(), &allergies))

	src := &fakeSource{users: []cvpartner.User{user("u1", "Kari Nordmann", "kari@company.no")}}
	_, err := newSync(src, repo, SyncOptions{}).RunSync(context.Background())
	require.NoError(t, err)

	agg, err := repo.GetAggregate(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kari Nordmann", agg.Employee.Name)
	assert.Equal(t, &contact, agg.EmergencyContact)
	require.NotNil(t, agg.AllergiesAndDietaryPreferences)
	assert.Equal(t, pq.StringArray{"EGG"}, agg.AllergiesAndDietaryPreferences.DefaultAllergies)
}

func TestRunSyncIsolatesRecordFailures(t *testing.T) {
	repo := newMemoryRepository()
	repo.failEmails["broken@company.no"] = true
	src := &fakeSource{
		users: []cvpartner.User{
			user("u1", "Anne", "anne@company.no"),
			user("u2", "Broken", "broken@company.no"),
			user("u3", "", "noname@company.no"),
			user("u4", "Bad Email", "not-an-email"),
			user("u5", "Cv Fails", "cv@company.no"),
			user("u6", "Carl", "carl@company.no"),
		},
		cvErr: map[string]error{"u5": fmt.Errorf("%w: cv", domain.ErrFetch)},
	}
	src.users[4].DefaultCvID = "cv5"

	report, err := newSync(src, repo, SyncOptions{Workers: 3}).RunSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, report.Fetched)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 4, report.Failed)
	assert.Len(t, report.Failures, 4)

	rows := repo.snapshot()
	assert.Contains(t, rows, "anne@company.no")
	assert.Contains(t, rows, "carl@company.no")
	assert.NotContains(t, rows, "broken@company.no")
	assert.Contains(t, rows, "cv@company.no")
}

func TestRunSyncSavesSourceFieldsWhenCvFetchFails(t *testing.T) {
	repo := newMemoryRepository()
	repo.seed(domain.Employee{Name: "Old Name", Email: "kari@company.no", Competencies: pq.StringArray{"Go"}})
	projects := newMemoryProjects()
	syncedBefore := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, projects.SyncForEmployee(context.Background(), "kari@company.no",
		[]domain.ProjectExperience{{ID: "p1", Title: "Platform"}}, syncedBefore))

	kari := user("u1", "Kari Nordmann", "kari@company.no")
	kari.DefaultCvID = "cv1"
	newcomer := user("u2", "Nina", "nina@company.no")
	newcomer.DefaultCvID = "cv2"
	cvDown := fmt.Errorf("%w: cv partner 503", domain.ErrFetch)
	src := &fakeSource{
		users: []cvpartner.User{kari, newcomer},
		cvErr: map[string]error{"u1": cvDown, "u2": cvDown},
	}

	report, err := NewSyncService(src, nil, repo, projects, SyncOptions{}).RunSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)

	rows := repo.snapshot()
	require.Contains(t, rows, "nina@company.no")
	assert.Equal(t, "Nina", rows["nina@company.no"].Name)
	assert.Equal(t, "Kari Nordmann", rows["kari@company.no"].Name)
	assert.Equal(t, pq.StringArray{"Go"}, rows["kari@company.no"].Competencies)

	exps, err := projects.ListByEmail(context.Background(), "kari@company.no")
	require.NoError(t, err)
	assert.Len(t, exps, 1)
}

func TestRunSyncAbortsOnFetchFailure(t *testing.T) {
	t.Run("cv partner", func(t *testing.T) {
		repo := newMemoryRepository()
		rec := &fakeRecorder{}
		src := &fakeSource{fetchErr: fmt.Errorf("%w: cv partner: 503", domain.ErrFetch)}

		_, err := newSync(src, repo, SyncOptions{Metrics: rec}).RunSync(context.Background())
		assert.ErrorIs(t, err, domain.ErrFetch)
		assert.Equal(t, 1, rec.runs)
		assert.Error(t, rec.lastErr)
	})

	t.Run("vibes", func(t *testing.T) {
		repo := newMemoryRepository()
		src := &fakeSource{users: []cvpartner.User{user("u1", "Kari", "kari@company.no")}}
		employments := &fakeEmployments{err: fmt.Errorf("%w: vibes: token", domain.ErrFetch)}

		_, err := NewSyncService(src, employments, repo, newMemoryProjects(), SyncOptions{}).RunSync(context.Background())
		assert.ErrorIs(t, err, domain.ErrFetch)
		assert.Zero(t, repo.upserts)
	})
}

func TestRunSyncDoesNotDeleteMissingEmployees(t *testing.T) {
	repo := newMemoryRepository()
	repo.seed(domain.Employee{Name: "Gone", Email: "gone@company.no"})
	src := &fakeSource{users: []cvpartner.User{user("u1", "Kari", "kari@company.no")}}

	_, err := newSync(src, repo, SyncOptions{}).RunSync(context.Background())
	require.NoError(t, err)
	assert.Contains(t, repo.snapshot(), "gone@company.no")
}

func TestRunSyncAppliesExclusionsAndEmployment(t *testing.T) {
	repo := newMemoryRepository()
	src := &fakeSource{users: []cvpartner.User{
		user("u1", "Kari", "Kari@company.no"),
		user("robot", "Robot", "robot@company.no"),
	}}
	end := vibes.Date{Time: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)}
	employments := &fakeEmployments{byEmail: map[string]vibes.Employment{
		"kari@company.no": {Email: "kari@company.no", EndDate: &end},
	}}

	svc := NewSyncService(src, employments, repo, newMemoryProjects(), SyncOptions{
		ExcludedUserIDs: map[string]struct{}{"robot": {}},
	})
	report, err := svc.RunSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	rows := repo.snapshot()
	require.Len(t, rows, 1)
	require.NotNil(t, rows["Kari@company.no"].EndDate)
	assert.True(t, rows["Kari@company.no"].EndDate.Equal(end.Time))
}

func TestRunSyncStoresImagesAndCvData(t *testing.T) {
	repo := newMemoryRepository()
	projects := newMemoryProjects()
	images := newFakeImages()
	index := &fakeIndex{}
	purger := &fakePurger{}
	rec := &fakeRecorder{}

	u := user("u1", "Kari", "kari@company.no")
	u.DefaultCvID = "cv1"
	u.Image.URL = "https://cvpartner.example/images/u1.png"
	src := &fakeSource{
		users: []cvpartner.User{u},
		cvs: map[string]*cvpartner.CV{"u1": {
			ID: "cv1",
			Technologies: []cvpartner.Technology{{
				TechnologySkills: []cvpartner.Skill{{Tags: cvpartner.LocalizedText{"no": "Go"}}},
			}},
			ProjectExperiences: []cvpartner.ProjectExperience{{
				ID:          "p1",
				Description: cvpartner.LocalizedText{"no": "Platform"},
			}},
		}},
	}

	svc := NewSyncService(src, nil, repo, projects, SyncOptions{
		Images: images, Index: index, Cache: purger, Metrics: rec,
	})
	report, err := svc.RunSync(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Created)

	row := repo.snapshot()["kari@company.no"]
	assert.Equal(t, "http://localhost:8080/images/"+row.ID.String()+".png", row.ImageURL)
	assert.Equal(t, u.Image.URL, images.saved[row.ID])
	assert.Equal(t, pq.StringArray{"Go"}, row.Competencies)

	exps, err := projects.ListByEmail(context.Background(), "kari@company.no")
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, "Platform", exps[0].Title)

	require.Len(t, index.docs, 1)
	assert.Equal(t, "kari@company.no", index.docs[0].Email)
	assert.Equal(t, 1, purger.purged)
	assert.Equal(t, 1, rec.records[metrics.OutcomeCreated])
	assert.NoError(t, rec.lastErr)

	// the source drops the picture: the stored copy goes too
	src.users[0].Image.URL = ""
	_, err = svc.RunSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{row.ImageURL}, images.deleted)
	assert.Empty(t, repo.snapshot()["kari@company.no"].ImageURL)
}

func TestRunSyncKeepsSourceImageWhenStoreFails(t *testing.T) {
	repo := newMemoryRepository()
	images := newFakeImages()
	images.failing = true
	u := user("u1", "Kari", "kari@company.no")
	u.Image.URL = "https://cvpartner.example/images/u1.png"

	_, err := newSync(&fakeSource{users: []cvpartner.User{u}}, repo, SyncOptions{Images: images}).RunSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, u.Image.URL, repo.snapshot()["kari@company.no"].ImageURL)
}

func TestRunSyncIgnoresCallerCancellation(t *testing.T) {
	repo := newMemoryRepository()
	src := &fakeSource{users: []cvpartner.User{user("u1", "Kari", "kari@company.no")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newSync(src, repo, SyncOptions{}).RunSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.False(t, errors.Is(err, context.Canceled))
}
