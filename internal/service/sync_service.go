package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/locvowork/employee_directory/internal/database"
	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/locvowork/employee_directory/internal/logger"
	"github.com/locvowork/employee_directory/internal/mapper"
	"github.com/locvowork/employee_directory/internal/metrics"
	"github.com/locvowork/employee_directory/internal/source/cvpartner"
	"github.com/locvowork/employee_directory/internal/source/vibes"
	"golang.org/x/sync/errgroup"
)

// EmployeeSource is the HR/CV system employees are pulled from.
type EmployeeSource interface {
	FetchAllEmployees(ctx context.Context) ([]cvpartner.User, error)
	FetchCV(ctx context.Context, userID, cvID string) (*cvpartner.CV, error)
}

// EmploymentSource supplies employment dates keyed by lower-cased email.
type EmploymentSource interface {
	FetchEmployments(ctx context.Context) (map[string]vibes.Employment, error)
}

// CachePurger drops cached API responses after data changed.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// SyncRecorder receives run and record counts.
type SyncRecorder interface {
	ObserveSyncRun(started time.Time, err error)
	AddSyncRecords(outcome string, n int)
}

type imageOwner interface {
	Owns(storedURL string) bool
}

// SyncOptions carries the optional collaborators of a sync run. Nil fields
// switch the matching step off.
type SyncOptions struct {
	Workers         int
	ExcludedUserIDs map[string]struct{}
	Images          domain.ImageStore
	Index           SearchIndex
	Cache           CachePurger
	Metrics         SyncRecorder
}

// SyncFailure names one record the run could not reconcile.
type SyncFailure struct {
	Email  string `json:"email"`
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

// SyncReport summarises one run.
type SyncReport struct {
	RunID      string        `json:"runId"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Fetched    int           `json:"fetched"`
	Created    int           `json:"created"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Failures   []SyncFailure `json:"failures"`

	mu sync.Mutex
}

func (r *SyncReport) fail(u cvpartner.User, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed++
	r.Failures = append(r.Failures, SyncFailure{Email: u.Email, UserID: u.UserID, Reason: err.Error()})
}

func (r *SyncReport) done(created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if created {
		r.Created++
	} else {
		r.Updated++
	}
}

// SyncService pulls the external sources into the employee table.
type SyncService struct {
	employees   EmployeeSource
	employments EmploymentSource
	repo        domain.EmployeeRepository
	projects    domain.ProjectExperienceRepository
	opts        SyncOptions
	now         func() time.Time
}

func NewSyncService(
	employees EmployeeSource,
	employments EmploymentSource,
	repo domain.EmployeeRepository,
	projects domain.ProjectExperienceRepository,
	opts SyncOptions,
) *SyncService {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &SyncService{
		employees:   employees,
		employments: employments,
		repo:        repo,
		projects:    projects,
		opts:        opts,
		now:         time.Now,
	}
}

// RunSync performs one full synchronization. Only a source fetch failure
// fails the run; per-record problems are collected in the report. The run
// ignores cancellation of ctx so committed progress is never half-applied
// from the caller's point of view.
func (s *SyncService) RunSync(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{RunID: uuid.NewString(), StartedAt: s.now(), Failures: []SyncFailure{}}
	ctx = logger.WithLogger(context.WithoutCancel(ctx), map[string]interface{}{"run_id": report.RunID})
	logger.InfoLog(ctx, "Employee sync started")

	err := s.run(ctx, report)
	report.FinishedAt = s.now()

	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveSyncRun(report.StartedAt, err)
		s.opts.Metrics.AddSyncRecords(metrics.OutcomeCreated, report.Created)
		s.opts.Metrics.AddSyncRecords(metrics.OutcomeUpdated, report.Updated)
		s.opts.Metrics.AddSyncRecords(metrics.OutcomeSkipped, report.Skipped)
		s.opts.Metrics.AddSyncRecords(metrics.OutcomeFailed, report.Failed)
	}
	if err != nil {
		logger.ErrorLog(ctx, "Employee sync aborted: %v", err)
		return report, err
	}

	logger.InfoLog(ctx, "Employee sync finished: fetched=%d created=%d updated=%d skipped=%d failed=%d",
		report.Fetched, report.Created, report.Updated, report.Skipped, report.Failed)
	return report, nil
}

func (s *SyncService) run(ctx context.Context, report *SyncReport) error {
	users, err := s.employees.FetchAllEmployees(ctx)
	if err != nil {
		return err
	}
	employments := map[string]vibes.Employment{}
	if s.employments != nil {
		if employments, err = s.employments.FetchEmployments(ctx); err != nil {
			return err
		}
	}
	report.Fetched = len(users)

	batch := s.selectUsers(ctx, users, report)

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)
	for _, u := range batch {
		u := u
		g.Go(func() error {
			var employment *vibes.Employment
			if em, ok := employments[strings.ToLower(strings.TrimSpace(u.Email))]; ok {
				employment = &em
			}
			created, err := s.syncOne(ctx, u, employment, report.StartedAt)
			if err != nil {
				logger.ErrorLog(ctx, "Failed to sync %s (%s): %v", u.Email, u.UserID, err)
				report.fail(u, err)
				return nil
			}
			report.done(created)
			return nil
		})
	}
	_ = g.Wait()

	s.reindex(ctx)
	if s.opts.Cache != nil {
		if err := s.opts.Cache.Purge(ctx); err != nil {
			logger.WarnLog(ctx, "Failed to purge response cache: %v", err)
		}
	}
	return nil
}

// selectUsers drops excluded users and every repeat of an email already seen
// earlier in the batch.
func (s *SyncService) selectUsers(ctx context.Context, users []cvpartner.User, report *SyncReport) []cvpartner.User {
	seen := make(map[string]string, len(users))
	batch := make([]cvpartner.User, 0, len(users))
	for _, u := range users {
		if _, ok := s.opts.ExcludedUserIDs[u.UserID]; ok {
			logger.DebugLog(ctx, "Skipping excluded user %s", u.UserID)
			report.Skipped++
			continue
		}
		if u.Deactivated {
			report.Skipped++
			continue
		}
		email := strings.TrimSpace(u.Email)
		if first, dup := seen[email]; dup && email != "" {
			logger.WarnLog(ctx, "Duplicate email %s from user %s, keeping user %s", email, u.UserID, first)
			report.Skipped++
			continue
		}
		seen[email] = u.UserID
		batch = append(batch, u)
	}
	return batch
}

func (s *SyncService) syncOne(ctx context.Context, u cvpartner.User, employment *vibes.Employment, syncedAt time.Time) (bool, error) {
	ctx = logger.WithLogger(ctx, map[string]interface{}{"email": u.Email})

	e, err := mapper.ToEmployee(u, employment)
	if err != nil {
		return false, err
	}

	var (
		cv    *cvpartner.CV
		cvErr error
	)
	if u.DefaultCvID == "" {
		e.HasCompetencies = true
	} else if cv, cvErr = s.employees.FetchCV(ctx, u.UserID, u.DefaultCvID); cvErr == nil {
		e.Competencies = mapper.ToCompetencies(cv)
		e.HasCompetencies = true
	}

	sourceImage := e.ImageURL
	res, err := s.repo.UpsertFromSource(ctx, e)
	if err != nil {
		return false, err
	}
	if res.Created {
		logger.InfoLog(ctx, "Created employee %s", res.ID)
	}

	s.syncImage(ctx, res, sourceImage)

	if cvErr != nil {
		// source fields are saved; stored competencies and projects stay as they were
		return res.Created, fmt.Errorf("employee saved but cv fetch failed: %w", cvErr)
	}
	if cv != nil && s.projects != nil {
		experiences := mapper.ToProjectExperiences(e.Email, cv)
		if err := s.projects.SyncForEmployee(ctx, e.Email, experiences, syncedAt); err != nil {
			return res.Created, fmt.Errorf("employee saved but project experiences failed: %w", err)
		}
	}
	return res.Created, nil
}

// syncImage swaps the source image URL for a stored copy. Failures keep the
// source URL on the row.
func (s *SyncService) syncImage(ctx context.Context, res domain.UpsertResult, sourceImage string) {
	images := s.opts.Images
	if images == nil {
		return
	}

	if sourceImage == "" {
		if res.PreviousImageURL == "" {
			return
		}
		if owner, ok := images.(imageOwner); ok && !owner.Owns(res.PreviousImageURL) {
			return
		}
		if err := images.Delete(ctx, res.PreviousImageURL); err != nil {
			logger.WarnLog(ctx, "Failed to delete old image %s: %v", res.PreviousImageURL, err)
		}
		return
	}

	stored, err := images.Save(ctx, res.ID, sourceImage)
	if err != nil {
		logger.WarnLog(ctx, "Failed to store image, keeping source url: %v", err)
		return
	}
	if stored == "" || stored == sourceImage {
		return
	}
	if err := s.repo.UpdateImageURL(ctx, res.ID, stored); err != nil {
		logger.WarnLog(ctx, "Failed to point employee at stored image: %v", err)
	}
}

func (s *SyncService) reindex(ctx context.Context) {
	if s.opts.Index == nil {
		return
	}
	active, err := s.repo.ListActive(ctx, domain.EmployeeFilter{Now: s.now()})
	if err != nil {
		logger.WarnLog(ctx, "Skipping search reindex: %v", err)
		return
	}
	docs := make([]database.EmployeeDoc, len(active))
	for i, e := range active {
		docs[i] = ToEmployeeDoc(e)
	}
	if err := s.opts.Index.ReplaceAll(ctx, docs); err != nil {
		logger.WarnLog(ctx, "Search reindex failed: %v", err)
		return
	}
	logger.InfoLog(ctx, "Reindexed %d employees", len(docs))
}

// ToEmployeeDoc projects an employee onto its search document.
func ToEmployeeDoc(e domain.Employee) database.EmployeeDoc {
	return database.EmployeeDoc{
		ID:           e.ID.String(),
		Name:         e.Name,
		Email:        e.Email,
		Telephone:    e.Telephone,
		OfficeName:   e.OfficeName,
		ImageURL:     e.ImageURL,
		Competencies: append([]string{}, e.Competencies...),
	}
}
