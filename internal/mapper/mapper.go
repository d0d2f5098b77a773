// Package mapper converts external source records into domain entities.
// Functions here are pure; nothing talks to the network or the database.
package mapper

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/locvowork/employee_directory/internal/source/cvpartner"
	"github.com/locvowork/employee_directory/internal/source/vibes"
)

// ToEmployee maps a CV Partner user, optionally enriched with the staffing
// source's employment, to an Employee. The image URL is the source URL; the
// caller swaps in the stored copy.
func ToEmployee(u cvpartner.User, employment *vibes.Employment) (*domain.Employee, error) {
	email := strings.TrimSpace(u.Email)
	if err := checkEmail(email); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(u.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: user %s has no name", domain.ErrValidation, u.UserID)
	}

	e := &domain.Employee{
		CvPartnerUserID: u.UserID,
		CvPartnerCvID:   u.DefaultCvID,
		Name:            name,
		Email:           email,
		Telephone:       strings.TrimSpace(u.Telephone),
		OfficeName:      strings.TrimSpace(u.OfficeName),
		ImageURL:        u.Image.URL,
		ImageThumbURL:   u.Image.Thumb.URL,
		Competencies:    pq.StringArray{},
	}
	if employment != nil {
		e.HasEmployment = true
		e.StartDate = dateOf(employment.StartDate)
		e.EndDate = dateOf(employment.EndDate)
	}
	return e, nil
}

func checkEmail(email string) error {
	at := strings.LastIndex(email, "@")
	if at <= 0 || domain.CountryOf(email) == "" || strings.ContainsAny(email, " \t") {
		return fmt.Errorf("%w: malformed email %q", domain.ErrValidation, email)
	}
	return nil
}

func dateOf(d *vibes.Date) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return &t
}

// ToCompetencies collects the technology tags of a CV, deduplicated
// case-insensitively, in CV order.
func ToCompetencies(cv *cvpartner.CV) pq.StringArray {
	out := pq.StringArray{}
	if cv == nil {
		return out
	}
	seen := make(map[string]struct{})
	for _, tech := range cv.Technologies {
		for _, skill := range tech.TechnologySkills {
			out = appendUnique(out, seen, skill.Tags.Text())
		}
	}
	return out
}

// ToProjectExperiences maps the CV's project experiences for one employee.
// Entries without a source ID cannot be reconciled and are dropped.
func ToProjectExperiences(email string, cv *cvpartner.CV) []domain.ProjectExperience {
	if cv == nil {
		return nil
	}
	out := make([]domain.ProjectExperience, 0, len(cv.ProjectExperiences))
	for _, p := range cv.ProjectExperiences {
		if p.ID == "" {
			continue
		}
		exp := domain.ProjectExperience{
			ID:            p.ID,
			EmployeeEmail: email,
			Title:         p.Description.Text(),
			Description:   p.LongDescription.Text(),
			Customer:      p.Customer.Text(),
			Competencies:  pq.StringArray{},
			MonthFrom:     int(p.MonthFrom),
			YearFrom:      int(p.YearFrom),
			MonthTo:       int(p.MonthTo),
			YearTo:        int(p.YearTo),
		}
		seen := make(map[string]struct{})
		for _, skill := range p.ProjectExperienceSkills {
			exp.Competencies = appendUnique(exp.Competencies, seen, skill.Tags.Text())
		}
		for _, r := range p.Roles {
			if r.ID == "" {
				continue
			}
			exp.Roles = append(exp.Roles, domain.ProjectExperienceRole{
				ID:                  r.ID,
				ProjectExperienceID: p.ID,
				Title:               r.Name.Text(),
				Description:         r.Summary.Text(),
			})
		}
		out = append(out, exp)
	}
	return out
}

func appendUnique(list pq.StringArray, seen map[string]struct{}, v string) pq.StringArray {
	v = strings.TrimSpace(v)
	if v == "" {
		return list
	}
	key := strings.ToLower(v)
	if _, ok := seen[key]; ok {
		return list
	}
	seen[key] = struct{}{}
	return append(list, v)
}
