package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Employee represents the employees table. Email is the natural key shared
// with the external sources; ID is local and never changes once assigned.
type Employee struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	CvPartnerUserID string         `json:"cvPartnerUserId" db:"cv_partner_user_id"`
	CvPartnerCvID   string         `json:"cvPartnerCvId" db:"cv_partner_cv_id"`
	Name            string         `json:"name" db:"name"`
	Email           string         `json:"email" db:"email"`
	Telephone       string         `json:"telephone" db:"telephone"`
	OfficeName      string         `json:"officeName" db:"office_name"`
	ImageURL        string         `json:"imageUrl" db:"image_url"`
	ImageThumbURL   string         `json:"imageThumbUrl" db:"image_thumb_url"`
	StartDate       *time.Time     `json:"startDate" db:"start_date"`
	EndDate         *time.Time     `json:"endDate" db:"end_date"`
	Competencies    pq.StringArray `json:"competencies" db:"competencies"`
	CreatedAt       time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time      `json:"updatedAt" db:"updated_at"`

	// HasEmployment is set by the mapper when the staffing source supplied
	// employment dates. Without it the stored dates are left as they are.
	HasEmployment bool `json:"-" db:"-"`
	// HasCompetencies is set when Competencies reflects the employee's CV.
	// Without it the stored competencies are left as they are.
	HasCompetencies bool `json:"-" db:"-"`
}

// IsActive reports whether the employee still works here on now's calendar
// day. The end date is the last working day.
func (e Employee) IsActive(now time.Time) bool {
	if e.EndDate == nil {
		return true
	}
	y, m, d := e.EndDate.Date()
	lastDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return !lastDay.Before(today)
}

// EmergencyContact is owned by exactly one employee and only written through
// the API. Sync never touches it.
type EmergencyContact struct {
	EmployeeID uuid.UUID `json:"-" db:"employee_id"`
	Name       string    `json:"name" db:"name" validate:"required,max=200"`
	Phone      string    `json:"phone" db:"phone" validate:"required,max=50"`
	Relation   string    `json:"relation" db:"relation" validate:"max=100"`
	Comment    string    `json:"comment" db:"comment" validate:"max=1000"`
}

// AllergiesAndDietaryPreferences is replaced wholesale on every write.
type AllergiesAndDietaryPreferences struct {
	EmployeeID         uuid.UUID      `json:"-" db:"employee_id"`
	DefaultAllergies   pq.StringArray `json:"defaultAllergies" db:"default_allergies"`
	OtherAllergies     pq.StringArray `json:"otherAllergies" db:"other_allergies"`
	DietaryPreferences pq.StringArray `json:"dietaryPreferences" db:"dietary_preferences"`
	Comment            string         `json:"comment" db:"comment"`
}

// EmployeeAggregate is an employee loaded together with its sub-records.
type EmployeeAggregate struct {
	Employee                       Employee
	EmergencyContact               *EmergencyContact
	AllergiesAndDietaryPreferences *AllergiesAndDietaryPreferences
}

// ProjectExperience is a CV entry scoped to an employee by email.
type ProjectExperience struct {
	ID            string                  `json:"id" db:"id"`
	EmployeeEmail string                  `json:"-" db:"employee_email"`
	Title         string                  `json:"title" db:"title"`
	Description   string                  `json:"description" db:"description"`
	Customer      string                  `json:"customer" db:"customer"`
	Competencies  pq.StringArray          `json:"competencies" db:"competencies"`
	MonthFrom     int                     `json:"monthFrom" db:"month_from"`
	YearFrom      int                     `json:"yearFrom" db:"year_from"`
	MonthTo       int                     `json:"monthTo" db:"month_to"`
	YearTo        int                     `json:"yearTo" db:"year_to"`
	LastSynced    time.Time               `json:"-" db:"last_synced"`
	Roles         []ProjectExperienceRole `json:"roles" db:"-"`
}

// HasAnyCompetency reports whether the experience is tagged with at least
// one of the given competencies, ignoring case.
func (p ProjectExperience) HasAnyCompetency(competencies []string) bool {
	for _, want := range competencies {
		for _, have := range p.Competencies {
			if equalFold(want, have) {
				return true
			}
		}
	}
	return false
}

// ProjectExperienceRole is a role the employee held on a project.
type ProjectExperienceRole struct {
	ID                  string    `json:"id" db:"id"`
	ProjectExperienceID string    `json:"-" db:"project_experience_id"`
	Title               string    `json:"title" db:"title"`
	Description         string    `json:"description" db:"description"`
	LastSynced          time.Time `json:"-" db:"last_synced"`
}

// UpsertResult describes what UpsertFromSource did with a record.
type UpsertResult struct {
	ID      uuid.UUID
	Created bool
	// PreviousImageURL is the stored image URL before the update, empty on insert.
	PreviousImageURL string
}
