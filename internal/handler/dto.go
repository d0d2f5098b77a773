package handler

import (
	"time"

	"github.com/lib/pq"
	"github.com/locvowork/employee_directory/internal/database"
	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/locvowork/employee_directory/internal/service"
)

type EmployeesJSON struct {
	Employees []EmployeeJSON `json:"employees"`
}

// EmployeeJSON is the public view of an employee.
type EmployeeJSON struct {
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Telephone     string     `json:"telephone,omitempty"`
	ImageURL      string     `json:"imageUrl,omitempty"`
	ImageThumbURL string     `json:"imageThumbUrl,omitempty"`
	OfficeName    string     `json:"officeName"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	Competences   []string   `json:"competences"`
}

type EmployeesExtendedJSON struct {
	Employees []EmployeeExtendedJSON `json:"employees"`
}

// EmployeeExtendedJSON adds the user-controlled records.
type EmployeeExtendedJSON struct {
	EmployeeJSON
	EndDate                        *time.Time                          `json:"endDate,omitempty"`
	EmergencyContact               *EmergencyContactJSON               `json:"emergencyContact"`
	AllergiesAndDietaryPreferences *AllergiesAndDietaryPreferencesJSON `json:"allergiesAndDietaryPreferences"`
}

type EmergencyContactJSON struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Relation string `json:"relation"`
	Comment  string `json:"comment"`
}

type AllergiesAndDietaryPreferencesJSON struct {
	DefaultAllergies   []string `json:"defaultAllergies"`
	OtherAllergies     []string `json:"otherAllergies"`
	DietaryPreferences []string `json:"dietaryPreferences"`
	Comment            string   `json:"comment"`
}

type ProjectExperienceJSON struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Customer     string     `json:"customer"`
	Competencies []string   `json:"competencies"`
	MonthFrom    int        `json:"monthFrom"`
	YearFrom     int        `json:"yearFrom"`
	MonthTo      int        `json:"monthTo"`
	YearTo       int        `json:"yearTo"`
	Roles        []RoleJSON `json:"roles"`
}

type RoleJSON struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type CvJSON struct {
	Employee           EmployeeJSON            `json:"employee"`
	Competencies       []string                `json:"competencies"`
	ProjectExperiences []ProjectExperienceJSON `json:"projectExperiences"`
}

type HealthJSON struct {
	Database bool `json:"database"`
}

func toEmployeeJSON(e domain.Employee) EmployeeJSON {
	return EmployeeJSON{
		Name:          e.Name,
		Email:         e.Email,
		Telephone:     e.Telephone,
		ImageURL:      e.ImageURL,
		ImageThumbURL: e.ImageThumbURL,
		OfficeName:    e.OfficeName,
		StartDate:     e.StartDate,
		Competences:   stringList(e.Competencies),
	}
}

func toEmployeeExtendedJSON(a domain.EmployeeAggregate) EmployeeExtendedJSON {
	out := EmployeeExtendedJSON{
		EmployeeJSON: toEmployeeJSON(a.Employee),
		EndDate:      a.Employee.EndDate,
	}
	if c := a.EmergencyContact; c != nil {
		out.EmergencyContact = &EmergencyContactJSON{
			Name:     c.Name,
			Phone:    c.Phone,
			Relation: c.Relation,
			Comment:  c.Comment,
		}
	}
	if p := a.AllergiesAndDietaryPreferences; p != nil {
		out.AllergiesAndDietaryPreferences = &AllergiesAndDietaryPreferencesJSON{
			DefaultAllergies:   stringList(p.DefaultAllergies),
			OtherAllergies:     stringList(p.OtherAllergies),
			DietaryPreferences: stringList(p.DietaryPreferences),
			Comment:            p.Comment,
		}
	}
	return out
}

func toProjectExperiencesJSON(in []domain.ProjectExperience) []ProjectExperienceJSON {
	out := make([]ProjectExperienceJSON, len(in))
	for i, p := range in {
		roles := make([]RoleJSON, len(p.Roles))
		for j, r := range p.Roles {
			roles[j] = RoleJSON{Title: r.Title, Description: r.Description}
		}
		out[i] = ProjectExperienceJSON{
			ID:           p.ID,
			Title:        p.Title,
			Description:  p.Description,
			Customer:     p.Customer,
			Competencies: stringList(p.Competencies),
			MonthFrom:    p.MonthFrom,
			YearFrom:     p.YearFrom,
			MonthTo:      p.MonthTo,
			YearTo:       p.YearTo,
			Roles:        roles,
		}
	}
	return out
}

func toCvJSON(cv *service.EmployeeCv) CvJSON {
	return CvJSON{
		Employee:           toEmployeeJSON(cv.Employee),
		Competencies:       stringList(cv.Competencies),
		ProjectExperiences: toProjectExperiencesJSON(cv.ProjectExperiences),
	}
}

func docToEmployeeJSON(d database.EmployeeDoc) EmployeeJSON {
	return EmployeeJSON{
		Name:        d.Name,
		Email:       d.Email,
		Telephone:   d.Telephone,
		ImageURL:    d.ImageURL,
		OfficeName:  d.OfficeName,
		Competences: stringList(d.Competencies),
	}
}

func (j EmergencyContactJSON) toDomain() *domain.EmergencyContact {
	return &domain.EmergencyContact{
		Name:     j.Name,
		Phone:    j.Phone,
		Relation: j.Relation,
		Comment:  j.Comment,
	}
}

func (j AllergiesAndDietaryPreferencesJSON) toDomain() *domain.AllergiesAndDietaryPreferences {
	return &domain.AllergiesAndDietaryPreferences{
		DefaultAllergies:   pq.StringArray(stringList(j.DefaultAllergies)),
		OtherAllergies:     pq.StringArray(stringList(j.OtherAllergies)),
		DietaryPreferences: pq.StringArray(stringList(j.DietaryPreferences)),
		Comment:            j.Comment,
	}
}

// stringList returns a non-nil copy so lists encode as [] rather than null.
func stringList(in []string) []string {
	return append([]string{}, in...)
}
