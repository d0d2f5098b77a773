package cvpartner

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// User is one entry of the CV Partner user listing.
type User struct {
	UserID      string `json:"user_id"`
	DefaultCvID string `json:"default_cv_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Telephone   string `json:"telephone"`
	OfficeName  string `json:"office_name"`
	Image       Image  `json:"image"`
	Deactivated bool   `json:"deactivated"`
}

type Image struct {
	URL   string `json:"url"`
	Thumb struct {
		URL string `json:"url"`
	} `json:"thumb"`
}

// CV is the subset of a CV document the directory keeps.
type CV struct {
	ID                 string              `json:"_id"`
	Technologies       []Technology        `json:"technologies"`
	ProjectExperiences []ProjectExperience `json:"project_experiences"`
}

type Technology struct {
	Category         LocalizedText `json:"category"`
	TechnologySkills []Skill        `json:"technology_skills"`
}

type Skill struct {
	Tags LocalizedText `json:"tags"`
}

type ProjectExperience struct {
	ID                      string        `json:"_id"`
	Customer                LocalizedText `json:"customer"`
	Description             LocalizedText `json:"description"`
	LongDescription         LocalizedText `json:"long_description"`
	MonthFrom               FlexInt       `json:"month_from"`
	YearFrom                FlexInt       `json:"year_from"`
	MonthTo                 FlexInt       `json:"month_to"`
	YearTo                  FlexInt       `json:"year_to"`
	ProjectExperienceSkills []Skill       `json:"project_experience_skills"`
	Roles                   []Role        `json:"roles"`
}

type Role struct {
	ID      string        `json:"_id"`
	Name    LocalizedText `json:"name"`
	Summary LocalizedText `json:"summary"`
}

// LocalizedText maps a language code to text, e.g. {"no": "...", "int": "..."}.
type LocalizedText map[string]string

// preferredLanguages is the lookup order for Text.
var preferredLanguages = []string{"no", "int", "en", "se", "dk"}

// Text returns the value in the first preferred language present, falling
// back to the alphabetically first non-empty language.
func (t LocalizedText) Text() string {
	for _, lang := range preferredLanguages {
		if v := strings.TrimSpace(t[lang]); v != "" {
			return v
		}
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(t[k]); v != "" {
			return v
		}
	}
	return ""
}

// FlexInt decodes numbers that CV Partner sends either as JSON numbers or
// as strings. Empty strings and null decode to 0.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		var num json.Number
		if jerr := json.Unmarshal(b, &num); jerr == nil {
			if fl, ferr := num.Float64(); ferr == nil {
				*f = FlexInt(fl)
				return nil
			}
		}
		return err
	}
	*f = FlexInt(n)
	return nil
}
