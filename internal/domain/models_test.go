package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmployeeIsActive(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	future := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		endDate *time.Time
		want    bool
	}{
		{"no end date", nil, true},
		{"ended yesterday", &past, false},
		{"ends tomorrow", &future, true},
		{"last day is today", &today, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Employee{EndDate: tt.endDate}
			assert.Equal(t, tt.want, e.IsActive(now))
		})
	}
}

func TestProjectExperienceHasAnyCompetency(t *testing.T) {
	p := ProjectExperience{Competencies: []string{"Go", "PostgreSQL"}}

	assert.True(t, p.HasAnyCompetency([]string{"go"}))
	assert.True(t, p.HasAnyCompetency([]string{"Kotlin", " postgresql "}))
	assert.False(t, p.HasAnyCompetency([]string{"Kotlin"}))
	assert.False(t, p.HasAnyCompetency(nil))
}

func TestVocabularies(t *testing.T) {
	assert.Len(t, DefaultAllergies(), 15)
	assert.Len(t, DietaryPreferences(), 8)

	assert.True(t, IsDefaultAllergy("MILK"))
	assert.False(t, IsDefaultAllergy("milk"))
	assert.False(t, IsDefaultAllergy("apple"))

	assert.True(t, IsDietaryPreference("NO_PREFERENCES"))
	assert.False(t, IsDietaryPreference("CARNIVORE"))

	list := DefaultAllergies()
	list[0] = "CHANGED"
	assert.Equal(t, "MILK", DefaultAllergies()[0])
}
