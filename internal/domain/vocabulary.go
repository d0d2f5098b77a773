package domain

import "strings"

type DefaultAllergy string

const (
	AllergyMilk      DefaultAllergy = "MILK"
	AllergyLactose   DefaultAllergy = "LACTOSE"
	AllergyEgg       DefaultAllergy = "EGG"
	AllergyGluten    DefaultAllergy = "GLUTEN"
	AllergyPeanuts   DefaultAllergy = "PEANUTS"
	AllergyNuts      DefaultAllergy = "NUTS"
	AllergyShellfish DefaultAllergy = "SHELLFISH"
	AllergyFish      DefaultAllergy = "FISH"
	AllergySoy       DefaultAllergy = "SOY"
	AllergyCelery    DefaultAllergy = "CELERY"
	AllergyMustard   DefaultAllergy = "MUSTARD"
	AllergySesame    DefaultAllergy = "SESAME"
	AllergySulphites DefaultAllergy = "SULPHITES"
	AllergyLupin     DefaultAllergy = "LUPIN"
	AllergyMolluscs  DefaultAllergy = "MOLLUSCS"
)

type DietaryPreference string

const (
	DietNoPreferences DietaryPreference = "NO_PREFERENCES"
	DietVegetarian    DietaryPreference = "VEGETARIAN"
	DietVegan         DietaryPreference = "VEGAN"
	DietPescetarian   DietaryPreference = "PESCETARIAN"
	DietHalal         DietaryPreference = "HALAL"
	DietKosher        DietaryPreference = "KOSHER"
	DietNoPork        DietaryPreference = "NO_PORK"
	DietNoBeef        DietaryPreference = "NO_BEEF"
)

var defaultAllergies = []DefaultAllergy{
	AllergyMilk, AllergyLactose, AllergyEgg, AllergyGluten, AllergyPeanuts,
	AllergyNuts, AllergyShellfish, AllergyFish, AllergySoy, AllergyCelery,
	AllergyMustard, AllergySesame, AllergySulphites, AllergyLupin, AllergyMolluscs,
}

var dietaryPreferences = []DietaryPreference{
	DietNoPreferences, DietVegetarian, DietVegan, DietPescetarian,
	DietHalal, DietKosher, DietNoPork, DietNoBeef,
}

// DefaultAllergies returns the closed allergy vocabulary in display order.
func DefaultAllergies() []string {
	out := make([]string, len(defaultAllergies))
	for i, a := range defaultAllergies {
		out[i] = string(a)
	}
	return out
}

// DietaryPreferences returns the closed dietary vocabulary in display order.
func DietaryPreferences() []string {
	out := make([]string, len(dietaryPreferences))
	for i, d := range dietaryPreferences {
		out[i] = string(d)
	}
	return out
}

func IsDefaultAllergy(s string) bool {
	for _, a := range defaultAllergies {
		if string(a) == s {
			return true
		}
	}
	return false
}

func IsDietaryPreference(s string) bool {
	for _, d := range dietaryPreferences {
		if string(d) == s {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
