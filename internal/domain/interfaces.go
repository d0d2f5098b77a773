package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EmployeeFilter defines criteria for listing employees
type EmployeeFilter struct {
	// Country restricts results to emails whose domain ends in "."+Country.
	Country string
	// Now is the reference instant for the active check.
	Now    time.Time
	Limit  int
	Offset int
}

// EmployeeRepository defines the interface for employee data access
type EmployeeRepository interface {
	// UpsertFromSource reconciles one source record by email inside its own
	// transaction. Sub-records are never modified.
	UpsertFromSource(ctx context.Context, e *Employee) (UpsertResult, error)
	// UpdateImageURL points the row at the locally stored image copy.
	UpdateImageURL(ctx context.Context, id uuid.UUID, imageURL string) error

	ListActive(ctx context.Context, filter EmployeeFilter) ([]Employee, error)
	ListActiveAggregates(ctx context.Context, filter EmployeeFilter) ([]EmployeeAggregate, error)
	FindByAliasAndCountry(ctx context.Context, alias, country string) ([]Employee, error)
	GetAggregate(ctx context.Context, id uuid.UUID) (*EmployeeAggregate, error)
	ListCompetencies(ctx context.Context) ([]string, error)

	UpsertEmergencyContact(ctx context.Context, c *EmergencyContact) error
	UpsertAllergiesAndDietaryPreferences(ctx context.Context, a *AllergiesAndDietaryPreferences) error

	Ping(ctx context.Context) error
}

// ProjectExperienceRepository stores CV project experiences per employee email.
type ProjectExperienceRepository interface {
	// SyncForEmployee upserts the given experiences and their roles, stamping
	// them with syncedAt, and prunes everything older for that email.
	SyncForEmployee(ctx context.Context, email string, experiences []ProjectExperience, syncedAt time.Time) error
	ListByEmail(ctx context.Context, email string) ([]ProjectExperience, error)
}

// ImageStore keeps local copies of employee images.
type ImageStore interface {
	Save(ctx context.Context, employeeID uuid.UUID, sourceURI string) (string, error)
	Delete(ctx context.Context, storedURL string) error
}
