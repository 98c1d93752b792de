package clinical

import (
	"context"

	"github.com/google/uuid"
)

// PatientRepository reads patient records owned by the user-management
// collaborator
type PatientRepository interface {
	// FindByID finds a patient by internal ID
	FindByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// FindByCasePartnerID finds a patient by their telemedicine partner
	// identity
	FindByCasePartnerID(ctx context.Context, casePartnerID string) (*Patient, error)

	// Save creates or updates a patient read model
	Save(ctx context.Context, patient *Patient) error
}

// TreatmentRepository reads treatment records owned by the catalog
// collaborator
type TreatmentRepository interface {
	// FindByID finds a treatment by internal ID
	FindByID(ctx context.Context, id uuid.UUID) (*Treatment, error)

	// Save creates or updates a treatment read model
	Save(ctx context.Context, treatment *Treatment) error
}
