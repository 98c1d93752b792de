package clinical

import (
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Treatment is a read model of the product catalog's treatment record,
// owned by an external collaborator
type Treatment struct {
	shared.BaseEntity
	ClinicID uuid.UUID
	Name     string

	// Compounded treatments require pharmacist titration and are never
	// auto-approved
	Compounded bool

	// DosageMg is the prescribed dosage strength
	DosageMg decimal.Decimal

	// MaxAutoApproveDosageMg is the dosage ceiling for autonomous approval
	MaxAutoApproveDosageMg decimal.Decimal

	// PreApproved marks treatments cleared by clinical governance for
	// policy-based approval
	PreApproved bool

	// CoveragePartner is the product-level fulfillment routing record;
	// empty for orders predating that mechanism
	CoveragePartner string

	// LegacyPharmacyProvider is the per-treatment provider field used for
	// routing before coverage records existed
	LegacyPharmacyProvider string
}

// DosageWithinLimit reports whether the treatment's dosage is within the
// autonomous-approval ceiling. A treatment without a configured ceiling
// fails closed.
func (t *Treatment) DosageWithinLimit() bool {
	if t.MaxAutoApproveDosageMg.IsZero() {
		return false
	}
	return t.DosageMg.GreaterThan(decimal.Zero) &&
		t.DosageMg.LessThanOrEqual(t.MaxAutoApproveDosageMg)
}

// Validate checks the invariants a treatment read model must hold
func (t *Treatment) Validate() error {
	if t.Name == "" {
		return shared.NewDomainError("INVALID_TREATMENT", "Treatment name cannot be empty")
	}
	if t.DosageMg.IsNegative() {
		return shared.NewDomainError("INVALID_DOSAGE", "Dosage cannot be negative")
	}
	return nil
}
