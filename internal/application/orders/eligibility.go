package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/carebridge/backend/internal/domain/clinical"
	"github.com/carebridge/backend/internal/domain/ordering"
)

// Eligibility criteria names, used in skip logs and approval reasons
const (
	CriterionStandardTreatment   = "standard_treatment"
	CriterionDosageWithinLimit   = "dosage_within_limit"
	CriterionNoContraindications = "no_contraindications"
	CriterionPreApproved         = "treatment_pre_approved"
	CriterionAgeWithinBand       = "age_within_band"
	CriterionLinkageComplete     = "linkage_complete"
)

// EligibilityPolicy holds the configurable bounds of the approval policy
type EligibilityPolicy struct {
	// MinAge and MaxAge bound the patient age band (inclusive)
	MinAge int
	MaxAge int
}

// DefaultEligibilityPolicy returns the default policy bounds
func DefaultEligibilityPolicy() EligibilityPolicy {
	return EligibilityPolicy{MinAge: 18, MaxAge: 100}
}

// EligibilityInput carries everything the policy evaluates
type EligibilityInput struct {
	Order     *ordering.Order
	Patient   *clinical.Patient
	Treatment *clinical.Treatment
}

// EligibilityResult is the outcome of a policy evaluation
type EligibilityResult struct {
	Eligible       bool
	FailedCriteria []string
}

// Reason renders a human-readable eligibility outcome for audit fields
func (r EligibilityResult) Reason() string {
	if r.Eligible {
		return "All eligibility criteria met: standard treatment, dosage within limit, " +
			"no contraindications, pre-approved treatment, age within band, linkage complete"
	}
	return "Failed criteria: " + strings.Join(r.FailedCriteria, ", ")
}

// EvaluateEligibility applies the autonomous-approval policy. It is a
// pure function of its inputs and the reference time.
//
// The policy is conjunctive: an order is eligible only if all six
// criteria hold. Missing or unparsable data disqualifies rather than
// defaulting to eligible.
func EvaluateEligibility(in EligibilityInput, policy EligibilityPolicy, now time.Time) EligibilityResult {
	var failed []string

	fail := func(criterion string) {
		failed = append(failed, criterion)
	}

	// Linkage: the order must reference a user, a treatment, a shipping
	// address and an assigned clinician, and the referenced records must
	// have been loadable
	if in.Order == nil || in.Patient == nil || in.Treatment == nil ||
		in.Order.TreatmentID == nil || in.Order.ShippingAddressID == nil ||
		in.Order.AssignedClinicianID == nil {
		fail(CriterionLinkageComplete)
	}

	if in.Treatment != nil {
		if in.Treatment.Compounded {
			fail(CriterionStandardTreatment)
		}
		if !in.Treatment.DosageWithinLimit() {
			fail(CriterionDosageWithinLimit)
		}
		if !in.Treatment.PreApproved {
			fail(CriterionPreApproved)
		}
	} else {
		fail(CriterionStandardTreatment)
		fail(CriterionDosageWithinLimit)
		fail(CriterionPreApproved)
	}

	if in.Patient != nil {
		if flagged := in.Patient.Answers.FlaggedContraindications(); len(flagged) > 0 {
			fail(fmt.Sprintf("%s (%s)", CriterionNoContraindications, strings.Join(flagged, ",")))
		}
		age, err := in.Patient.AgeAt(now)
		if err != nil || age < policy.MinAge || age > policy.MaxAge {
			fail(CriterionAgeWithinBand)
		}
	} else {
		fail(CriterionNoContraindications)
		fail(CriterionAgeWithinBand)
	}

	return EligibilityResult{
		Eligible:       len(failed) == 0,
		FailedCriteria: failed,
	}
}
