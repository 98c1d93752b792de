package orders

import (
	"testing"
	"time"

	"github.com/carebridge/backend/internal/domain/clinical"
	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eligibleInput builds an input that satisfies all six criteria
func eligibleInput(t *testing.T) EligibilityInput {
	t.Helper()

	order, err := ordering.NewOrder(uuid.New(), uuid.New(), decimal.NewFromInt(99), "usd")
	require.NoError(t, err)
	treatmentID := uuid.New()
	addressID := uuid.New()
	clinicianID := uuid.New()
	order.TreatmentID = &treatmentID
	order.ShippingAddressID = &addressID
	order.AssignedClinicianID = &clinicianID
	order.Status = ordering.OrderStatusPaid

	patient := &clinical.Patient{
		DateOfBirth: time.Now().AddDate(-35, 0, -1).Format("2006-01-02"),
		Answers: clinical.QuestionnaireAnswers{
			"pregnancy":      "no",
			"breastfeeding":  "no",
			"severe_allergy": "no",
		},
	}

	treatment := &clinical.Treatment{
		Name:                   "Finasteride 1mg",
		Compounded:             false,
		DosageMg:               decimal.NewFromInt(1),
		MaxAutoApproveDosageMg: decimal.NewFromInt(5),
		PreApproved:            true,
	}

	return EligibilityInput{Order: order, Patient: patient, Treatment: treatment}
}

func TestEvaluateEligibility_AllCriteriaMet(t *testing.T) {
	result := EvaluateEligibility(eligibleInput(t), DefaultEligibilityPolicy(), time.Now())

	assert.True(t, result.Eligible)
	assert.Empty(t, result.FailedCriteria)
	assert.Contains(t, result.Reason(), "All eligibility criteria met")
}

// The policy is conjunctive: flipping any single criterion to false must
// flip the decision from approve to skip, holding the other five fixed.
func TestEvaluateEligibility_Conjunctive(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*EligibilityInput)
		criterion string
	}{
		{
			name:      "compounded treatment",
			mutate:    func(in *EligibilityInput) { in.Treatment.Compounded = true },
			criterion: CriterionStandardTreatment,
		},
		{
			name:      "dosage over limit",
			mutate:    func(in *EligibilityInput) { in.Treatment.DosageMg = decimal.NewFromInt(10) },
			criterion: CriterionDosageWithinLimit,
		},
		{
			name:      "contraindication flagged",
			mutate:    func(in *EligibilityInput) { in.Patient.Answers["pregnancy"] = "yes" },
			criterion: CriterionNoContraindications,
		},
		{
			name:      "not pre-approved",
			mutate:    func(in *EligibilityInput) { in.Treatment.PreApproved = false },
			criterion: CriterionPreApproved,
		},
		{
			name: "under age",
			mutate: func(in *EligibilityInput) {
				in.Patient.DateOfBirth = time.Now().AddDate(-17, 0, -1).Format("2006-01-02")
			},
			criterion: CriterionAgeWithinBand,
		},
		{
			name:      "missing clinician linkage",
			mutate:    func(in *EligibilityInput) { in.Order.AssignedClinicianID = nil },
			criterion: CriterionLinkageComplete,
		},
		{
			name:      "missing shipping address linkage",
			mutate:    func(in *EligibilityInput) { in.Order.ShippingAddressID = nil },
			criterion: CriterionLinkageComplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := eligibleInput(t)
			tt.mutate(&input)

			result := EvaluateEligibility(input, DefaultEligibilityPolicy(), time.Now())

			assert.False(t, result.Eligible)
			require.Len(t, result.FailedCriteria, 1)
			assert.Contains(t, result.FailedCriteria[0], tt.criterion)
			assert.Contains(t, result.Reason(), "Failed criteria")
		})
	}
}

func TestEvaluateEligibility_AgeBoundaries(t *testing.T) {
	policy := DefaultEligibilityPolicy()
	now := time.Now()

	tests := []struct {
		name     string
		dob      string
		eligible bool
	}{
		{"seventeen ineligible", now.AddDate(-17, 0, -1).Format("2006-01-02"), false},
		{"eighteen eligible", now.AddDate(-18, 0, -1).Format("2006-01-02"), true},
		{"one hundred eligible", now.AddDate(-100, 0, -1).Format("2006-01-02"), true},
		{"over one hundred ineligible", now.AddDate(-101, 0, -1).Format("2006-01-02"), false},
		{"missing dob fails closed", "", false},
		{"unparsable dob fails closed", "yesterday", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := eligibleInput(t)
			input.Patient.DateOfBirth = tt.dob

			result := EvaluateEligibility(input, policy, now)

			assert.Equal(t, tt.eligible, result.Eligible)
		})
	}
}

func TestEvaluateEligibility_MissingRecordsFailClosed(t *testing.T) {
	input := eligibleInput(t)
	input.Patient = nil
	input.Treatment = nil

	result := EvaluateEligibility(input, DefaultEligibilityPolicy(), time.Now())

	assert.False(t, result.Eligible)
	assert.Contains(t, result.FailedCriteria, CriterionLinkageComplete)
	assert.Contains(t, result.FailedCriteria, CriterionAgeWithinBand)
	assert.Contains(t, result.FailedCriteria, CriterionStandardTreatment)
}
