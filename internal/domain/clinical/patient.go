package clinical

import (
	"strings"
	"time"

	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// QuestionnaireAnswers holds a patient's intake questionnaire responses
// keyed by question field name
type QuestionnaireAnswers map[string]string

// contraindicationFields is the denylist of boolean/yes-no questionnaire
// fields that disqualify a patient from autonomous approval
var contraindicationFields = []string{
	"pregnancy",
	"breastfeeding",
	"severe_allergy",
	"cardiac_disease",
	"hepatic_disease",
	"renal_disease",
}

// answerIsAffirmative reports whether a raw answer value means "yes"
func answerIsAffirmative(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "true", "y", "1":
		return true
	}
	return false
}

// FlaggedContraindications scans the denylist fields and returns the
// names of every field answered affirmatively
func (a QuestionnaireAnswers) FlaggedContraindications() []string {
	var flagged []string
	for _, field := range contraindicationFields {
		if answerIsAffirmative(a[field]) {
			flagged = append(flagged, field)
		}
	}
	return flagged
}

// Patient is a read model of the platform's user record, owned by an
// external collaborator. Only the fields the order lifecycle needs are
// carried here.
type Patient struct {
	shared.BaseEntity
	ClinicID    uuid.UUID
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	DateOfBirth string
	Gender      string

	// CasePartnerID is the patient's identity at the telemedicine
	// case-review partner; empty when the patient has not been registered
	// there
	CasePartnerID string

	// PaymentCustomerID is the patient's identity at the payment processor
	PaymentCustomerID string

	Answers QuestionnaireAnswers `gorm:"-"`
}

// dobLayouts are the date-of-birth formats accepted from intake forms
var dobLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	time.RFC3339,
}

// AgeAt returns the patient's age in whole years at the reference time.
// A missing or unparsable date of birth returns an error so callers fail
// closed rather than defaulting to eligible.
func (p *Patient) AgeAt(ref time.Time) (int, error) {
	dob := strings.TrimSpace(p.DateOfBirth)
	if dob == "" {
		return 0, shared.NewDomainError("MISSING_DOB", "Patient has no date of birth on file")
	}

	var parsed time.Time
	var err error
	for _, layout := range dobLayouts {
		parsed, err = time.Parse(layout, dob)
		if err == nil {
			break
		}
	}
	if err != nil {
		return 0, shared.NewDomainErrorf("INVALID_DOB", "Unparsable date of birth %q", dob)
	}

	age := ref.Year() - parsed.Year()
	if ref.Month() < parsed.Month() ||
		(ref.Month() == parsed.Month() && ref.Day() < parsed.Day()) {
		age--
	}
	if age < 0 {
		return 0, shared.NewDomainErrorf("INVALID_DOB", "Date of birth %q is in the future", dob)
	}

	return age, nil
}

// HasCasePartnerIdentity returns true if the patient is registered with
// the telemedicine partner
func (p *Patient) HasCasePartnerIdentity() bool {
	return p.CasePartnerID != ""
}
