package clinical

import (
	"fmt"
	"testing"
	"time"

	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dobYearsAgo(years int) string {
	return time.Now().AddDate(-years, 0, -1).Format("2006-01-02")
}

func TestPatient_AgeAt(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		dob     string
		wantAge int
		wantErr bool
	}{
		{"eighteen", dobYearsAgo(18), 18, false},
		{"seventeen", dobYearsAgo(17), 17, false},
		{"one hundred", dobYearsAgo(100), 100, false},
		{"us format", time.Now().AddDate(-30, 0, -1).Format("01/02/2006"), 30, false},
		{"missing", "", 0, true},
		{"unparsable", "not-a-date", 0, true},
		{"future", now.AddDate(1, 0, 0).Format("2006-01-02"), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Patient{DateOfBirth: tt.dob}
			age, err := p.AgeAt(now)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAge, age)
		})
	}
}

func TestPatient_AgeAt_BirthdayNotYetReached(t *testing.T) {
	// Born 18 years ago tomorrow: still 17 today
	ref := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	p := &Patient{DateOfBirth: "2008-06-16"}

	age, err := p.AgeAt(ref)

	require.NoError(t, err)
	assert.Equal(t, 17, age)
}

func TestQuestionnaireAnswers_FlaggedContraindications(t *testing.T) {
	tests := []struct {
		name    string
		answers QuestionnaireAnswers
		flagged []string
	}{
		{
			name:    "clean questionnaire",
			answers: QuestionnaireAnswers{"pregnancy": "no", "cardiac_disease": "No"},
			flagged: nil,
		},
		{
			name:    "pregnancy yes",
			answers: QuestionnaireAnswers{"pregnancy": "yes"},
			flagged: []string{"pregnancy"},
		},
		{
			name:    "boolean true",
			answers: QuestionnaireAnswers{"renal_disease": "true"},
			flagged: []string{"renal_disease"},
		},
		{
			name:    "multiple flags",
			answers: QuestionnaireAnswers{"breastfeeding": "Yes", "severe_allergy": "1"},
			flagged: []string{"breastfeeding", "severe_allergy"},
		},
		{
			name:    "unknown fields ignored",
			answers: QuestionnaireAnswers{"smoker": "yes"},
			flagged: nil,
		},
		{
			name:    "empty answers",
			answers: QuestionnaireAnswers{},
			flagged: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.flagged, tt.answers.FlaggedContraindications())
		})
	}
}

func TestPatient_AgeAt_ErrorIsDomainError(t *testing.T) {
	p := &Patient{DateOfBirth: "31-31-2000"}
	_, err := p.AgeAt(time.Now())

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_DOB", domainErr.Code)
	assert.Equal(t, fmt.Sprintf("Unparsable date of birth %q", "31-31-2000"), domainErr.Message)
}
