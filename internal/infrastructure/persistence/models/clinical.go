package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carebridge/backend/internal/domain/clinical"
)

// PatientModel is the persistence model for the Patient read model
type PatientModel struct {
	BaseModel
	ClinicID    uuid.UUID `gorm:"type:uuid;not null;index"`
	FirstName   string    `gorm:"type:varchar(100)"`
	LastName    string    `gorm:"type:varchar(100)"`
	Email       string    `gorm:"type:varchar(200);index"`
	Phone       string    `gorm:"type:varchar(50)"`
	DateOfBirth string    `gorm:"type:varchar(30)"`
	Gender      string    `gorm:"type:varchar(20)"`

	CasePartnerID     string `gorm:"type:varchar(255);index"`
	PaymentCustomerID string `gorm:"type:varchar(255);index"`

	Answers map[string]string `gorm:"serializer:json;type:text"`
}

// TableName returns the table name for GORM
func (PatientModel) TableName() string {
	return "patients"
}

// ToDomain converts the persistence model to a domain Patient
func (m *PatientModel) ToDomain() *clinical.Patient {
	return &clinical.Patient{
		BaseEntity:        m.BaseModel.ToDomain(),
		ClinicID:          m.ClinicID,
		FirstName:         m.FirstName,
		LastName:          m.LastName,
		Email:             m.Email,
		Phone:             m.Phone,
		DateOfBirth:       m.DateOfBirth,
		Gender:            m.Gender,
		CasePartnerID:     m.CasePartnerID,
		PaymentCustomerID: m.PaymentCustomerID,
		Answers:           clinical.QuestionnaireAnswers(m.Answers),
	}
}

// FromDomain populates the persistence model from a domain Patient
func (m *PatientModel) FromDomain(patient *clinical.Patient) {
	m.FromDomainBaseEntity(patient.BaseEntity)
	m.ClinicID = patient.ClinicID
	m.FirstName = patient.FirstName
	m.LastName = patient.LastName
	m.Email = patient.Email
	m.Phone = patient.Phone
	m.DateOfBirth = patient.DateOfBirth
	m.Gender = patient.Gender
	m.CasePartnerID = patient.CasePartnerID
	m.PaymentCustomerID = patient.PaymentCustomerID
	m.Answers = patient.Answers
}

// TreatmentModel is the persistence model for the Treatment read model
type TreatmentModel struct {
	BaseModel
	ClinicID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Name       string    `gorm:"type:varchar(200);not null"`
	Compounded bool      `gorm:"not null;default:false"`

	DosageMg               decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0"`
	MaxAutoApproveDosageMg decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0"`
	PreApproved            bool            `gorm:"not null;default:false"`

	CoveragePartner        string `gorm:"type:varchar(50)"`
	LegacyPharmacyProvider string `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (TreatmentModel) TableName() string {
	return "treatments"
}

// ToDomain converts the persistence model to a domain Treatment
func (m *TreatmentModel) ToDomain() *clinical.Treatment {
	return &clinical.Treatment{
		BaseEntity:             m.BaseModel.ToDomain(),
		ClinicID:               m.ClinicID,
		Name:                   m.Name,
		Compounded:             m.Compounded,
		DosageMg:               m.DosageMg,
		MaxAutoApproveDosageMg: m.MaxAutoApproveDosageMg,
		PreApproved:            m.PreApproved,
		CoveragePartner:        m.CoveragePartner,
		LegacyPharmacyProvider: m.LegacyPharmacyProvider,
	}
}

// FromDomain populates the persistence model from a domain Treatment
func (m *TreatmentModel) FromDomain(treatment *clinical.Treatment) {
	m.FromDomainBaseEntity(treatment.BaseEntity)
	m.ClinicID = treatment.ClinicID
	m.Name = treatment.Name
	m.Compounded = treatment.Compounded
	m.DosageMg = treatment.DosageMg
	m.MaxAutoApproveDosageMg = treatment.MaxAutoApproveDosageMg
	m.PreApproved = treatment.PreApproved
	m.CoveragePartner = treatment.CoveragePartner
	m.LegacyPharmacyProvider = treatment.LegacyPharmacyProvider
}
