package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carebridge/backend/internal/domain/clinical"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/carebridge/backend/internal/infrastructure/persistence/models"
)

// GormPatientRepository implements clinical.PatientRepository using GORM
type GormPatientRepository struct {
	db *gorm.DB
}

// NewGormPatientRepository creates a new GormPatientRepository
func NewGormPatientRepository(db *gorm.DB) *GormPatientRepository {
	return &GormPatientRepository{db: db}
}

// FindByID finds a patient by its ID
func (r *GormPatientRepository) FindByID(ctx context.Context, id uuid.UUID) (*clinical.Patient, error) {
	var model models.PatientModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCasePartnerID finds a patient by their telemedicine partner identity
func (r *GormPatientRepository) FindByCasePartnerID(ctx context.Context, casePartnerID string) (*clinical.Patient, error) {
	if casePartnerID == "" {
		return nil, shared.ErrNotFound
	}
	var model models.PatientModel
	if err := r.db.WithContext(ctx).First(&model, "case_partner_id = ?", casePartnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a patient read model
func (r *GormPatientRepository) Save(ctx context.Context, patient *clinical.Patient) error {
	var model models.PatientModel
	model.FromDomain(patient)
	return r.db.WithContext(ctx).Save(&model).Error
}

// Ensure GormPatientRepository implements PatientRepository
var _ clinical.PatientRepository = (*GormPatientRepository)(nil)
