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

// GormTreatmentRepository implements clinical.TreatmentRepository using GORM
type GormTreatmentRepository struct {
	db *gorm.DB
}

// NewGormTreatmentRepository creates a new GormTreatmentRepository
func NewGormTreatmentRepository(db *gorm.DB) *GormTreatmentRepository {
	return &GormTreatmentRepository{db: db}
}

// FindByID finds a treatment by its ID
func (r *GormTreatmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*clinical.Treatment, error) {
	var model models.TreatmentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a treatment read model
func (r *GormTreatmentRepository) Save(ctx context.Context, treatment *clinical.Treatment) error {
	var model models.TreatmentModel
	model.FromDomain(treatment)
	return r.db.WithContext(ctx).Save(&model).Error
}

// Ensure GormTreatmentRepository implements TreatmentRepository
var _ clinical.TreatmentRepository = (*GormTreatmentRepository)(nil)
