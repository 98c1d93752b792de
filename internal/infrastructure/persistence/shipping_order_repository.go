package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carebridge/backend/internal/domain/fulfillment"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/carebridge/backend/internal/infrastructure/persistence/models"
)

// GormShippingOrderRepository implements fulfillment.ShippingOrderRepository using GORM
type GormShippingOrderRepository struct {
	db *gorm.DB
}

// NewGormShippingOrderRepository creates a new GormShippingOrderRepository
func NewGormShippingOrderRepository(db *gorm.DB) *GormShippingOrderRepository {
	return &GormShippingOrderRepository{db: db}
}

// FindByID finds a shipping order by its ID
func (r *GormShippingOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*fulfillment.ShippingOrder, error) {
	var model models.ShippingOrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPartnerOrderID finds a shipping order by the partner's own order identifier
func (r *GormShippingOrderRepository) FindByPartnerOrderID(ctx context.Context, partner fulfillment.PharmacyPartner, partnerOrderID string) (*fulfillment.ShippingOrder, error) {
	if partnerOrderID == "" {
		return nil, shared.ErrNotFound
	}
	var model models.ShippingOrderModel
	if err := r.db.WithContext(ctx).
		Where("partner = ? AND partner_order_id = ?", partner, partnerOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrderID finds all shipping orders for an order, newest first
func (r *GormShippingOrderRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]fulfillment.ShippingOrder, error) {
	var modelList []models.ShippingOrderModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&modelList).Error; err != nil {
		return nil, err
	}

	shippingOrders := make([]fulfillment.ShippingOrder, len(modelList))
	for i := range modelList {
		shippingOrders[i] = *modelList[i].ToDomain()
	}
	return shippingOrders, nil
}

// Save creates or updates a shipping order
func (r *GormShippingOrderRepository) Save(ctx context.Context, shippingOrder *fulfillment.ShippingOrder) error {
	var model models.ShippingOrderModel
	model.FromDomain(shippingOrder)
	return r.db.WithContext(ctx).Save(&model).Error
}

// Ensure GormShippingOrderRepository implements ShippingOrderRepository
var _ fulfillment.ShippingOrderRepository = (*GormShippingOrderRepository)(nil)
