package repository

import (
	"gorm.io/gorm"

	"github.com/fixmarket/corelink/app/models"
)

// outboundEventRepository implements OutboundEventRepository on GORM/MySQL.
type outboundEventRepository struct {
	db *gorm.DB
}

// NewOutboundEventRepository creates a new outbound event repository instance
func NewOutboundEventRepository(db *gorm.DB) OutboundEventRepository {
	return &outboundEventRepository{db: db}
}

func (r *outboundEventRepository) Create(event *models.OutboundEvent) error {
	return r.db.Create(event).Error
}

func (r *outboundEventRepository) ListOldestFirst() ([]models.OutboundEvent, error) {
	var events []models.OutboundEvent
	err := r.db.Order("failed_at, id").Find(&events).Error
	return events, err
}

func (r *outboundEventRepository) ListNewestFirst() ([]models.OutboundEvent, error) {
	var events []models.OutboundEvent
	err := r.db.Order("failed_at DESC, id DESC").Find(&events).Error
	return events, err
}

func (r *outboundEventRepository) Delete(id uint) error {
	return r.db.Delete(&models.OutboundEvent{}, id).Error
}
