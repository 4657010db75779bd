package repository

import (
	"gorm.io/gorm"

	"github.com/fixmarket/corelink/app/models"
)

// publishedEventRepository implements PublishedEventRepository on GORM/MySQL.
type publishedEventRepository struct {
	db *gorm.DB
}

// NewPublishedEventRepository creates a new published event repository instance
func NewPublishedEventRepository(db *gorm.DB) PublishedEventRepository {
	return &publishedEventRepository{db: db}
}

func (r *publishedEventRepository) Create(event *models.PublishedEvent) error {
	return r.db.Create(event).Error
}
