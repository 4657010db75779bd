package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fixmarket/corelink/app/models"
)

// inboundEventRepository implements InboundEventRepository on GORM/MySQL.
type inboundEventRepository struct {
	db *gorm.DB
}

// NewInboundEventRepository creates a new inbound event repository instance
func NewInboundEventRepository(db *gorm.DB) InboundEventRepository {
	return &inboundEventRepository{db: db}
}

func (r *inboundEventRepository) Upsert(event *models.InboundEvent) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "message_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"payload",
		}),
	}).Create(event).Error
}

// ClaimNext selects the oldest pending row with a locking read that skips
// rows held by concurrent workers, then flips it to processing before
// committing. The conditional update defends against double claims when
// the store rejects SKIP LOCKED and we fall back to a plain FOR UPDATE.
func (r *inboundEventRepository) ClaimNext() (string, bool, error) {
	var messageID string
	var claimed bool

	err := r.db.Transaction(func(tx *gorm.DB) error {
		row, err := lockOldestPending(tx, true)
		if err != nil {
			// MySQL < 8.0 and MariaDB reject SKIP LOCKED; retry with a
			// plain locking read, accepting that concurrent workers
			// serialize on contention instead of interleaving.
			row, err = lockOldestPending(tx, false)
		}
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}

		res := tx.Model(&models.InboundEvent{}).
			Where("id = ? AND status = ?", row.ID, models.InboundStatusPending).
			Update("status", models.InboundStatusProcessing)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another worker won the race on the fallback path.
			return nil
		}

		messageID = row.MessageID
		claimed = true
		return nil
	})

	return messageID, claimed, err
}

func lockOldestPending(tx *gorm.DB, skipLocked bool) (*models.InboundEvent, error) {
	locking := clause.Locking{Strength: "UPDATE"}
	if skipLocked {
		locking.Options = "SKIP LOCKED"
	}

	var rows []models.InboundEvent
	res := tx.Clauses(locking).
		Where("status = ?", models.InboundStatusPending).
		Order("received_at, id").
		Limit(1).
		Find(&rows)
	if res.Error != nil {
		return nil, res.Error
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *inboundEventRepository) GetByMessageID(messageID string) (*models.InboundEvent, error) {
	var event models.InboundEvent
	if err := r.db.Where("message_id = ?", messageID).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *inboundEventRepository) MarkDone(messageID string) error {
	now := time.Now()
	return r.db.Model(&models.InboundEvent{}).
		Where("message_id = ?", messageID).
		Updates(map[string]any{
			"status":       models.InboundStatusDone,
			"processed_at": now,
		}).Error
}

func (r *inboundEventRepository) MarkError(messageID string, errorText string) error {
	return r.db.Model(&models.InboundEvent{}).
		Where("message_id = ?", messageID).
		Updates(map[string]any{
			"status":     models.InboundStatusError,
			"error_text": errorText,
		}).Error
}

func (r *inboundEventRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.InboundEvent{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}
