package repository

import (
	"github.com/fixmarket/corelink/app/models"
)

// InboundEventRepository defines the database operations backing the
// webhook receiver and the dispatcher work queue.
type InboundEventRepository interface {
	// Upsert inserts the event or, when a row with the same message_id
	// already exists, overwrites its payload only. This is the
	// idempotency guarantee for repeated hub deliveries.
	Upsert(event *models.InboundEvent) error

	// ClaimNext claims the oldest pending event for this worker inside a
	// single transaction, moving it to processing. Returns ok=false when
	// no pending work exists.
	ClaimNext() (messageID string, ok bool, err error)

	GetByMessageID(messageID string) (*models.InboundEvent, error)
	MarkDone(messageID string) error
	MarkError(messageID string, errorText string) error
	CountByStatus(status string) (int64, error)
}

// OutboundEventRepository manages the dead-letter store for events that
// could not be delivered to the hub.
type OutboundEventRepository interface {
	Create(event *models.OutboundEvent) error
	// ListOldestFirst returns dead-letter rows in arrival order for
	// reprocessing.
	ListOldestFirst() ([]models.OutboundEvent, error)
	// ListNewestFirst returns dead-letter rows for the admin surface,
	// most recent failure first.
	ListNewestFirst() ([]models.OutboundEvent, error)
	Delete(id uint) error
}

// PublishedEventRepository appends to the local publish log.
type PublishedEventRepository interface {
	Create(event *models.PublishedEvent) error
}
