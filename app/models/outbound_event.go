package models

import "time"

// OutboundEvent is a dead-letter row for events that could not be
// delivered to the hub. Rows are never mutated: reprocessing either
// deletes one (delivery succeeded) or leaves it for the next run.
type OutboundEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID string    `gorm:"type:varchar(128);not null;index" json:"message_id"`
	Topic     string    `gorm:"type:varchar(200);not null" json:"topic"`
	EventName string    `gorm:"type:varchar(100);not null" json:"event_name"`
	Payload   string    `gorm:"type:longtext;not null" json:"payload"`
	FailedAt  time.Time `gorm:"autoCreateTime;index" json:"failed_at"`
}

func (OutboundEvent) TableName() string {
	return "outbound_events"
}
