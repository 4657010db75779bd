package models

import "time"

// PublishedEvent is the append-only log of every publish attempt that
// reached local persistence. CreatedAt supplies the stable timestamp
// attached to the envelope sent to the hub; rows are immutable once
// written.
type PublishedEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID string    `gorm:"type:varchar(128);not null;index" json:"message_id"`
	Topic     string    `gorm:"type:varchar(200);not null" json:"topic"`
	EventName string    `gorm:"type:varchar(100);not null" json:"event_name"`
	Payload   string    `gorm:"type:longtext;not null" json:"payload"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PublishedEvent) TableName() string {
	return "published_events"
}
