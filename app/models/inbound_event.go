package models

import "time"

// Inbound event processing states. A row only ever moves
// pending -> processing -> done|error; nothing moves it out of a
// terminal state automatically.
const (
	InboundStatusPending    = "pending"
	InboundStatusProcessing = "processing"
	InboundStatusDone       = "done"
	InboundStatusError      = "error"
)

// InboundEvent stores hub webhook deliveries and doubles as the durable
// work queue for the dispatcher. The unique message_id index is the
// idempotency key: repeated deliveries of the same message converge to
// one row.
type InboundEvent struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	MessageID      string     `gorm:"type:varchar(128);not null;uniqueIndex:ux_inbound_events_message_id" json:"message_id"`
	SubscriptionID string     `gorm:"type:varchar(128)" json:"subscription_id"`
	Source         string     `gorm:"type:varchar(100)" json:"source"`
	Channel        string     `gorm:"type:varchar(200);" json:"channel"`
	EventName      string     `gorm:"type:varchar(100)" json:"event_name"`
	Payload        string     `gorm:"type:longtext;not null" json:"payload"`
	ReceivedAt     time.Time  `gorm:"autoCreateTime;index:idx_inbound_events_claim,priority:2" json:"received_at"`
	ProcessedAt    *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_inbound_events_claim,priority:1" json:"status"`
	ErrorText      string     `gorm:"type:text" json:"error_text"`
}

func (InboundEvent) TableName() string {
	return "inbound_events"
}
