package dispatcher

import "strings"

// Topic is the closed set of event channels this service consumes. A
// channel string maps to exactly one topic; anything else falls back to
// TopicUnknown instead of being dispatched by raw string.
type Topic int

const (
	TopicUnknown Topic = iota
	TopicUsers
	TopicReviews
	TopicOrders
)

func (t Topic) String() string {
	switch t {
	case TopicUsers:
		return "users"
	case TopicReviews:
		return "reviews"
	case TopicOrders:
		return "orders"
	}
	return "unknown"
}

// ParseTopic maps a hub channel name ("users.created",
// "reviews.rating.updated", ...) onto its topic by prefix.
func ParseTopic(channel string) Topic {
	switch {
	case strings.HasPrefix(channel, "users."):
		return TopicUsers
	case strings.HasPrefix(channel, "reviews."):
		return TopicReviews
	case strings.HasPrefix(channel, "orders."):
		return TopicOrders
	}
	return TopicUnknown
}
