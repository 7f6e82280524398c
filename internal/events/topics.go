package events

// Topic constants for domain events emitted by checkout.
const (
	TopicOrderQuoted    = "order.quoted"
	TopicOrderConfirmed = "order.confirmed"
)

// DefaultTopics returns every topic checkout emits.
func DefaultTopics() []string {
	return []string{TopicOrderQuoted, TopicOrderConfirmed}
}
