package events

// Topic constants for domain events emitted by the sale engine.
const (
	TopicSaleCreated  = "sale.created"
	TopicSaleVoided   = "sale.voided"
	TopicSaleUnvoided = "sale.unvoided"
	TopicSaleReturned = "sale.returned"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicSaleCreated,
		TopicSaleVoided,
		TopicSaleUnvoided,
		TopicSaleReturned,
	}
}
