package tracker

// Event types observed on a storefront page.
const (
	EventPageView  = "page_view"
	EventClick     = "click"
	EventAddToCart = "add_to_cart"
)

// Event is a single observed interaction, immutable once constructed.
// Field names follow the wire format of the /track collector.
type Event struct {
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	PageType  string         `json:"page_type,omitempty"`
	PageURL   string         `json:"page_url"`
	Timestamp float64        `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}
