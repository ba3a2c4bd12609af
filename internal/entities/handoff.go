package entities

import "time"

// HandoffRecord marks a conversation as owned by a human operator. While an
// open record exists the router delivers messages silently instead of
// matching triggers.
type HandoffRecord struct {
	ID             int64      `json:"id"`
	Instance       string     `json:"instance"`
	ConversationID string     `json:"conversation_id"`
	ContactName    string     `json:"contact_name"`
	OpenedAt       time.Time  `json:"opened_at"`
	ClosedAt       *time.Time `json:"closed_at"`
	AttendedBy     string     `json:"attended_by"`
}
