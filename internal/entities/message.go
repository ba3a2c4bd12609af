package entities

import "time"

// ChatLog is one line of conversation history for an instance, written for
// every inbound and outbound message so operators can read the thread.
type ChatLog struct {
	ID             int64     `json:"id"`
	Instance       string    `json:"instance"`
	ConversationID string    `json:"conversation_id"`
	FromMe         bool      `json:"from_me"`
	Kind           string    `json:"kind"` // texto, image, audio...
	Content        string    `json:"content"`
	MediaURL       string    `json:"media_url"`
	CreatedAt      time.Time `json:"created_at"`
}

// Contact is an auto-captured lead, created the first time a conversation
// reaches an instance.
type Contact struct {
	ID             int64     `json:"id"`
	Instance       string    `json:"instance"`
	ConversationID string    `json:"conversation_id"`
	Name           string    `json:"name"`
	Tags           string    `json:"tags"`
	CreatedAt      time.Time `json:"created_at"`
}
