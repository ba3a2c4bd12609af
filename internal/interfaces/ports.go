package interfaces

import (
	"context"

	"zapdesk/internal/entities"
)

// Gateway is the messaging transport (an Evolution-style HTTP API). All
// calls carry the instance name because one engine fronts many accounts.
type Gateway interface {
	SendText(ctx context.Context, instance, number, text string) error
	SendMedia(ctx context.Context, instance, number string, media MediaPayload) error
	FetchMediaBase64(ctx context.Context, instance string, ref MediaRef) (string, error)
}

// MediaPayload is the body of a gateway sendMedia call.
type MediaPayload struct {
	Base64   string
	Kind     string // image, video, audio, document
	MimeType string
	Caption  string
	FileName string
}

// MediaRef identifies an inbound attachment for gateway-side retrieval.
type MediaRef struct {
	MessageID string
	URL       string
	MimeType  string
}

// TriggerStore is the read side of the trigger catalog used by the router.
type TriggerStore interface {
	FindDefault(ctx context.Context, instance string) (*entities.TriggerNode, error)
	FindByKeyword(ctx context.Context, instance, keyword string, parentID *int64) (*entities.TriggerNode, error)
	FindByID(ctx context.Context, id int64) (*entities.TriggerNode, error)
	ListChildren(ctx context.Context, instance string, parentID *int64) ([]entities.TriggerNode, error)
}

// HandoffStore is the durable registry of conversations under human control.
type HandoffStore interface {
	Get(ctx context.Context, instance, conversationID string) (*entities.HandoffRecord, error)
	Open(ctx context.Context, instance, conversationID, contactName string) error
	Close(ctx context.Context, instance, conversationID string) error
}

// SessionStore tracks the current submenu node per conversation. Volatile:
// losing it only sends the user back to the root menu.
type SessionStore interface {
	Get(instance, conversationID string) (int64, bool)
	Set(instance, conversationID string, nodeID int64)
	Clear(instance, conversationID string)
	// Lock serializes processing for one conversation key and returns the
	// matching unlock function.
	Lock(instance, conversationID string) (unlock func())
}

// OperatorNotifier tells humans that a conversation is waiting for them.
type OperatorNotifier interface {
	NotifyHandoff(instance, conversationID, contactName, lastMessage string)
}
