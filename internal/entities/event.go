package entities

// Message kinds produced by the webhook payload parser. They mirror the
// gateway's messageType discriminator, collapsed to what the router cares
// about.
const (
	KindText        = "text"
	KindImage       = "image"
	KindVideo       = "video"
	KindAudio       = "audio"
	KindDocument    = "document"
	KindSticker     = "sticker"
	KindButtonReply = "button-reply"
	KindListReply   = "list-reply"
	KindUnknown     = "unknown"
)

// InboundEvent is the normalized form of one gateway webhook delivery.
type InboundEvent struct {
	Instance       string
	ConversationID string // remote JID of the chat
	SenderName     string // push name, "Cliente WhatsApp" when absent
	MessageID      string // gateway message key, used for media retrieval
	FromSelf       bool
	Kind           string

	Text string // body, caption or button/list title depending on Kind

	// Media fields, only set for media kinds.
	MediaURL     string
	MediaKey     []byte // normalized 32-byte key, nil when the payload had none
	MimeType     string
	Caption      string
	DirectBase64 string // payload inlined by the gateway, skips fetching
}

// IsMedia reports whether the event carries a downloadable attachment.
func (e *InboundEvent) IsMedia() bool {
	switch e.Kind {
	case KindImage, KindVideo, KindAudio, KindDocument, KindSticker:
		return true
	}
	return false
}
