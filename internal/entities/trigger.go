package entities

import "time"

// Media kinds accepted on a trigger attachment.
const (
	MediaText     = "texto"
	MediaImage    = "image"
	MediaVideo    = "video"
	MediaAudio    = "audio"
	MediaDocument = "document"
)

// TriggerNode is one entry of the per-instance reply tree. A node with
// ParentID == nil sits at the root menu; the reserved keyword "default"
// at root level is the welcome message for the instance.
type TriggerNode struct {
	ID           int64     `json:"id"`
	Instance     string    `json:"instance"`
	Keyword      string    `json:"keyword"`
	ResponseText string    `json:"response_text"`
	MenuLabel    string    `json:"menu_label"`
	Category     string    `json:"category"`
	ParentID     *int64    `json:"parent_id"`
	MediaRef     string    `json:"media_ref"`
	MediaKind    string    `json:"media_kind"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsRoot reports whether the node lives at the top menu level.
func (t *TriggerNode) IsRoot() bool {
	return t.ParentID == nil
}

// HasMedia reports whether the node carries a deliverable attachment.
func (t *TriggerNode) HasMedia() bool {
	return t.MediaRef != "" && t.MediaKind != "" && t.MediaKind != MediaText
}
