package http

import (
	"encoding/json"

	"zapdesk/internal/entities"
	"zapdesk/internal/usecases"
)

// webhookEnvelope is the gateway's event wrapper. Only MESSAGES_UPSERT
// deliveries reach the router; everything else is acked and dropped.
type webhookEnvelope struct {
	Event    string      `json:"event"`
	Instance string      `json:"instance"`
	Data     webhookData `json:"data"`
}

type webhookData struct {
	Key         messageKey      `json:"key"`
	PushName    string          `json:"pushName"`
	MessageType string          `json:"messageType"`
	Message     json.RawMessage `json:"message"`
}

type messageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// One typed struct per known payload variant instead of speculative map
// digging. The messageType discriminator picks which one applies.
type extendedTextBody struct {
	Text string `json:"text"`
}

type buttonsResponseBody struct {
	SelectedDisplayText string `json:"selectedDisplayText"`
}

type listResponseBody struct {
	Title string `json:"title"`
}

type mediaBody struct {
	URL      string      `json:"url"`
	MimeType string      `json:"mimetype"`
	Caption  string      `json:"caption"`
	MediaKey interface{} `json:"mediaKey"` // base64 string or byte-map, normalized later
	Base64   string      `json:"base64"`
}

type messageBody struct {
	Conversation           string               `json:"conversation"`
	ExtendedTextMessage    *extendedTextBody    `json:"extendedTextMessage"`
	ButtonsResponseMessage *buttonsResponseBody `json:"buttonsResponseMessage"`
	ListResponseMessage    *listResponseBody    `json:"listResponseMessage"`
	ImageMessage           *mediaBody           `json:"imageMessage"`
	VideoMessage           *mediaBody           `json:"videoMessage"`
	AudioMessage           *mediaBody           `json:"audioMessage"`
	DocumentMessage        *mediaBody           `json:"documentMessage"`
	StickerMessage         *mediaBody           `json:"stickerMessage"`
	Base64                 string               `json:"base64"`
}

// parseInboundEvent normalizes one envelope into the router's input
// contract. Unknown variants come back as KindUnknown with empty text, so
// the router acks them as no_text instead of erroring.
func parseInboundEvent(env *webhookEnvelope) *entities.InboundEvent {
	ev := &entities.InboundEvent{
		Instance:       env.Instance,
		ConversationID: env.Data.Key.RemoteJID,
		SenderName:     env.Data.PushName,
		MessageID:      env.Data.Key.ID,
		FromSelf:       env.Data.Key.FromMe,
		Kind:           entities.KindUnknown,
	}
	if ev.SenderName == "" {
		ev.SenderName = "Cliente WhatsApp"
	}

	var body messageBody
	if len(env.Data.Message) > 0 {
		// A malformed message object degrades to unknown, never an error.
		_ = json.Unmarshal(env.Data.Message, &body)
	}

	switch env.Data.MessageType {
	case "conversation":
		ev.Kind = entities.KindText
		ev.Text = body.Conversation
	case "extendedTextMessage":
		ev.Kind = entities.KindText
		if body.ExtendedTextMessage != nil {
			ev.Text = body.ExtendedTextMessage.Text
		}
	case "buttonsResponseMessage":
		ev.Kind = entities.KindButtonReply
		if body.ButtonsResponseMessage != nil {
			ev.Text = body.ButtonsResponseMessage.SelectedDisplayText
		}
	case "listResponseMessage":
		ev.Kind = entities.KindListReply
		if body.ListResponseMessage != nil {
			ev.Text = body.ListResponseMessage.Title
		}
	case "imageMessage":
		fillMedia(ev, entities.KindImage, body.ImageMessage, body.Base64, "[Imagem Recebida]")
	case "videoMessage":
		fillMedia(ev, entities.KindVideo, body.VideoMessage, body.Base64, "[Vídeo Recebido]")
	case "audioMessage":
		fillMedia(ev, entities.KindAudio, body.AudioMessage, body.Base64, "[Áudio Recebido]")
	case "documentMessage":
		fillMedia(ev, entities.KindDocument, body.DocumentMessage, body.Base64, "[Documento Recebido]")
	case "stickerMessage":
		fillMedia(ev, entities.KindSticker, body.StickerMessage, body.Base64, "[Figurinha]")
	}

	return ev
}

func fillMedia(ev *entities.InboundEvent, kind string, body *mediaBody, inlineBase64, placeholder string) {
	ev.Kind = kind
	ev.Text = placeholder
	if body == nil {
		return
	}

	ev.MediaURL = body.URL
	ev.MimeType = body.MimeType
	ev.Caption = body.Caption
	if body.Caption != "" {
		ev.Text = body.Caption
	}

	ev.DirectBase64 = body.Base64
	if ev.DirectBase64 == "" {
		ev.DirectBase64 = inlineBase64
	}

	if body.MediaKey != nil {
		if key, err := usecases.NormalizeMediaKey(body.MediaKey); err == nil {
			ev.MediaKey = key
		}
	}
}
