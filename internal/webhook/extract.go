// Package webhook receives Evolution API message events and routes them
// into the lead distribution engine.
package webhook

import (
	"strings"
)

// Payload is the Evolution API messages.upsert event body. Only the fields
// the engine reads are declared.
type Payload struct {
	Event    string      `json:"event"`
	Instance string      `json:"instance"`
	Data     PayloadData `json:"data"`
}

type PayloadData struct {
	Key      MessageKey     `json:"key"`
	PushName string         `json:"pushName"`
	Message  MessageContent `json:"message"`
}

type MessageKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type MessageContent struct {
	Conversation        string               `json:"conversation"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage"`
	AudioMessage        *struct{}            `json:"audioMessage"`
	ImageMessage        *struct{}            `json:"imageMessage"`
	VideoMessage        *struct{}            `json:"videoMessage"`
	DocumentMessage     *struct{}            `json:"documentMessage"`
	StickerMessage      *struct{}            `json:"stickerMessage"`
}

type ExtendedTextMessage struct {
	Text string `json:"text"`
}

// Inbound is the normalized view of one inbound message.
type Inbound struct {
	MessageID string
	Phone     string
	FromMe    bool
	Group     bool
	PushName  string
	Text      string
}

const userJidSuffix = "@s.whatsapp.net"

// Extract flattens an Evolution payload into the fields the engine needs.
func Extract(p Payload) Inbound {
	jid := p.Data.Key.RemoteJid
	phone := jid
	if i := strings.Index(jid, "@"); i >= 0 {
		phone = jid[:i]
	}

	return Inbound{
		MessageID: p.Data.Key.ID,
		Phone:     phone,
		FromMe:    p.Data.Key.FromMe,
		Group:     jid != "" && !strings.HasSuffix(jid, userJidSuffix),
		PushName:  strings.TrimSpace(p.Data.PushName),
		Text:      extractText(p.Data.Message),
	}
}

// extractText returns the message text, or a placeholder naming the media
// type so non-text messages still register as contact.
func extractText(m MessageContent) string {
	if m.Conversation != "" {
		return m.Conversation
	}
	if m.ExtendedTextMessage != nil && m.ExtendedTextMessage.Text != "" {
		return m.ExtendedTextMessage.Text
	}
	switch {
	case m.AudioMessage != nil:
		return "[Áudio]"
	case m.ImageMessage != nil:
		return "[Imagem]"
	case m.VideoMessage != nil:
		return "[Vídeo]"
	case m.DocumentMessage != nil:
		return "[Documento]"
	case m.StickerMessage != nil:
		return "[Sticker]"
	}
	return ""
}

// SenderName picks the best available name for a lead: the WhatsApp push
// name, else a "nome:"/"name:" line inside the message text.
func SenderName(in Inbound) string {
	if in.PushName != "" {
		return in.PushName
	}
	for _, line := range strings.Split(in.Text, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		for _, prefix := range []string{"nome:", "name:"} {
			if strings.HasPrefix(lower, prefix) {
				name := strings.TrimSpace(strings.TrimSpace(line)[len(prefix):])
				if name != "" {
					return name
				}
			}
		}
	}
	return ""
}
