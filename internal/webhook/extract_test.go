package webhook

import "testing"

func payloadWith(data PayloadData) Payload {
	return Payload{Event: "messages.upsert", Data: data}
}

func TestExtractPhoneFromRemoteJid(t *testing.T) {
	in := Extract(payloadWith(PayloadData{
		Key:     MessageKey{RemoteJid: "5562981804477@s.whatsapp.net", ID: "MSG1"},
		Message: MessageContent{Conversation: "oi"},
	}))

	if in.Phone != "5562981804477" {
		t.Fatalf("phone should drop the jid suffix, got %q", in.Phone)
	}
	if in.Group {
		t.Fatalf("user jid must not be flagged as group")
	}
	if in.MessageID != "MSG1" {
		t.Fatalf("message id should pass through, got %q", in.MessageID)
	}
}

func TestExtractFlagsGroupJid(t *testing.T) {
	in := Extract(payloadWith(PayloadData{
		Key: MessageKey{RemoteJid: "123456789-987@g.us"},
	}))
	if !in.Group {
		t.Fatalf("group jid should be flagged")
	}
}

func TestExtractTextSources(t *testing.T) {
	tests := []struct {
		name    string
		message MessageContent
		want    string
	}{
		{"conversation", MessageContent{Conversation: "olá"}, "olá"},
		{"extended text", MessageContent{ExtendedTextMessage: &ExtendedTextMessage{Text: "quero saber mais"}}, "quero saber mais"},
		{"conversation wins", MessageContent{Conversation: "a", ExtendedTextMessage: &ExtendedTextMessage{Text: "b"}}, "a"},
		{"audio placeholder", MessageContent{AudioMessage: &struct{}{}}, "[Áudio]"},
		{"image placeholder", MessageContent{ImageMessage: &struct{}{}}, "[Imagem]"},
		{"video placeholder", MessageContent{VideoMessage: &struct{}{}}, "[Vídeo]"},
		{"document placeholder", MessageContent{DocumentMessage: &struct{}{}}, "[Documento]"},
		{"sticker placeholder", MessageContent{StickerMessage: &struct{}{}}, "[Sticker]"},
		{"empty", MessageContent{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractText(tt.message); got != tt.want {
				t.Fatalf("extractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSenderName(t *testing.T) {
	tests := []struct {
		name string
		in   Inbound
		want string
	}{
		{"push name wins", Inbound{PushName: "Carlos", Text: "nome: Outro"}, "Carlos"},
		{"nome line", Inbound{Text: "Olá!\nNome: Maria Silva\nquero um imóvel"}, "Maria Silva"},
		{"name line", Inbound{Text: "name: John"}, "John"},
		{"no name", Inbound{Text: "oi, tudo bem?"}, ""},
		{"empty nome line", Inbound{Text: "nome: "}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SenderName(tt.in); got != tt.want {
				t.Fatalf("SenderName() = %q, want %q", got, tt.want)
			}
		})
	}
}
