package message

import "strings"

// Kind discriminates the two inbound message modalities.
type Kind string

const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
)

// Message is one normalized inbound unit of work, decoupled from the webhook
// wire format. Exactly one of Text/Audio is populated, consistent with Kind.
type Message struct {
	SenderID string
	Kind     Kind
	Text     string
	Audio    *AudioRef
}

// AudioRef references a provider-hosted media asset.
type AudioRef struct {
	MediaID  string
	MimeType string
}

const defaultMimeType = "audio/ogg"

// TempSuffix derives a temp-file suffix from the MIME type hint, defaulting to
// "ogg" when the hint is absent. MIME parameters after ";" are stripped.
func (a *AudioRef) TempSuffix() string {
	mime := strings.TrimSpace(a.MimeType)
	if mime == "" {
		mime = defaultMimeType
	}
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}

	if idx := strings.LastIndex(mime, "/"); idx >= 0 {
		mime = mime[idx+1:]
	}
	if mime == "" {
		return "ogg"
	}

	return mime
}
