package message

// Envelope mirrors the WhatsApp Cloud API webhook payload down to the message
// list. Unknown sibling fields are ignored by the JSON decoder.
type Envelope struct {
	Entry []Entry `json:"entry"`
}

// Entry is one account-level webhook entry.
type Entry struct {
	Changes []Change `json:"changes"`
}

// Change is one change notification inside an entry.
type Change struct {
	Value Value `json:"value"`
}

// Value carries the messages of one change.
type Value struct {
	Messages []WireMessage `json:"messages"`
}

// WireMessage is one raw inbound message as delivered by the provider.
type WireMessage struct {
	From  string     `json:"from"`
	Type  string     `json:"type"`
	Text  *WireText  `json:"text,omitempty"`
	Audio *WireAudio `json:"audio,omitempty"`
}

// WireText is the text body object of a text message.
type WireText struct {
	Body string `json:"body"`
}

// WireAudio is the audio object of an audio message.
type WireAudio struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
}

// Normalize flattens a webhook envelope into typed messages.
//
// Entries are skipped, not errored, when the sender id is missing, the type is
// neither "text" nor "audio", or an audio entry has no media id. Text bodies
// are carried verbatim, including the empty string. Normalize is a pure
// function of its input and never fails.
func Normalize(envelope Envelope) []Message {
	var messages []Message
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			for _, wire := range change.Value.Messages {
				if normalized, ok := normalizeOne(wire); ok {
					messages = append(messages, normalized)
				}
			}
		}
	}

	return messages
}

func normalizeOne(wire WireMessage) (Message, bool) {
	if wire.From == "" {
		return Message{}, false
	}

	switch wire.Type {
	case "text":
		body := ""
		if wire.Text != nil {
			body = wire.Text.Body
		}
		return Message{SenderID: wire.From, Kind: KindText, Text: body}, true
	case "audio":
		if wire.Audio == nil || wire.Audio.ID == "" {
			return Message{}, false
		}
		return Message{
			SenderID: wire.From,
			Kind:     KindAudio,
			Audio:    &AudioRef{MediaID: wire.Audio.ID, MimeType: wire.Audio.MimeType},
		}, true
	default:
		return Message{}, false
	}
}
