package message

import (
	"encoding/json"
	"reflect"
	"testing"
)

func envelopeFromJSON(t *testing.T, payload string) Envelope {
	t.Helper()

	var envelope Envelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}

	return envelope
}

func TestNormalizeTextAndAudio(t *testing.T) {
	envelope := envelopeFromJSON(t, `{
	  "entry": [{
	    "changes": [{
	      "value": {
	        "messages": [
	          {"from": "5551234", "type": "text", "text": {"body": "Hola"}},
	          {"from": "5555678", "type": "audio", "audio": {"id": "media-1", "mime_type": "audio/mpeg"}}
	        ]
	      }
	    }]
	  }]
	}`)

	messages := Normalize(envelope)
	if len(messages) != 2 {
		t.Fatalf("normalized %d messages, want 2", len(messages))
	}

	if messages[0].Kind != KindText || messages[0].SenderID != "5551234" || messages[0].Text != "Hola" {
		t.Fatalf("text message = %+v", messages[0])
	}
	if messages[0].Audio != nil {
		t.Fatal("text message must not carry an audio ref")
	}

	if messages[1].Kind != KindAudio || messages[1].SenderID != "5555678" {
		t.Fatalf("audio message = %+v", messages[1])
	}
	if messages[1].Audio == nil || messages[1].Audio.MediaID != "media-1" || messages[1].Audio.MimeType != "audio/mpeg" {
		t.Fatalf("audio ref = %+v", messages[1].Audio)
	}
	if messages[1].Text != "" {
		t.Fatal("audio message must not carry text")
	}
}

func TestNormalizeKeepsEmptyTextBody(t *testing.T) {
	envelope := envelopeFromJSON(t, `{
	  "entry": [{"changes": [{"value": {"messages": [
	    {"from": "1", "type": "text", "text": {"body": ""}},
	    {"from": "2", "type": "text"}
	  ]}}]}]
	}`)

	messages := Normalize(envelope)
	if len(messages) != 2 {
		t.Fatalf("normalized %d messages, want 2", len(messages))
	}
	for _, msg := range messages {
		if msg.Kind != KindText || msg.Text != "" {
			t.Fatalf("message = %+v, want empty text", msg)
		}
	}
}

func TestNormalizeDropsMalformedEntries(t *testing.T) {
	envelope := envelopeFromJSON(t, `{
	  "entry": [{"changes": [{"value": {"messages": [
	    {"type": "text", "text": {"body": "no sender"}},
	    {"from": "1", "type": "image"},
	    {"from": "2", "type": "audio", "audio": {"mime_type": "audio/ogg"}},
	    {"from": "3", "type": "audio"},
	    {"from": "4", "type": "text", "text": {"body": "kept"}}
	  ]}}]}]
	}`)

	messages := Normalize(envelope)
	if len(messages) != 1 {
		t.Fatalf("normalized %d messages, want 1", len(messages))
	}
	if messages[0].SenderID != "4" || messages[0].Text != "kept" {
		t.Fatalf("surviving message = %+v", messages[0])
	}
}

func TestNormalizeEmptyEnvelope(t *testing.T) {
	if got := Normalize(Envelope{}); len(got) != 0 {
		t.Fatalf("normalized %d messages from empty envelope, want 0", len(got))
	}

	envelope := envelopeFromJSON(t, `{"entry": []}`)
	if got := Normalize(envelope); len(got) != 0 {
		t.Fatalf("normalized %d messages from empty entry list, want 0", len(got))
	}
}

func TestNormalizeIsPure(t *testing.T) {
	envelope := envelopeFromJSON(t, `{
	  "entry": [{"changes": [{"value": {"messages": [
	    {"from": "1", "type": "text", "text": {"body": "a"}},
	    {"from": "2", "type": "audio", "audio": {"id": "m"}}
	  ]}}]}]
	}`)

	first := Normalize(envelope)
	second := Normalize(envelope)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalize is not idempotent: %+v vs %+v", first, second)
	}
}

func TestTempSuffix(t *testing.T) {
	cases := []struct {
		mime string
		want string
	}{
		{"", "ogg"},
		{"audio/ogg", "ogg"},
		{"audio/mpeg", "mpeg"},
		{"audio/ogg; codecs=opus", "ogg"},
		{"audio/", "ogg"},
	}

	for _, tc := range cases {
		ref := &AudioRef{MediaID: "m", MimeType: tc.mime}
		if got := ref.TempSuffix(); got != tc.want {
			t.Fatalf("TempSuffix(%q) = %q, want %q", tc.mime, got, tc.want)
		}
	}
}
