package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"ragline/pkg/message"
)

// User-facing replies. The bot answers in the corpus language.
const (
	apologyReply   = "Ocurrió un error procesando tu mensaje. Por favor, intenta nuevamente."
	emptyTextReply = "No recibí texto. ¿Puedes intentarlo de nuevo?"
)

const transcriptPreviewLimit = 100

// Transport is the outbound messaging provider boundary.
type Transport interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, error)
	UploadMedia(ctx context.Context, path string) (string, error)
	SendMessage(ctx context.Context, to string, text string, mediaID string) error
}

// Engine answers one prompt with a text response.
type Engine interface {
	Query(ctx context.Context, prompt string) (string, error)
}

// AudioAdapter converts audio files to text and back.
type AudioAdapter interface {
	Transcribe(ctx context.Context, path string) (string, error)
	Synthesize(ctx context.Context, text string, outputPath string) (string, error)
}

// Handler routes normalized messages through the text or audio flow. Flows for
// one webhook delivery run concurrently and fail independently.
type Handler struct {
	transport Transport
	engine    Engine
	audio     AudioAdapter
	allowFrom map[string]struct{}
	log       *slog.Logger
}

// NewHandler constructs a message handler. An empty allowFrom list admits all senders.
func NewHandler(transport Transport, engine Engine, audio AudioAdapter, allowFrom []string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		transport: transport,
		engine:    engine,
		audio:     audio,
		allowFrom: allowFromSet(allowFrom),
		log:       log.With("component", "webhook.handler"),
	}
}

// Dispatch fans each message out to its own goroutine and returns once every
// flow has finished, successfully or not. One flow's failure never affects a
// sibling: errors are absorbed at the per-message boundary.
func (h *Handler) Dispatch(ctx context.Context, messages []message.Message) {
	var wg sync.WaitGroup
	for _, msg := range messages {
		if !h.senderAllowed(msg.SenderID) {
			h.log.Debug("Ignoring message from unauthorized sender", "sender_id", msg.SenderID)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			h.handle(ctx, msg)
		}()
	}
	wg.Wait()
}

// handle is the per-message failure boundary: any error or panic below it is
// logged and converted into a best-effort apology to the sender. A failure
// sending the apology itself is only logged; it cannot reach sibling flows.
func (h *Handler) handle(ctx context.Context, msg message.Message) {
	err := h.route(ctx, msg)
	if err == nil {
		return
	}

	h.log.Error("Failed to handle message", "sender_id", msg.SenderID, "kind", msg.Kind, "error", err)
	if sendErr := h.transport.SendMessage(ctx, msg.SenderID, apologyReply, ""); sendErr != nil {
		h.log.Error("Failed to send apology", "sender_id", msg.SenderID, "error", sendErr)
	}
}

func (h *Handler) route(ctx context.Context, msg message.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while handling message: %v", r)
		}
	}()

	switch msg.Kind {
	case message.KindText:
		return h.handleText(ctx, msg.SenderID, msg.Text)
	case message.KindAudio:
		return h.handleAudio(ctx, msg.SenderID, msg.Audio)
	default:
		return fmt.Errorf("unsupported message kind %q", msg.Kind)
	}
}

// handleText answers a text message with a text reply.
func (h *Handler) handleText(ctx context.Context, senderID string, text string) error {
	if text == "" {
		return h.transport.SendMessage(ctx, senderID, emptyTextReply, "")
	}

	h.log.Info("Processing text message", "sender_id", senderID, "text", previewText(text))

	response, err := h.engine.Query(ctx, text)
	if err != nil {
		return fmt.Errorf("query engine: %w", err)
	}

	h.log.Info("Sending text response", "sender_id", senderID)
	return h.transport.SendMessage(ctx, senderID, response, "")
}

// handleAudio answers a voice message with a voice reply: download, transcribe,
// query, synthesize, upload, send. The downloaded temp file is removed on every
// exit path; the synthesized file exists only on the success path that reaches
// it and is removed best-effort after sending.
func (h *Handler) handleAudio(ctx context.Context, senderID string, ref *message.AudioRef) error {
	h.log.Info("Processing audio message", "sender_id", senderID, "media_id", ref.MediaID)

	content, err := h.transport.DownloadMedia(ctx, ref.MediaID)
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}

	inputPath, err := writeTempAudio(content, ref.TempSuffix())
	if err != nil {
		return err
	}
	defer func() {
		if removeErr := os.Remove(inputPath); removeErr != nil {
			h.log.Debug("Failed to remove downloaded audio", "path", inputPath, "error", removeErr)
		}
	}()

	transcript, err := h.audio.Transcribe(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("transcribe audio: %w", err)
	}
	h.log.Info("Audio transcribed", "sender_id", senderID, "transcript", previewText(transcript))

	response, err := h.engine.Query(ctx, transcript)
	if err != nil {
		return fmt.Errorf("query engine: %w", err)
	}

	replyPath, err := h.audio.Synthesize(ctx, response, "")
	if err != nil {
		return fmt.Errorf("synthesize response: %w", err)
	}
	defer func() {
		if removeErr := os.Remove(replyPath); removeErr != nil {
			h.log.Debug("Failed to remove synthesized audio", "path", replyPath, "error", removeErr)
		}
	}()

	mediaID, err := h.transport.UploadMedia(ctx, replyPath)
	if err != nil {
		return fmt.Errorf("upload response audio: %w", err)
	}

	h.log.Info("Sending audio response", "sender_id", senderID, "media_id", mediaID)
	return h.transport.SendMessage(ctx, senderID, "", mediaID)
}

func writeTempAudio(content []byte, suffix string) (string, error) {
	tmp, err := os.CreateTemp("", "ragline-in-*."+suffix)
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp audio file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp audio file: %w", err)
	}

	return tmp.Name(), nil
}

// senderAllowed checks the optional allowlist; when empty, all senders pass.
func (h *Handler) senderAllowed(senderID string) bool {
	if len(h.allowFrom) == 0 {
		return true
	}

	_, ok := h.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// allowFromSet normalizes allowlist values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text. The cut is
// rune-based so multi-byte characters are never split.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= transcriptPreviewLimit {
		return trimmed
	}

	return string(runes[:transcriptPreviewLimit]) + "..."
}
