package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"ragline/pkg/config"
)

// Client wraps the model backend used for chat completion, embeddings, speech
// recognition, and speech synthesis. It is read-only after construction and
// safe for concurrent use.
type Client struct {
	client          osdk.Client
	chatModel       string
	embeddingModel  string
	transcribeModel string
	speechModel     string
	voice           string
	requestTimeout  time.Duration
}

// New validates backend configuration and constructs a client.
func New(cfg *config.Config) (*Client, error) {
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, errors.New("openai api key is required (set OPENAI_API_KEY or openai.api_key_env)")
	}

	providerCfg := cfg.OpenAI
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(providerCfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	requestTimeout := time.Duration(providerCfg.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}

	return &Client{
		client:          osdk.NewClient(opts...),
		chatModel:       providerCfg.ChatModel,
		embeddingModel:  providerCfg.EmbeddingModel,
		transcribeModel: providerCfg.TranscribeModel,
		speechModel:     providerCfg.SpeechModel,
		voice:           providerCfg.Voice,
		requestTimeout:  requestTimeout,
	}, nil
}

// Health verifies the backend is reachable and the API key is accepted.
func (c *Client) Health(ctx context.Context) error {
	log := backendLogger().With("operation", "health")
	startedAt := time.Now()
	log.Debug("backend request started")

	if _, err := c.client.Models.List(ctx); err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return nil
}

// Complete runs one chat completion with an optional system framing.
func (c *Client) Complete(ctx context.Context, system string, prompt string) (string, error) {
	log := backendLogger().With("operation", "complete")
	startedAt := time.Now()
	log.Debug("backend request started", "model", c.chatModel, "prompt_length", len(prompt))

	messages := make([]osdk.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, osdk.SystemMessage(system))
	}
	messages = append(messages, osdk.UserMessage(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, osdk.ChatCompletionNewParams{
		Messages: messages,
		Model:    osdk.ChatModel(c.chatModel),
	})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("chat completion returned no text")
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(text))

	return text, nil
}

// Embed converts texts into embedding vectors, preserving input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	log := backendLogger().With("operation", "embed")
	startedAt := time.Now()
	log.Debug("backend request started", "model", c.embeddingModel, "inputs", len(texts))

	resp, err := c.client.Embeddings.New(ctx, osdk.EmbeddingNewParams{
		Input: osdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: osdk.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float64, len(resp.Data))
	for _, item := range resp.Data {
		if item.Index < 0 || int(item.Index) >= len(vectors) {
			return nil, fmt.Errorf("embeddings returned out-of-range index %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return vectors, nil
}

// Transcribe converts recorded audio into text. The backend infers language.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	log := backendLogger().With("operation", "transcribe")
	startedAt := time.Now()
	log.Debug("backend request started", "model", c.transcribeModel, "filename", filename)

	resp, err := c.client.Audio.Transcriptions.New(ctx, osdk.AudioTranscriptionNewParams{
		File:  osdk.File(audio, filename, ""),
		Model: osdk.AudioModel(c.transcribeModel),
	})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("transcription: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "transcript_length", len(text))

	return text, nil
}

// Speech synthesizes text with the configured voice and streams the audio back.
// The caller owns the returned body.
func (c *Client) Speech(ctx context.Context, text string) (io.ReadCloser, error) {
	log := backendLogger().With("operation", "speech")
	startedAt := time.Now()
	log.Debug("backend request started", "model", c.speechModel, "voice", c.voice, "text_length", len(text))

	resp, err := c.client.Audio.Speech.New(ctx, osdk.AudioSpeechNewParams{
		Model: osdk.SpeechModel(c.speechModel),
		Voice: osdk.AudioSpeechNewParamsVoice(c.voice),
		Input: text,
	})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return resp.Body, nil
}

func backendLogger() *slog.Logger {
	return slog.Default().With("component", "ai.client")
}
