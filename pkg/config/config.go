package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envWhatsAppToken         = "WHATSAPP_TOKEN"
	envWhatsAppPhoneNumberID = "WHATSAPP_PHONE_NUMBER_ID"
	envWhatsAppVerifyToken   = "WHATSAPP_VERIFY_TOKEN"
	envWhatsAppAllowFrom     = "WHATSAPP_ALLOW_FROM"
	envDataDir               = "RAGLINE_DATA_DIR"
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	OpenAI   OpenAIConfig   `json:"openai"`
	RAG      RAGConfig      `json:"rag"`
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// WhatsAppConfig configures the WhatsApp Cloud API transport and webhook verification.
type WhatsAppConfig struct {
	Token                 string   `json:"token"`
	PhoneNumberID         string   `json:"phone_number_id"`
	VerifyToken           string   `json:"verify_token"`
	GraphVersion          string   `json:"graph_version,omitempty"`
	RequestTimeoutSeconds int      `json:"request_timeout_seconds,omitempty"`
	AllowFrom             []string `json:"allow_from,omitempty"`
}

// OpenAIConfig configures the model backend used for chat, embeddings, speech
// recognition, and speech synthesis.
type OpenAIConfig struct {
	APIKeyEnv             string `json:"api_key_env,omitempty"`
	BaseURL               string `json:"base_url,omitempty"`
	ChatModel             string `json:"chat_model,omitempty"`
	EmbeddingModel        string `json:"embedding_model,omitempty"`
	TranscribeModel       string `json:"transcribe_model,omitempty"`
	SpeechModel           string `json:"speech_model,omitempty"`
	Voice                 string `json:"voice,omitempty"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds,omitempty"`
}

// RAGConfig configures document-index construction.
type RAGConfig struct {
	DataDir      string `json:"data_dir,omitempty"`
	TopK         int    `json:"top_k,omitempty"`
	ChunkSize    int    `json:"chunk_size,omitempty"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty"`
}

// ServerConfig configures webhook server bind settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Defaults applied when config.json leaves a field unset.
const (
	DefaultGraphVersion    = "v23.0"
	DefaultChatModel       = "gpt-4o-mini"
	DefaultEmbeddingModel  = "text-embedding-3-small"
	DefaultTranscribeModel = "whisper-1"
	DefaultSpeechModel     = "tts-1"
	DefaultVoice           = "alloy"
	DefaultDataDir         = "./data"
	DefaultTopK            = 4
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 200
)

// LoadConfig resolves config.json, unmarshals it, and applies environment overrides.
//
// A .env file in the working directory is loaded first so that secrets can live
// outside the config file; a missing .env is not an error.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

// Validate reports the first missing required secret. A config that fails
// validation must prevent startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.WhatsApp.Token) == "" {
		return errors.New("whatsapp.token is required (or set " + envWhatsAppToken + ")")
	}
	if strings.TrimSpace(c.WhatsApp.PhoneNumberID) == "" {
		return errors.New("whatsapp.phone_number_id is required (or set " + envWhatsAppPhoneNumberID + ")")
	}
	if strings.TrimSpace(c.WhatsApp.VerifyToken) == "" {
		return errors.New("whatsapp.verify_token is required (or set " + envWhatsAppVerifyToken + ")")
	}
	if resolveAPIKey(c.OpenAI) == "" {
		return errors.New("openai api key is required (set OPENAI_API_KEY or openai.api_key_env)")
	}

	return nil
}

// APIKey resolves the model-backend API key from the configured env var,
// falling back to OPENAI_API_KEY.
func (c *Config) APIKey() string {
	return resolveAPIKey(c.OpenAI)
}

func resolveAPIKey(cfg OpenAIConfig) string {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey
		}
	}

	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if token := strings.TrimSpace(os.Getenv(envWhatsAppToken)); token != "" {
		cfg.WhatsApp.Token = token
	}
	if phoneID := strings.TrimSpace(os.Getenv(envWhatsAppPhoneNumberID)); phoneID != "" {
		cfg.WhatsApp.PhoneNumberID = phoneID
	}
	if verifyToken := strings.TrimSpace(os.Getenv(envWhatsAppVerifyToken)); verifyToken != "" {
		cfg.WhatsApp.VerifyToken = verifyToken
	}
	if rawAllowFrom := strings.TrimSpace(os.Getenv(envWhatsAppAllowFrom)); rawAllowFrom != "" {
		cfg.WhatsApp.AllowFrom = parseCSV(rawAllowFrom)
	}
	if dataDir := strings.TrimSpace(os.Getenv(envDataDir)); dataDir != "" {
		cfg.RAG.DataDir = dataDir
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.WhatsApp.GraphVersion) == "" {
		cfg.WhatsApp.GraphVersion = DefaultGraphVersion
	}
	if strings.TrimSpace(cfg.OpenAI.ChatModel) == "" {
		cfg.OpenAI.ChatModel = DefaultChatModel
	}
	if strings.TrimSpace(cfg.OpenAI.EmbeddingModel) == "" {
		cfg.OpenAI.EmbeddingModel = DefaultEmbeddingModel
	}
	if strings.TrimSpace(cfg.OpenAI.TranscribeModel) == "" {
		cfg.OpenAI.TranscribeModel = DefaultTranscribeModel
	}
	if strings.TrimSpace(cfg.OpenAI.SpeechModel) == "" {
		cfg.OpenAI.SpeechModel = DefaultSpeechModel
	}
	if strings.TrimSpace(cfg.OpenAI.Voice) == "" {
		cfg.OpenAI.Voice = DefaultVoice
	}
	if strings.TrimSpace(cfg.RAG.DataDir) == "" {
		cfg.RAG.DataDir = DefaultDataDir
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = DefaultTopK
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = DefaultChunkSize
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		cfg.RAG.ChunkOverlap = DefaultChunkOverlap
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is RAGLINE_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv("RAGLINE_CONFIG")); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("RAGLINE_CONFIG does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
