package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ragline/pkg/config"
)

const (
	defaultBaseURL        = "https://graph.facebook.com"
	defaultRequestTimeout = 30 * time.Second

	// The Cloud API rejects longer text bodies, so the transport truncates
	// before sending.
	maxTextLength = 1000
)

// Client is a thin wrapper around the WhatsApp Cloud (Graph) API for media
// download/upload and message sending.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	phoneNumberID string
	log           *slog.Logger
}

// NewClient validates transport configuration and constructs a client.
func NewClient(cfg config.WhatsAppConfig, log *slog.Logger) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("whatsapp.token is required")
	}
	phoneNumberID := strings.TrimSpace(cfg.PhoneNumberID)
	if phoneNumberID == "" {
		return nil, errors.New("whatsapp.phone_number_id is required")
	}
	if log == nil {
		log = slog.Default()
	}

	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	graphVersion := strings.TrimSpace(cfg.GraphVersion)
	if graphVersion == "" {
		graphVersion = config.DefaultGraphVersion
	}

	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       defaultBaseURL + "/" + graphVersion,
		token:         token,
		phoneNumberID: phoneNumberID,
		log:           log.With("component", "whatsapp.client"),
	}, nil
}

// newClientWithBaseURL is the test seam for pointing the client at a local server.
func newClientWithBaseURL(cfg config.WhatsAppConfig, baseURL string, log *slog.Logger) (*Client, error) {
	client, err := NewClient(cfg, log)
	if err != nil {
		return nil, err
	}
	client.baseURL = strings.TrimRight(baseURL, "/")

	return client, nil
}

// DownloadMedia retrieves the binary content of a media asset: first a metadata
// lookup for the short-lived media URL, then an authorized fetch of the bytes.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, error) {
	log := c.log.With("operation", "download_media", "media_id", mediaID)
	startedAt := time.Now()
	log.Debug("transport request started")

	metaURL := fmt.Sprintf("%s/%s?fields=url", c.baseURL, mediaID)
	var meta struct {
		URL string `json:"url"`
	}
	if err := c.getJSON(ctx, metaURL, &meta); err != nil {
		log.Debug("transport request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return nil, fmt.Errorf("media metadata lookup: %w", err)
	}
	if meta.URL == "" {
		return nil, errors.New("media URL missing from response")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug("transport request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return nil, fmt.Errorf("fetch media content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch media content: unexpected status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read media content: %w", err)
	}
	log.Debug("transport request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "bytes", len(content))

	return content, nil
}

// UploadMedia uploads an audio file and returns the provider media id.
func (c *Client) UploadMedia(ctx context.Context, path string) (string, error) {
	log := c.log.With("operation", "upload_media", "path", path)
	startedAt := time.Now()
	log.Debug("transport request started")

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read upload file: %w", err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	part, err := form.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	url := fmt.Sprintf("%s/%s/media", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", form.FormDataContentType())

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(req, &uploaded); err != nil {
		log.Debug("transport request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("upload media: %w", err)
	}
	if uploaded.ID == "" {
		return "", errors.New("upload media: no media id in response")
	}
	log.Debug("transport request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "media_id", uploaded.ID)

	return uploaded.ID, nil
}

// SendMessage sends a text or audio message. A non-empty mediaID sends an audio
// message referencing it; otherwise text is required and truncated to the
// provider limit.
func (c *Client) SendMessage(ctx context.Context, to string, text string, mediaID string) error {
	log := c.log.With("operation", "send_message", "to", to)
	startedAt := time.Now()
	log.Debug("transport request started", "has_media", mediaID != "")

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
	}
	if mediaID != "" {
		payload["type"] = "audio"
		payload["audio"] = map[string]string{"id": mediaID}
	} else {
		if text == "" {
			return errors.New("text body is required when media id is not provided")
		}
		payload["type"] = "text"
		payload["text"] = map[string]string{"body": truncateText(text, maxTextLength)}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode message payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	if err := c.doJSON(req, nil); err != nil {
		log.Debug("transport request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return fmt.Errorf("send message: %w", err)
	}
	log.Debug("transport request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func truncateText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	return string(runes[:limit])
}
