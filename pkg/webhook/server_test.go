package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ragline/pkg/config"
)

type fakeHealthChecker struct {
	err error
}

func (f *fakeHealthChecker) Health(context.Context) error {
	return f.err
}

type fakeIndexStatus struct {
	available bool
}

func (f *fakeIndexStatus) Available() bool {
	return f.available
}

func serverFixture(t *testing.T) (*Server, *handlerFixture) {
	t.Helper()

	fx := newFixture(t)
	cfg := &config.Config{}
	cfg.WhatsApp.VerifyToken = "verify-secret"

	server, err := NewServer(cfg, fx.handler, nil, &fakeIndexStatus{available: true}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}

	return server, fx
}

func TestVerifyChallengeAccepted(t *testing.T) {
	server, _ := serverFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=1234", nil)
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "1234" {
		t.Fatalf("body = %q, want %q", body, "1234")
	}
}

func TestVerifyChallengeRejected(t *testing.T) {
	server, _ := serverFixture(t)

	cases := []string{
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1234",
		"/webhook?hub.mode=unsubscribe&hub.verify_token=verify-secret&hub.challenge=1234",
		"/webhook",
	}
	for _, target := range cases {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		server.routes().ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("GET %s status = %d, want 403", target, rec.Code)
		}
	}
}

func postWebhook(t *testing.T, server *Server, body string) (int, map[string]string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, req)

	var decoded map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}

	return rec.Code, decoded
}

func TestReceiveProcessesTextMessage(t *testing.T) {
	server, fx := serverFixture(t)
	fx.engine.reply = "respuesta"

	code, decoded := postWebhook(t, server, `{
	  "entry": [{"changes": [{"value": {"messages": [
	    {"from": "5551234", "type": "text", "text": {"body": "Hola"}}
	  ]}}]}]
	}`)

	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if decoded["status"] != statusProcessed {
		t.Fatalf("status = %q, want %q", decoded["status"], statusProcessed)
	}

	if got := fx.engine.queried(); len(got) != 1 || got[0] != "Hola" {
		t.Fatalf("queries = %v", got)
	}
	sent := fx.transport.sentMessages()
	if len(sent) != 1 || sent[0].To != "5551234" || sent[0].Text != "respuesta" {
		t.Fatalf("sent = %+v", sent)
	}
}

func TestReceiveEmptyEntryIgnored(t *testing.T) {
	server, fx := serverFixture(t)

	code, decoded := postWebhook(t, server, `{"entry": []}`)
	if code != http.StatusOK || decoded["status"] != statusIgnored {
		t.Fatalf("code = %d, status = %q", code, decoded["status"])
	}

	if len(fx.engine.queried()) != 0 || len(fx.transport.sentMessages()) != 0 {
		t.Fatal("ignored delivery must not reach downstream collaborators")
	}
}

func TestReceiveMalformedJSONIgnored(t *testing.T) {
	server, fx := serverFixture(t)

	code, decoded := postWebhook(t, server, `{not json`)
	if code != http.StatusOK || decoded["status"] != statusIgnored {
		t.Fatalf("code = %d, status = %q", code, decoded["status"])
	}
	if len(fx.transport.sentMessages()) != 0 {
		t.Fatal("malformed delivery must not reach downstream collaborators")
	}
}

func TestReceiveFailedFlowStillProcessed(t *testing.T) {
	server, fx := serverFixture(t)
	fx.audio.transcribeErr = errors.New("stt down")

	code, decoded := postWebhook(t, server, `{
	  "entry": [{"changes": [{"value": {"messages": [
	    {"from": "5559999", "type": "audio", "audio": {"id": "media-1"}}
	  ]}}]}]
	}`)

	if code != http.StatusOK || decoded["status"] != statusProcessed {
		t.Fatalf("code = %d, status = %q, want processed despite flow failure", code, decoded["status"])
	}
	sent := fx.transport.sentMessages()
	if len(sent) != 1 || sent[0].Text != apologyReply {
		t.Fatalf("sent = %+v, want apology", sent)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := serverFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var status statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != "ok" || !status.IndexAvailable {
		t.Fatalf("status = %+v", status)
	}
}

func TestReadyEndpointTracksBackendHealth(t *testing.T) {
	fx := newFixture(t)
	cfg := &config.Config{}
	cfg.WhatsApp.VerifyToken = "verify-secret"

	checker := &fakeHealthChecker{}
	server, err := NewServer(cfg, fx.handler, checker, &fakeIndexStatus{}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}

	// No successful probe yet.
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 before first probe", rec.Code)
	}

	if err := server.checkBackendHealth(context.Background()); err != nil {
		t.Fatalf("checkBackendHealth error: %v", err)
	}

	rec = httptest.NewRecorder()
	server.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 after healthy probe", rec.Code)
	}

	checker.err = errors.New("backend down")
	_ = server.checkBackendHealth(context.Background())

	rec = httptest.NewRecorder()
	server.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 after failed probe", rec.Code)
	}
}
