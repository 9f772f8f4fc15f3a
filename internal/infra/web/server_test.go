package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"whatsapp-ai-tutor/internal/domain/model"
)

// ---- Fakes ----

type fakeTutor struct {
	mu    sync.Mutex
	reply string
	err   error
	panic bool
	calls []string // texts in call order
}

func (f *fakeTutor) GetOrCreateSession(ctx context.Context, userID string) (*model.ChatSession, error) {
	return model.NewChatSession(userID, "m", "sys", "hi"), nil
}

func (f *fakeTutor) Reply(ctx context.Context, userID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panic {
		panic("tutor exploded")
	}
	f.calls = append(f.calls, text)
	return f.reply, f.err
}

type fakeMessenger struct {
	mu    sync.Mutex
	err   error
	sends []string // "recipient|text" in call order
}

func (f *fakeMessenger) SendText(ctx context.Context, recipientID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, recipientID+"|"+text)
	return f.err
}

func newTestServer(tutor *fakeTutor, messenger *fakeMessenger) *Server {
	logger := zerolog.Nop()
	return NewServer(tutor, messenger, "podio-ajudante-token", &logger, true)
}

const deliveryBody = `{
  "entry": [{
    "changes": [{
      "value": {
        "messages": [{
          "from": "5511999999999",
          "text": {"body": "oi"}
        }]
      }
    }]
  }]
}`

// ---- Tests ----

func TestHandshake_Verified(t *testing.T) {
	srv := newTestServer(&fakeTutor{}, &fakeMessenger{})
	req := httptest.NewRequest(http.MethodGet,
		"/whatsapp-webhook?hub.mode=subscribe&hub.verify_token=podio-ajudante-token&hub.challenge=123", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "123" {
		t.Fatalf("expected challenge echo, got %q", body)
	}
}

func TestHandshake_Rejected(t *testing.T) {
	cases := []struct {
		name  string
		query string
	}{
		{"wrong token", "hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=123"},
		{"missing mode", "hub.verify_token=podio-ajudante-token&hub.challenge=123"},
		{"no params", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(&fakeTutor{}, &fakeMessenger{})
			req := httptest.NewRequest(http.MethodGet, "/whatsapp-webhook?"+tc.query, nil)
			rec := httptest.NewRecorder()
			srv.Routes().ServeHTTP(rec, req)

			if rec.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rec.Code)
			}
			if rec.Body.Len() != 0 {
				t.Fatalf("expected empty body, got %q", rec.Body.String())
			}
		})
	}
}

func TestDelivery_ValidMessage(t *testing.T) {
	tutor := &fakeTutor{reply: "uma dica"}
	messenger := &fakeMessenger{}
	srv := newTestServer(tutor, messenger)

	req := httptest.NewRequest(http.MethodPost, "/whatsapp-webhook", strings.NewReader(deliveryBody))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(tutor.calls) != 1 || tutor.calls[0] != "oi" {
		t.Fatalf("expected exactly one tutor call with 'oi', got %v", tutor.calls)
	}
	if len(messenger.sends) != 1 || messenger.sends[0] != "5511999999999|uma dica" {
		t.Fatalf("expected one send relaying the reply, got %v", messenger.sends)
	}
}

func TestDelivery_NoMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty entry", `{"entry": []}`},
		{"no changes", `{"entry": [{}]}`},
		{"no messages", `{"entry": [{"changes": [{"value": {}}]}]}`},
		{"no text", `{"entry": [{"changes": [{"value": {"messages": [{"from": "551"}]}}]}]}`},
		{"empty text", `{"entry": [{"changes": [{"value": {"messages": [{"from": "551", "text": {"body": "  "}}]}}]}]}`},
		{"malformed json", `{"entry": `},
		{"empty body", ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tutor := &fakeTutor{reply: "x"}
			messenger := &fakeMessenger{}
			srv := newTestServer(tutor, messenger)

			req := httptest.NewRequest(http.MethodPost, "/whatsapp-webhook", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			srv.Routes().ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if len(tutor.calls) != 0 || len(messenger.sends) != 0 {
				t.Fatalf("expected zero outbound calls, got tutor=%v sends=%v", tutor.calls, messenger.sends)
			}
		})
	}
}

func TestDelivery_TutorErrorStillAcked(t *testing.T) {
	tutor := &fakeTutor{err: errors.New("store down")}
	messenger := &fakeMessenger{}
	srv := newTestServer(tutor, messenger)

	req := httptest.NewRequest(http.MethodPost, "/whatsapp-webhook", strings.NewReader(deliveryBody))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite tutor failure, got %d", rec.Code)
	}
	if len(messenger.sends) != 0 {
		t.Fatalf("expected no send after tutor failure, got %v", messenger.sends)
	}
}

func TestDelivery_SendFailureStillAcked(t *testing.T) {
	tutor := &fakeTutor{reply: "dica"}
	messenger := &fakeMessenger{err: errors.New("network down")}
	srv := newTestServer(tutor, messenger)

	req := httptest.NewRequest(http.MethodPost, "/whatsapp-webhook", strings.NewReader(deliveryBody))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite send failure, got %d", rec.Code)
	}
}

func TestDelivery_PanicRecovered(t *testing.T) {
	srv := newTestServer(&fakeTutor{panic: true}, &fakeMessenger{})

	req := httptest.NewRequest(http.MethodPost, "/whatsapp-webhook", strings.NewReader(deliveryBody))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after recovered panic, got %d", rec.Code)
	}
}

func TestRootLiveness(t *testing.T) {
	srv := newTestServer(&fakeTutor{}, &fakeMessenger{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != livenessBody {
		t.Fatalf("unexpected liveness body %q", body)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeTutor{}, &fakeMessenger{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
