package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"whatsapp-ai-tutor/internal/config"
	"whatsapp-ai-tutor/internal/domain/model"
	"whatsapp-ai-tutor/internal/domain/ports/adapter"
	"whatsapp-ai-tutor/internal/infra/memstore"
	"whatsapp-ai-tutor/internal/usecase"
)

// scriptedAI lets end-to-end tests control the provider outcome.
type scriptedAI struct {
	reply string
	err   error
	seen  [][]adapter.Message
}

func (s *scriptedAI) Name() string { return "scripted" }

func (s *scriptedAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	r, _, err := s.ChatWithUsage(ctx, model, messages)
	return r, err
}

func (s *scriptedAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	s.seen = append(s.seen, messages)
	if s.err != nil {
		return "", adapter.Usage{}, s.err
	}
	return s.reply, adapter.Usage{}, nil
}

func newStack(t *testing.T, ai adapter.AIServiceAdapter) (*Server, *memstore.SessionRepo, *fakeMessenger) {
	t.Helper()
	logger := zerolog.Nop()
	repo := memstore.NewSessionRepo()
	persona := config.PersonaConfig{
		SystemPrompt:  "Você é o Pódio Ajudante.",
		Greeting:      "Entendido!",
		OverloadReply: "Tente novamente em alguns instantes.",
		FallbackReply: "Desculpe, não consegui analisar agora.",
	}
	uc := usecase.NewTutorUseCase(repo, memstore.NewKeyedLocker(), ai, persona, "gemini-2.0-flash", &logger)
	messenger := &fakeMessenger{}
	return NewServer(uc, messenger, "podio-ajudante-token", &logger, true), repo, messenger
}

func TestFirstContact_CreatesSessionAndRelaysReply(t *testing.T) {
	ai := &scriptedAI{reply: "uma dica conceitual"}
	srv, repo, messenger := newStack(t, ai)

	req := httptest.NewRequest(http.MethodPost, "/whatsapp-webhook", strings.NewReader(deliveryBody))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	s, err := repo.FindByUser(context.Background(), "5511999999999")
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	// persona + greeting + user turn + assistant turn
	if len(s.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(s.Messages))
	}

	if len(ai.seen) != 1 {
		t.Fatalf("expected one AI call, got %d", len(ai.seen))
	}
	sent := ai.seen[0]
	if sent[0].Role != model.RoleSystem {
		t.Fatalf("expected persona preamble first, got %s", sent[0].Role)
	}
	if last := sent[len(sent)-1]; last.Content != "oi" {
		t.Fatalf("expected trailing user turn 'oi', got %+v", last)
	}

	if len(messenger.sends) != 1 || messenger.sends[0] != "5511999999999|uma dica conceitual" {
		t.Fatalf("expected reply relayed to the student, got %v", messenger.sends)
	}
}

func TestProviderUnavailable_RelaysOverloadFallback(t *testing.T) {
	ai := &scriptedAI{err: errors.New("Service Unavailable 503")}
	srv, _, messenger := newStack(t, ai)

	req := httptest.NewRequest(http.MethodPost, "/whatsapp-webhook", strings.NewReader(deliveryBody))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(messenger.sends) != 1 || messenger.sends[0] != "5511999999999|Tente novamente em alguns instantes." {
		t.Fatalf("expected overload fallback relayed, got %v", messenger.sends)
	}
}

func TestSecondMessage_ReusesSession(t *testing.T) {
	ai := &scriptedAI{reply: "ok"}
	srv, repo, _ := newStack(t, ai)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/whatsapp-webhook", strings.NewReader(deliveryBody))
		rec := httptest.NewRecorder()
		srv.Routes().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}

	s, err := repo.FindByUser(context.Background(), "5511999999999")
	if err != nil {
		t.Fatal(err)
	}
	// seeded pair plus two full exchanges
	if len(s.Messages) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(s.Messages))
	}
	// the second AI call must carry the whole earlier conversation
	if len(ai.seen) != 2 || len(ai.seen[1]) != 5 {
		t.Fatalf("expected second call with 5 messages, got %d calls, last len %d",
			len(ai.seen), len(ai.seen[len(ai.seen)-1]))
	}
}
