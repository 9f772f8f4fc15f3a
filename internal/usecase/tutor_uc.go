// File: internal/usecase/tutor_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-ai-tutor/internal/config"
	"whatsapp-ai-tutor/internal/domain"
	"whatsapp-ai-tutor/internal/domain/model"
	"whatsapp-ai-tutor/internal/domain/ports/adapter"
	"whatsapp-ai-tutor/internal/domain/ports/repository"
	"whatsapp-ai-tutor/internal/infra/logging"
	"whatsapp-ai-tutor/internal/infra/metrics"
)

// Compile-time check
var _ TutorUseCase = (*tutorUC)(nil)

type TutorUseCase interface {
	// GetOrCreateSession returns the live session for userID, creating one
	// seeded with the persona preamble on first contact.
	GetOrCreateSession(ctx context.Context, userID string) (*model.ChatSession, error)

	// Reply runs one tutoring exchange: append the student turn, ask the
	// model, append and return its reply. Provider failures never surface;
	// they are substituted with a fixed fallback string.
	Reply(ctx context.Context, userID, text string) (string, error)
}

type tutorUC struct {
	sessions repository.ChatSessionRepository
	locker   repository.Locker
	ai       adapter.AIServiceAdapter
	persona  config.PersonaConfig
	model    string
	log      *zerolog.Logger
}

// lockTTL must outlive a slow provider call; there is no client-side deadline
// on the AI request itself.
const lockTTL = 2 * time.Minute

// historyWindow bounds how many turns travel to the provider per call.
const historyWindow = 30

func NewTutorUseCase(
	sessions repository.ChatSessionRepository,
	locker repository.Locker,
	ai adapter.AIServiceAdapter,
	persona config.PersonaConfig,
	modelName string,
	logger *zerolog.Logger,
) *tutorUC {
	return &tutorUC{
		sessions: sessions,
		locker:   locker,
		ai:       ai,
		persona:  persona,
		model:    modelName,
		log:      logger,
	}
}

func (t *tutorUC) GetOrCreateSession(ctx context.Context, userID string) (*model.ChatSession, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if s, err := t.sessions.FindByUser(ctx, userID); err == nil {
		return s, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	fresh := model.NewChatSession(userID, t.model, t.persona.SystemPrompt, t.persona.Greeting)
	s, created, err := t.sessions.PutIfAbsent(ctx, fresh)
	if err != nil {
		return nil, err
	}
	if created {
		metrics.IncSessionCreated()
		logging.With(ctx, t.log).Info().Msg("chat session created")
	}
	return s, nil
}

func (t *tutorUC) Reply(ctx context.Context, userID, text string) (string, error) {
	defer logging.TraceDuration(t.log, "TutorUC.Reply")()

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrInvalidArgument
	}

	// Serialize per student: two messages arriving back-to-back must reach the
	// model in the order they were sent.
	token, err := t.locker.TryLock(ctx, "chat_lock:"+userID, lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrSessionBusy) {
			metrics.IncFallback(t.ai.Name(), "busy")
			return t.persona.OverloadReply, nil
		}
		return "", err
	}
	defer func() { _ = t.locker.Unlock(context.Background(), "chat_lock:"+userID, token) }()

	s, err := t.GetOrCreateSession(ctx, userID)
	if err != nil {
		return "", err
	}

	s.AddMessage(model.RoleUser, text)

	// Long conversations slide the window past the seeded persona turn; pin
	// it so the tutor's instructions reach the provider on every call.
	msgs := s.GetRecentMessages(historyWindow)
	adapterMsgs := make([]adapter.Message, 0, len(msgs)+1)
	if len(msgs) < len(s.Messages) && s.Messages[0].Role == model.RoleSystem {
		adapterMsgs = append(adapterMsgs, adapter.Message{Role: s.Messages[0].Role, Content: s.Messages[0].Content})
	}
	for _, m := range msgs {
		adapterMsgs = append(adapterMsgs, adapter.Message{Role: m.Role, Content: m.Content})
	}

	start := time.Now()
	reply, usage, err := t.ai.ChatWithUsage(ctx, s.Model, adapterMsgs)
	latency := int(time.Since(start).Milliseconds())
	metrics.ObserveChatUsage(t.ai.Name(), s.Model,
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, latency, err == nil)

	if err != nil {
		// The student turn stays recorded; no rollback.
		if saveErr := t.sessions.Save(ctx, s); saveErr != nil {
			logging.With(ctx, t.log).Error().Err(saveErr).Msg("save session after ai failure")
		}
		return t.fallbackFor(ctx, err), nil
	}

	s.AddMessage(model.RoleAssistant, reply)
	if err := t.sessions.Save(ctx, s); err != nil {
		logging.With(ctx, t.log).Error().Err(err).Msg("save session")
	}
	return reply, nil
}

// fallbackFor classifies a provider failure into the two user-facing strings:
// transient overload (HTTP 503 or an "overloaded" message) asks the student to
// retry shortly, anything else gets the generic apology.
func (t *tutorUC) fallbackFor(ctx context.Context, err error) string {
	logging.With(ctx, t.log).Warn().Err(err).Str("provider", t.ai.Name()).Msg("ai call failed")
	if IsOverloaded(err) {
		metrics.IncFallback(t.ai.Name(), "overload")
		return t.persona.OverloadReply
	}
	metrics.IncFallback(t.ai.Name(), "generic")
	return t.persona.FallbackReply
}

// IsOverloaded reports whether err looks like transient provider overload.
func IsOverloaded(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "503") || strings.Contains(msg, "overloaded")
}
