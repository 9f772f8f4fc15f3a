package model

import (
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents one turn within a chat session.
type ChatMessage struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"` // "user" | "assistant" | "system"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is the aggregate root for one student's ongoing conversation.
// It is keyed by the student's WhatsApp id; there is at most one live session
// per student at any time.
type ChatSession struct {
	UserID    string        `json:"user_id"`
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewChatSession seeds a session with the persona instruction and a canned
// first acknowledgement attributed to the model, so the tutor greets every
// student the same way before the real conversation starts.
func NewChatSession(userID, model, systemPrompt, greeting string) *ChatSession {
	s := &ChatSession{
		UserID:    userID,
		Model:     model,
		Messages:  make([]ChatMessage, 0, 8),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.AddMessage(RoleSystem, systemPrompt)
	s.AddMessage(RoleAssistant, greeting)
	return s
}

func (s *ChatSession) AddMessage(role, content string) {
	s.Messages = append(s.Messages, ChatMessage{
		UserID:    s.UserID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	s.UpdatedAt = time.Now()
}

func (s *ChatSession) GetRecentMessages(n int) []ChatMessage {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
