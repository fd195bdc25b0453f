// Package chat connects a session to the AI collaborator. Completed turns are
// recorded in the session transcript and the activity log; partial replies
// never reach either.
package chat

import (
	"context"
	"errors"
	"fmt"

	"aiaudit/internal/session"
)

// AcademicInstruction is the system instruction sent with every question.
const AcademicInstruction = "你是一个专业的学术辅助AI。请以清晰且具有层级感的Markdown格式回答。" +
	"必须使用标题(## 或 ###)、列表项、加粗(**)和学术引用(>)。" +
	"确保回复看起来像是一份精心排版的学术报告大纲或深度解析文档。"

// Message is one prior turn handed to a provider as conversation context.
type Message struct {
	Role session.Role
	Text string
}

// Provider produces the collaborator's reply to prompt given the earlier turns.
type Provider interface {
	Reply(ctx context.Context, history []Message, prompt string) (string, error)
	Name() string
}

// ErrProviderUnavailable is matched by every ProviderError.
var ErrProviderUnavailable = errors.New("chat provider unavailable")

// ProviderError wraps a failed provider call.
type ProviderError struct {
	Provider string
	// Code is the upstream HTTP status, zero when unknown.
	Code int
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProviderUnavailable) match any provider failure.
func (e *ProviderError) Is(target error) bool { return target == ErrProviderUnavailable }

// Retryable reports whether the failure was a rate limit or a server error.
func (e *ProviderError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// HistoryFromExchanges converts recorded turns to provider messages.
func HistoryFromExchanges(exchanges []session.ChatExchange) []Message {
	out := make([]Message, len(exchanges))
	for i, c := range exchanges {
		out[i] = Message{Role: c.Role, Text: c.Text}
	}
	return out
}

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Provider        string
	Model           string
	APIKey          string
	MaxOutputTokens int
}

// NewProvider builds the provider named by cfg.Provider ("gemini" or "echo").
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "gemini", "":
		return NewGeminiProvider(ctx, GeminiConfig{
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			MaxOutputTokens:   cfg.MaxOutputTokens,
			SystemInstruction: AcademicInstruction,
		})
	case "echo":
		return NewEchoProvider(), nil
	default:
		return nil, fmt.Errorf("unknown chat provider %q", cfg.Provider)
	}
}
