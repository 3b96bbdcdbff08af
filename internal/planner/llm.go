package planner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/seantiz/cellbook/internal/backend/kernel"
	"github.com/seantiz/cellbook/internal/model"
)

// LLM plans code by asking a chat model.
type LLM struct {
	chat   einomodel.BaseChatModel
	logger *slog.Logger
}

// NewLLM returns a planner backed by chat.
func NewLLM(chat einomodel.BaseChatModel, logger *slog.Logger) *LLM {
	return &LLM{chat: chat, logger: logger}
}

// Plan sends the system rules and a prompt built from messages and vars,
// and returns the model's reply without code fences.
func (l *LLM) Plan(ctx context.Context, messages []string, vars model.Variables) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: no messages to plan from", ErrPlanner)
	}

	input := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt(messages, vars)),
	}

	start := time.Now()
	reply, err := l.chat.Generate(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: generate: %w", ErrPlanner, err)
	}
	if reply == nil {
		return "", fmt.Errorf("%w: model returned no message", ErrPlanner)
	}

	code := kernel.StripFences(reply.Content)
	if code == "" {
		return "", fmt.Errorf("%w: model returned no code", ErrPlanner)
	}

	l.logger.Debug("code planned",
		"messages", len(messages),
		"variables", len(vars),
		"code_bytes", len(code),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return code, nil
}
