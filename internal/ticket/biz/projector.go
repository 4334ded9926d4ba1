package biz

import (
	"context"
	"strings"

	"github.com/kart-io/logger"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/metrics"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
	"github.com/BluePanda-io/ai-agent-apis/pkg/llm"
)

const (
	projectorTemperature = 0.3
	projectorMaxTokens   = 500
)

// Projector 生成用于向量化的检索文本. 原始工单 JSON 不会直接被向量化.
type Projector struct {
	chat    llm.ChatProvider
	metrics *metrics.TicketMetrics
}

// NewProjector creates a Projector. chat may be nil.
func NewProjector(chat llm.ChatProvider) *Projector {
	return &Projector{chat: chat}
}

// Project never fails.
func (p *Projector) Project(ctx context.Context, t *model.Ticket) string {
	if p.chat == nil {
		return p.Fallback(t)
	}

	reply, err := p.chat.Generate(ctx, buildProjectorPrompt(t), projectorSystemPrompt,
		llm.WithTemperature(projectorTemperature),
		llm.WithMaxTokens(projectorMaxTokens),
	)
	if err != nil {
		logger.Warnw("ticket projection failed, using fallback",
			"ticket", t.DisplayKey(),
			"provider", p.chat.Name(),
			"error", err.Error(),
		)
		p.metrics.RecordFallback("projector", metrics.ReasonError)
		return p.Fallback(t)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		p.metrics.RecordFallback("projector", metrics.ReasonEmpty)
		return p.Fallback(t)
	}
	logger.Debugw("ticket projected", "ticket", t.DisplayKey(), "text", reply)
	return reply
}

// Fallback joins identifier, title and description with spaces.
func (p *Projector) Fallback(t *model.Ticket) string {
	parts := make([]string, 0, 3)
	if id := t.IdentifierValue(); id != "" {
		parts = append(parts, id)
	}
	parts = append(parts, t.Title, t.Description)
	return strings.Join(parts, " ")
}
