package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/logger"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/metrics"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
	"github.com/BluePanda-io/ai-agent-apis/pkg/llm"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/json"
)

const (
	narratorTemperature = 0.3
	narratorMaxTokens   = 100

	noSignificantChanges = "No significant changes detected"
	absentValue          = "none"
)

// Narrator 为一次更新生成一句变更描述. 摘要模型不可用时使用确定性的降级描述.
type Narrator struct {
	chat    llm.ChatProvider
	metrics *metrics.TicketMetrics
}

// NewNarrator creates a Narrator. chat may be nil, in which case only the fallback is used.
func NewNarrator(chat llm.ChatProvider) *Narrator {
	return &Narrator{chat: chat}
}

// Narrate never fails.
func (n *Narrator) Narrate(ctx context.Context, old, new *model.Ticket) string {
	if n.chat == nil {
		return n.Fallback(old, new)
	}

	prompt := buildNarratorPrompt(old, new, NewComments(old, new))
	reply, err := n.chat.Generate(ctx, prompt, narratorSystemPrompt,
		llm.WithTemperature(narratorTemperature),
		llm.WithMaxTokens(narratorMaxTokens),
	)
	if err != nil {
		logger.Warnw("change narration failed, using fallback",
			"ticket", new.DisplayKey(),
			"provider", n.chat.Name(),
			"error", err.Error(),
		)
		n.metrics.RecordFallback("narrator", metrics.ReasonError)
		return n.Fallback(old, new)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		logger.Warnw("change narration returned empty reply, using fallback", "ticket", new.DisplayKey())
		n.metrics.RecordFallback("narrator", metrics.ReasonEmpty)
		return n.Fallback(old, new)
	}
	return reply
}

// Fallback 确定性的变更描述, 对同一对输入总是返回相同结果.
func (n *Narrator) Fallback(old, new *model.Ticket) string {
	var parts []string

	if added := NewComments(old, new); len(added) > 0 {
		parts = append(parts, fmt.Sprintf("%d new comment(s) added", len(added)))
	}

	changed := func(field, from, to string) {
		if from != to {
			parts = append(parts, fmt.Sprintf("%s changed from %s to %s", field, orNone(from), orNone(to)))
		}
	}
	changed("identifier", old.IdentifierValue(), new.IdentifierValue())
	changed("linear_id", old.LinearIDValue(), new.LinearIDValue())
	changed("title", old.Title, new.Title)
	changed("description", old.Description, new.Description)
	changed("status", string(old.Status), string(new.Status))
	changed("priority", string(old.Priority), string(new.Priority))

	for _, k := range extensionKeys(old.Extensions, new.Extensions) {
		ov, ook := old.Extensions[k]
		nv, nok := new.Extensions[k]
		if ook == nok && model.ExtensionValueEqual(ov, nv) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s changed from %s to %s", k, formatValue(ov, ook), formatValue(nv, nok)))
	}

	if len(parts) == 0 {
		return noSignificantChanges
	}
	return strings.Join(parts, ", ")
}

// NewComments returns the comments of new whose (author, text) pair does not
// appear in old.
func NewComments(old, new *model.Ticket) []model.Comment {
	type key struct{ author, text string }
	seen := make(map[key]struct{}, len(old.Comments))
	for _, c := range old.Comments {
		seen[key{c.Author, c.Text}] = struct{}{}
	}

	var added []model.Comment
	for _, c := range new.Comments {
		if _, ok := seen[key{c.Author, c.Text}]; !ok {
			added = append(added, c)
		}
	}
	return added
}

func extensionKeys(a, b model.Extensions) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func orNone(s string) string {
	if s == "" {
		return absentValue
	}
	return s
}

func formatValue(v any, present bool) string {
	if !present || v == nil {
		return absentValue
	}
	switch x := v.(type) {
	case string:
		return orNone(x)
	case bool, int, int32, int64, float32, float64:
		return fmt.Sprint(x)
	}
	b, err := json.MarshalSorted(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
