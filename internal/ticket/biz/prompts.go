package biz

import (
	"fmt"
	"strings"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/json"
)

const (
	narratorSystemPrompt = "You are a helpful assistant that analyzes ticket changes and provides concise, contextual descriptions of what changed."

	narratorPromptTemplate = `Analyze the changes between these two versions of a ticket and provide a concise, natural language description of what changed, focusing on the most important and contextual changes.

Old Ticket:
%s

New Ticket:
%s
%s
Consider all fields and their relationships. For example:
- Changes in status might indicate progress
- Changes in priority might indicate urgency shifts
- New comments might indicate discussion or updates
- Changes in custom fields might indicate scope changes

Provide a single sentence describing the most significant change in context, considering all these aspects.`

	projectorSystemPrompt = "You are a helpful assistant that processes ticket information for better search and retrieval. Extract the readable information that would be most useful for finding the ticket later with a text search, and drop anything unreadable or irrelevant."

	projectorPromptTemplate = `Extract the most relevant, readable information from this ticket for text search and retrieval. Focus only on what would be useful for finding this ticket later.

Ticket Information:
%s

Provide a concise summary with only the essential information that would make this ticket discoverable in a text search.`
)

// narratorHiddenKeys 不参与变更描述的字段.
var narratorHiddenKeys = []string{"_id", "createdAt", "updatedAt", "contextualChange"}

func buildNarratorPrompt(old, new *model.Ticket, added []model.Comment) string {
	var comments string
	if len(added) > 0 {
		var b strings.Builder
		b.WriteString("\nNew Comments Added:\n")
		for _, c := range added {
			fmt.Fprintf(&b, "- %s: %s\n", c.Author, c.Text)
		}
		comments = b.String()
	}
	return fmt.Sprintf(narratorPromptTemplate,
		ticketJSON(old, narratorHiddenKeys...),
		ticketJSON(new, narratorHiddenKeys...),
		comments,
	)
}

func buildProjectorPrompt(t *model.Ticket) string {
	return fmt.Sprintf(projectorPromptTemplate, ticketJSON(t))
}

// ticketJSON 输出按 key 排序的工单 JSON, 去掉 hidden 中的字段.
func ticketJSON(t *model.Ticket, hidden ...string) string {
	raw, err := json.Marshal(t)
	if err != nil {
		return "{}"
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "{}"
	}
	for _, k := range hidden {
		delete(fields, k)
	}
	out, err := json.MarshalSorted(fields)
	if err != nil {
		return "{}"
	}
	return string(out)
}
