package biz

import "github.com/BluePanda-io/ai-agent-apis/pkg/utils/errors"

// Outcome 业务操作结果分类, 用于日志.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
)

// OutcomeOf classifies err.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, errors.ErrTicketNotFound), errors.Is(err, errors.ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
