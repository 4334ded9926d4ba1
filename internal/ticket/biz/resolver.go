package biz

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/store"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/errors"
)

// ResolvedBy 命中的查找键.
type ResolvedBy string

const (
	ResolvedByPrimaryKey  ResolvedBy = "primary_key"
	ResolvedByIdentifier  ResolvedBy = "identifier"
	ResolvedByExternalKey ResolvedBy = "external_key"
)

// Resolver 将调用方传入的 token 解析为工单. 依次尝试主键, identifier, linear_id,
// 第一个命中即返回. 同一 token 同时匹配多个工单时按此优先级取舍.
type Resolver struct {
	store store.TicketStore
}

// NewResolver creates a Resolver.
func NewResolver(s store.TicketStore) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns store.ErrNotFound when no key matches. Other store failures
// are returned at once as ErrTicketStore.
func (r *Resolver) Resolve(ctx context.Context, token string) (*model.Ticket, error) {
	t, _, err := r.ResolveWithKey(ctx, token)
	return t, err
}

// ResolveWithKey is Resolve that also reports which key matched.
func (r *Resolver) ResolveWithKey(ctx context.Context, token string) (*model.Ticket, ResolvedBy, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, "", store.ErrNotFound
	}

	if oid, err := primitive.ObjectIDFromHex(token); err == nil {
		t, err := r.lookup(ctx, store.ByID(oid))
		if t != nil || err != nil {
			return t, ResolvedByPrimaryKey, err
		}
	}

	t, err := r.lookup(ctx, store.ByIdentifier(token))
	if t != nil || err != nil {
		return t, ResolvedByIdentifier, err
	}

	t, err = r.lookup(ctx, store.ByLinearID(token))
	if t != nil || err != nil {
		return t, ResolvedByExternalKey, err
	}

	return nil, "", store.ErrNotFound
}

// lookup returns (nil, nil) on a miss.
func (r *Resolver) lookup(ctx context.Context, f store.Filter) (*model.Ticket, error) {
	t, err := r.store.FindOne(ctx, f)
	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	default:
		return nil, errors.ErrTicketStore.WithCause(err)
	}
}
