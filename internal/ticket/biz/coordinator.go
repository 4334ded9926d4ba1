package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"github.com/pmezard/go-difflib/difflib"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/index"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/store"
	"github.com/BluePanda-io/ai-agent-apis/pkg/llm"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/errors"
)

const (
	// DefaultChangedBy 未提供修改人时写入版本记录的值.
	DefaultChangedBy = "system"

	defaultListLimit = 20
	maxListLimit     = 200
)

// Coordinator 协调文档库与向量索引的写入.
//
// 每个变更按固定顺序执行: 解析 -> 文档库 -> 变更描述 -> 投影 -> 向量化 -> 索引.
// 文档库写入成功即视为成功; 之后的索引失败只记录一致性事件.
type Coordinator struct {
	store     store.Store
	index     index.VectorIndex
	embedder  llm.EmbeddingProvider
	resolver  *Resolver
	narrator  *Narrator
	projector *Projector
	cfg       *Config
	now       func() time.Time
}

// NewCoordinator creates a Coordinator. chat may be nil.
func NewCoordinator(s store.Store, idx index.VectorIndex, embedder llm.EmbeddingProvider, chat llm.ChatProvider, cfg *Config) *Coordinator {
	cfg = cfg.complete()
	narrator := NewNarrator(chat)
	narrator.metrics = cfg.Metrics
	projector := NewProjector(chat)
	projector.metrics = cfg.Metrics

	return &Coordinator{
		store:     s,
		index:     idx,
		embedder:  embedder,
		resolver:  NewResolver(s),
		narrator:  narrator,
		projector: projector,
		cfg:       cfg,
		now:       store.Now,
	}
}

// Resolver returns the identifier resolver shared with the coordinator.
func (c *Coordinator) Resolver() *Resolver {
	return c.resolver
}

// Create validates and inserts a ticket, then indexes it.
func (c *Coordinator) Create(ctx context.Context, req *model.CreateTicketRequest) (*model.Ticket, error) {
	if req == nil {
		return nil, errors.ErrTicketInvalid.WithMessage("request body is required")
	}

	now := c.now()
	t := &model.Ticket{
		ID:          primitive.NewObjectID(),
		Identifier:  req.Identifier,
		LinearID:    req.LinearID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Comments:    toComments(req.Comments, now),
		Extensions:  req.Extensions.Clone(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.Normalize()
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return nil, validationError(err)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.ErrTicketStore.WithCause(err)
	}

	created, err := c.store.Insert(ctx, t)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateIdentifier) {
			return nil, errors.ErrTicketDuplicateIdentifier.WithMessagef("identifier %q already exists", t.IdentifierValue())
		}
		c.recordIfAbandoned(ctx, t, err)
		return nil, errors.ErrTicketStore.WithCause(err)
	}
	logger.Infow("ticket created", "ticket", created.DisplayKey(), "id", created.ID.Hex())

	c.syncIndex(ctx, created)
	return created, nil
}

// Get resolves token to a ticket.
func (c *Coordinator) Get(ctx context.Context, token string) (*model.Ticket, error) {
	t, by, err := c.resolver.ResolveWithKey(ctx, token)
	if err != nil {
		return nil, resolveError(token, err)
	}
	logger.Debugw("ticket resolved", "token", token, "resolved_by", by)
	return t, nil
}

// Update merges req into the ticket addressed by token.
func (c *Coordinator) Update(ctx context.Context, token string, req *model.UpdateTicketRequest, changedBy string) (*model.Ticket, error) {
	if req == nil {
		req = &model.UpdateTicketRequest{}
	}

	cur, by, err := c.resolver.ResolveWithKey(ctx, token)
	if err != nil {
		return nil, resolveError(token, err)
	}

	next, patch := merge(cur, req, c.now())
	if err := next.Validate(); err != nil {
		return nil, validationError(err)
	}

	narrative := c.narrator.Narrate(ctx, cur, next)
	patch.ContextualChange = &narrative
	patch.UpdatedAt = c.nextUpdatedAt(cur.UpdatedAt)

	updated, err := c.store.UpdateOne(ctx, cur.ID, patch)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, resolveError(token, err)
		case errors.Is(err, store.ErrDuplicateIdentifier):
			return nil, errors.ErrTicketDuplicateIdentifier.WithMessagef("identifier %q already exists", next.IdentifierValue())
		default:
			c.recordIfAbandoned(ctx, next, err)
			return nil, errors.ErrTicketStore.WithCause(err)
		}
	}
	logger.Infow("ticket updated",
		"ticket", updated.DisplayKey(),
		"resolved_by", by,
		"changed_by", changedBy,
		"change", narrative,
	)

	c.recordVersions(ctx, cur, updated, changedBy)

	if model.SearchTextChanged(cur, updated) {
		c.syncIndex(ctx, updated)
	}
	return updated, nil
}

// UpdateStatus is Update with only the status set.
func (c *Coordinator) UpdateStatus(ctx context.Context, token string, status model.Status, changedBy string) (*model.Ticket, error) {
	return c.Update(ctx, token, &model.UpdateTicketRequest{Status: &status}, changedBy)
}

// Delete removes the ticket, then its index entry. An index failure is
// recorded but does not undo the delete.
func (c *Coordinator) Delete(ctx context.Context, token string) (*model.Ticket, error) {
	cur, by, err := c.resolver.ResolveWithKey(ctx, token)
	if err != nil {
		return nil, resolveError(token, err)
	}

	deleted, err := c.store.DeleteOne(ctx, cur.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, resolveError(token, err)
		}
		c.recordIfAbandoned(ctx, cur, err)
		return nil, errors.ErrTicketStore.WithCause(err)
	}
	logger.Infow("ticket deleted", "ticket", deleted.DisplayKey(), "resolved_by", by)

	ictx, cancel := c.detached(ctx)
	defer cancel()
	if err := c.index.Delete(ictx, deleted.ID.Hex()); err != nil {
		c.recordPartial(ctx, deleted, model.OperationDelete, err)
	}
	return deleted, nil
}

// NormalizeListFilter applies the default page size and clamps offset and limit.
func NormalizeListFilter(f model.ListFilter) model.ListFilter {
	if f.Offset < 0 {
		f.Offset = 0
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	return f
}

// List returns a page of tickets, newest first, plus the total match count.
func (c *Coordinator) List(ctx context.Context, f model.ListFilter) ([]*model.Ticket, int64, error) {
	f = NormalizeListFilter(f)
	items, total, err := c.store.FindMany(ctx, store.Filter{
		Status:     f.Status,
		Priority:   f.Priority,
		Identifier: strings.TrimSpace(f.Identifier),
		LinearID:   strings.TrimSpace(f.LinearID),
	}, store.ListOptions{Offset: f.Offset, Limit: f.Limit})
	if err != nil {
		return nil, 0, errors.ErrTicketStore.WithCause(err)
	}
	return items, total, nil
}

// History returns the title and description versions of a ticket, newest first.
func (c *Coordinator) History(ctx context.Context, token string) ([]*model.TicketVersion, error) {
	t, err := c.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	versions, err := c.store.ListVersions(ctx, t.ID)
	if err != nil {
		return nil, errors.ErrTicketStore.WithCause(err)
	}
	return versions, nil
}

// Events lists consistency events. An empty status lists all.
func (c *Coordinator) Events(ctx context.Context, status model.EventStatus, limit int) ([]*model.ConsistencyEvent, error) {
	switch status {
	case "", model.EventPending, model.EventResolved:
	default:
		return nil, errors.ErrInvalidParam.WithMessagef("unknown event status %q", status)
	}
	events, err := c.store.ListEvents(ctx, status, limit)
	if err != nil {
		return nil, errors.ErrTicketStore.WithCause(err)
	}
	return events, nil
}

// cacheClearer 由带缓存的向量化实现, 例如 llm.CachedEmbeddingProvider.
type cacheClearer interface {
	ClearCache(ctx context.Context) (int, error)
}

// DeleteAll empties the vector index and any embedding cache. Tickets are not touched.
func (c *Coordinator) DeleteAll(ctx context.Context) error {
	if err := c.index.DeleteAll(ctx); err != nil {
		return errors.ErrTicketIndexUnavailable.WithCause(err)
	}
	logger.Warnw("vector index cleared")

	// 更换向量模型后需要重新计算全部向量
	if cc, ok := c.embedder.(cacheClearer); ok {
		if _, err := cc.ClearCache(ctx); err != nil {
			logger.Warnw("failed to clear embedding cache", "error", err.Error())
		}
	}
	return nil
}

// syncIndex 在脱离请求取消的 context 中写入索引, 失败时记录一致性事件.
func (c *Coordinator) syncIndex(ctx context.Context, t *model.Ticket) {
	ictx, cancel := c.detached(ctx)
	defer cancel()

	if err := c.upsertEntry(ictx, t); err != nil {
		c.recordPartial(ctx, t, model.OperationUpsert, err)
	}
}

func (c *Coordinator) upsertEntry(ctx context.Context, t *model.Ticket) error {
	text := c.projector.Project(ctx, t)
	vector, err := c.embedder.EmbedSingle(ctx, text)
	if err != nil {
		return errors.ErrTicketUpstreamUnavailable.WithCause(err)
	}
	if err := c.index.Upsert(ctx, model.NewSearchEntry(t, text, vector)); err != nil {
		return errors.ErrTicketIndexUnavailable.WithCause(err)
	}
	return nil
}

// recordIfAbandoned 在请求取消导致文档库写入报错时记录一致性事件.
// 此时写入可能已经提交, 事件按 upsert 记录: 重放时工单存在则重新索引, 不存在则删除向量.
func (c *Coordinator) recordIfAbandoned(ctx context.Context, t *model.Ticket, cause error) {
	if ctx.Err() == nil {
		return
	}
	c.recordPartial(ctx, t, model.OperationUpsert, cause)
}

// recordPartial 记录文档库与索引不一致. 事件写入同样使用独立的 context.
func (c *Coordinator) recordPartial(ctx context.Context, t *model.Ticket, op model.EventOperation, cause error) {
	c.cfg.Metrics.RecordPartialConsistency(string(op))
	logger.Errorw("search index out of sync",
		"code", errors.ErrTicketPartialConsistency.Code,
		"ticket", t.DisplayKey(),
		"id", t.ID.Hex(),
		"operation", op,
		"error", cause.Error(),
	)

	ectx, cancel := c.detached(ctx)
	defer cancel()
	err := c.store.RecordEvent(ectx, &model.ConsistencyEvent{
		TicketID:   t.ID,
		Identifier: t.IdentifierValue(),
		Operation:  op,
		Reason:     cause.Error(),
	})
	if err != nil {
		logger.Errorw("failed to record consistency event",
			"ticket", t.DisplayKey(),
			"operation", op,
			"error", err.Error(),
		)
	}
}

func (c *Coordinator) recordVersions(ctx context.Context, old, new *model.Ticket, changedBy string) {
	if changedBy = strings.TrimSpace(changedBy); changedBy == "" {
		changedBy = DefaultChangedBy
	}

	var versions []*model.TicketVersion
	for _, f := range []struct{ name, from, to string }{
		{"title", old.Title, new.Title},
		{"description", old.Description, new.Description},
	} {
		if f.from == f.to {
			continue
		}
		versions = append(versions, &model.TicketVersion{
			TicketID:  new.ID,
			Field:     f.name,
			OldValue:  f.from,
			NewValue:  f.to,
			Diff:      unifiedDiff(f.name, f.from, f.to),
			ChangedBy: changedBy,
			CreatedAt: new.UpdatedAt,
		})
	}
	if len(versions) == 0 {
		return
	}

	vctx, cancel := c.detached(ctx)
	defer cancel()
	if err := c.store.InsertVersions(vctx, versions); err != nil {
		logger.Warnw("failed to record ticket versions", "ticket", new.DisplayKey(), "error", err.Error())
	}
}

// detached 返回不随请求取消, 但受 IndexTimeout 限制的 context.
func (c *Coordinator) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.cfg.IndexTimeout)
}

// nextUpdatedAt 保证 updatedAt 严格递增.
func (c *Coordinator) nextUpdatedAt(prev time.Time) time.Time {
	now := c.now()
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

// merge applies req to a copy of cur and builds the matching store patch.
func merge(cur *model.Ticket, req *model.UpdateTicketRequest, now time.Time) (*model.Ticket, *store.Patch) {
	next := cur.Clone()
	patch := &store.Patch{}

	if req.Identifier != nil {
		if v := strings.TrimSpace(*req.Identifier); v == "" {
			next.Identifier = nil
			patch.ClearIdentifier = true
		} else {
			next.Identifier = &v
			patch.Identifier = model.StringPtr(v)
		}
	}
	if req.LinearID != nil {
		if v := strings.TrimSpace(*req.LinearID); v == "" {
			next.LinearID = nil
			patch.ClearLinearID = true
		} else {
			next.LinearID = &v
			patch.LinearID = model.StringPtr(v)
		}
	}
	if req.Title != nil {
		v := strings.TrimSpace(*req.Title)
		next.Title = v
		patch.Title = &v
	}
	if req.Description != nil {
		v := strings.TrimSpace(*req.Description)
		next.Description = v
		patch.Description = &v
	}
	if req.Status != nil {
		v := *req.Status
		next.Status = v
		patch.Status = &v
	}
	if req.Priority != nil {
		v := *req.Priority
		next.Priority = v
		patch.Priority = &v
	}
	if added := toComments(req.Comments, now); len(added) > 0 {
		next.Comments = append(next.Comments, added...)
		patch.PushComments = added
	}
	if len(req.Extensions) > 0 {
		next.Extensions = cur.Extensions.Merge(req.Extensions)
		patch.Extensions = req.Extensions.Clone()
	}
	return next, patch
}

func toComments(in []model.CommentInput, now time.Time) []model.Comment {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.Comment, len(in))
	for i, c := range in {
		out[i] = model.Comment{
			Text:      strings.TrimSpace(c.Text),
			Author:    strings.TrimSpace(c.Author),
			CreatedAt: now,
		}
	}
	return out
}

func unifiedDiff(field, from, to string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(from),
		B:        difflib.SplitLines(to),
		FromFile: field + ".old",
		ToFile:   field + ".new",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}

func validationError(err error) error {
	if errors.Is(err, model.ErrInvalidIdentifier) {
		return errors.ErrTicketInvalidIdentifier.WithMessage(err.Error())
	}
	return errors.ErrTicketInvalid.WithMessage(err.Error())
}

func resolveError(token string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return errors.ErrTicketNotFound.WithMessagef("ticket %q not found", token)
	}
	if errors.GetCode(err) >= 0 {
		return err
	}
	return errors.ErrTicketStore.WithCause(err)
}
