package store

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
)

// MemoryStore 进程内 Store 实现, 用于本地开发与测试. 语义与 MongoStore 保持一致.
type MemoryStore struct {
	mu       sync.RWMutex
	tickets  map[primitive.ObjectID]*model.Ticket
	versions []*model.TicketVersion
	events   []*model.ConsistencyEvent
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tickets: make(map[primitive.ObjectID]*model.Ticket)}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Insert(ctx context.Context, t *model.Ticket) (*model.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := t.Clone()
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if _, ok := s.tickets[doc.ID]; ok {
		return nil, ErrDuplicateIdentifier
	}
	if s.identifierTaken(doc.IdentifierValue(), doc.ID) {
		return nil, ErrDuplicateIdentifier
	}
	now := Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	s.tickets[doc.ID] = doc
	return doc.Clone(), nil
}

func (s *MemoryStore) identifierTaken(identifier string, self primitive.ObjectID) bool {
	if identifier == "" {
		return false
	}
	for id, t := range s.tickets {
		if id != self && t.IdentifierValue() == identifier {
			return true
		}
	}
	return false
}

func matches(t *model.Ticket, f Filter) bool {
	return (f.ID == nil || t.ID == *f.ID) &&
		(f.Identifier == "" || t.IdentifierValue() == f.Identifier) &&
		(f.LinearID == "" || t.LinearIDValue() == f.LinearID) &&
		(f.Status == "" || t.Status == f.Status) &&
		(f.Priority == "" || t.Priority == f.Priority)
}

func (s *MemoryStore) FindOne(ctx context.Context, f Filter) (*model.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.ID != nil {
		t, ok := s.tickets[*f.ID]
		if !ok || !matches(t, f) {
			return nil, ErrNotFound
		}
		return t.Clone(), nil
	}
	for _, t := range s.sorted(false) {
		if matches(t, f) {
			return t.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// sorted returns tickets by createdAt, newest first when desc.
func (s *MemoryStore) sorted(desc bool) []*model.Ticket {
	out := make([]*model.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt) == desc
		}
		return (a.ID.Hex() > b.ID.Hex()) == desc
	})
	return out
}

func (s *MemoryStore) FindMany(ctx context.Context, f Filter, opts ListOptions) ([]*model.Ticket, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*model.Ticket
	for _, t := range s.sorted(true) {
		if matches(t, f) {
			all = append(all, t)
		}
	}
	total := int64(len(all))

	if opts.Offset >= len(all) {
		return []*model.Ticket{}, total, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}

	items := make([]*model.Ticket, len(all))
	for i, t := range all {
		items[i] = t.Clone()
	}
	return items, total, nil
}

func (s *MemoryStore) UpdateOne(ctx context.Context, id primitive.ObjectID, p *Patch) (*model.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := cur.Clone()

	switch {
	case p.ClearIdentifier:
		next.Identifier = nil
	case p.Identifier != nil:
		next.Identifier = model.StringPtr(*p.Identifier)
	}
	switch {
	case p.ClearLinearID:
		next.LinearID = nil
	case p.LinearID != nil:
		next.LinearID = model.StringPtr(*p.LinearID)
	}
	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.ContextualChange != nil {
		next.ContextualChange = *p.ContextualChange
	}
	next.Comments = append(next.Comments, p.PushComments...)
	if len(p.Extensions) > 0 {
		next.Extensions = next.Extensions.Merge(p.Extensions)
	}
	next.UpdatedAt = p.UpdatedAt
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = Now()
	}

	if s.identifierTaken(next.IdentifierValue(), id) {
		return nil, ErrDuplicateIdentifier
	}
	s.tickets[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) DeleteOne(ctx context.Context, id primitive.ObjectID) (*model.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.tickets, id)
	return t, nil
}

func (s *MemoryStore) All(ctx context.Context, fn func(*model.Ticket) error) error {
	s.mu.RLock()
	snapshot := make([]*model.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		snapshot = append(snapshot, t.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID.Hex() < snapshot[j].ID.Hex() })
	for _, t := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) InsertVersions(ctx context.Context, versions []*model.TicketVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range versions {
		c := *v
		if c.ID.IsZero() {
			c.ID = primitive.NewObjectID()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = Now()
		}
		s.versions = append(s.versions, &c)
	}
	return nil
}

func (s *MemoryStore) ListVersions(ctx context.Context, ticketID primitive.ObjectID) ([]*model.TicketVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.TicketVersion, 0)
	for i := len(s.versions) - 1; i >= 0; i-- {
		if v := s.versions[i]; v.TicketID == ticketID {
			c := *v
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *MemoryStore) RecordEvent(ctx context.Context, e *model.ConsistencyEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := Now()
	for _, cur := range s.events {
		if cur.TicketID == e.TicketID && cur.Operation == e.Operation && cur.Status == model.EventPending {
			cur.Reason = e.Reason
			cur.Revision++
			cur.UpdatedAt = now
			if e.Identifier != "" {
				cur.Identifier = e.Identifier
			}
			return nil
		}
	}

	c := *e
	c.ID = primitive.NewObjectID()
	c.Status = model.EventPending
	c.Attempts = 0
	c.Revision = 1
	c.CreatedAt = now
	c.UpdatedAt = now
	s.events = append(s.events, &c)
	return nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, status model.EventStatus, limit int) ([]*model.ConsistencyEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.ConsistencyEvent, 0)
	for _, e := range s.events {
		if status != "" && e.Status != status {
			continue
		}
		c := *e
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ResolveEvent(ctx context.Context, id primitive.ObjectID, revision int64) error {
	return s.mutateEvent(ctx, id, func(e *model.ConsistencyEvent) error {
		if e.Status != model.EventPending || e.Revision != revision {
			return ErrEventChanged
		}
		now := Now()
		e.Status = model.EventResolved
		e.ResolvedAt = &now
		e.UpdatedAt = now
		return nil
	})
}

func (s *MemoryStore) IncrementAttempts(ctx context.Context, id primitive.ObjectID, reason string) error {
	return s.mutateEvent(ctx, id, func(e *model.ConsistencyEvent) error {
		e.Attempts++
		e.Reason = reason
		e.UpdatedAt = Now()
		return nil
	})
}

func (s *MemoryStore) mutateEvent(ctx context.Context, id primitive.ObjectID, fn func(*model.ConsistencyEvent) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == id {
			return fn(e)
		}
	}
	return ErrNotFound
}
