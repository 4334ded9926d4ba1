// Package store 定义工单文档库的访问接口, 提供 MongoDB 与内存两种实现.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
)

var (
	// ErrNotFound 记录不存在.
	ErrNotFound = errors.New("ticket store: not found")
	// ErrDuplicateIdentifier identifier 唯一索引冲突.
	ErrDuplicateIdentifier = errors.New("ticket store: duplicate identifier")
	// ErrEventChanged 事件在读取后又合并了新的失败, 或已不再是 pending.
	ErrEventChanged = errors.New("ticket store: consistency event changed")
)

// Filter 精确匹配条件, 零值字段不参与过滤.
type Filter struct {
	ID         *primitive.ObjectID
	Identifier string
	LinearID   string
	Status     model.Status
	Priority   model.Priority
}

// ByID, ByIdentifier and ByLinearID build single-key filters for the resolver.
func ByID(id primitive.ObjectID) Filter { return Filter{ID: &id} }

func ByIdentifier(identifier string) Filter { return Filter{Identifier: identifier} }

func ByLinearID(linearID string) Filter { return Filter{LinearID: linearID} }

// Empty reports whether f matches every ticket.
func (f Filter) Empty() bool {
	return f.ID == nil && f.Identifier == "" && f.LinearID == "" && f.Status == "" && f.Priority == ""
}

// ListOptions 分页参数, 结果按 createdAt 倒序.
type ListOptions struct {
	Offset int
	Limit  int
}

// Patch 描述一次部分更新. nil 字段不修改.
type Patch struct {
	Identifier      *string
	ClearIdentifier bool
	LinearID        *string
	ClearLinearID   bool

	Title       *string
	Description *string
	Status      *model.Status
	Priority    *model.Priority

	ContextualChange *string
	// PushComments 追加到评论列表末尾.
	PushComments []model.Comment
	// Extensions 按 key 设置扩展字段, 不影响未出现的 key.
	Extensions model.Extensions

	UpdatedAt time.Time
}

// TicketStore 工单文档库.
type TicketStore interface {
	// Insert assigns ID and timestamps when unset. A taken identifier
	// returns ErrDuplicateIdentifier.
	Insert(ctx context.Context, t *model.Ticket) (*model.Ticket, error)
	// FindOne returns ErrNotFound when nothing matches.
	FindOne(ctx context.Context, f Filter) (*model.Ticket, error)
	FindMany(ctx context.Context, f Filter, opts ListOptions) ([]*model.Ticket, int64, error)
	// UpdateOne applies p and returns the new state.
	UpdateOne(ctx context.Context, id primitive.ObjectID, p *Patch) (*model.Ticket, error)
	// DeleteOne returns the removed ticket, or ErrNotFound.
	DeleteOne(ctx context.Context, id primitive.ObjectID) (*model.Ticket, error)
	// All streams every ticket to fn in _id order. fn returning an error stops the scan.
	All(ctx context.Context, fn func(*model.Ticket) error) error
}

// VersionStore 工单字段历史.
type VersionStore interface {
	InsertVersions(ctx context.Context, versions []*model.TicketVersion) error
	// ListVersions returns newest first.
	ListVersions(ctx context.Context, ticketID primitive.ObjectID) ([]*model.TicketVersion, error)
}

// EventStore 一致性事件. 同一工单同一操作的待处理事件只保留一条.
type EventStore interface {
	RecordEvent(ctx context.Context, e *model.ConsistencyEvent) error
	// ListEvents returns oldest first. An empty status lists all.
	ListEvents(ctx context.Context, status model.EventStatus, limit int) ([]*model.ConsistencyEvent, error)
	// ResolveEvent resolves the event only while it is still pending at
	// revision. Otherwise it returns ErrEventChanged, or ErrNotFound.
	ResolveEvent(ctx context.Context, id primitive.ObjectID, revision int64) error
	IncrementAttempts(ctx context.Context, id primitive.ObjectID, reason string) error
}

// Store aggregates the three stores behind one backend.
type Store interface {
	TicketStore
	VersionStore
	EventStore
	Ping(ctx context.Context) error
	Close() error
}

// Now returns the store clock at the millisecond precision MongoDB keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
