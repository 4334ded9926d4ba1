// Package model 定义工单服务的数据模型.
package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status 工单状态.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// Priority 工单优先级.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultContextualChange 新建工单的变更描述.
const DefaultContextualChange = "Initial ticket creation"

// Comment 工单评论, 只追加不修改.
type Comment struct {
	Text      string    `json:"text" bson:"text" validate:"notblank"`
	Author    string    `json:"author,omitempty" bson:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Ticket 是工单的权威记录, 保存在文档库中.
// Extensions 保存开放字段, 在 BSON 中内联, 在 JSON 中平铺到顶层.
type Ticket struct {
	ID               primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Identifier       *string            `json:"identifier" bson:"identifier,omitempty" validate:"omitempty,identifier"`
	LinearID         *string            `json:"linear_id" bson:"linear_id,omitempty"`
	Title            string             `json:"title" bson:"title" validate:"notblank"`
	Description      string             `json:"description" bson:"description" validate:"notblank"`
	Status           Status             `json:"status" bson:"status" validate:"oneof=open in_progress closed"`
	Priority         Priority           `json:"priority" bson:"priority" validate:"oneof=low medium high"`
	Comments         []Comment          `json:"comments" bson:"comments" validate:"dive"`
	ContextualChange string             `json:"contextualChange" bson:"contextualChange"`
	CreatedAt        time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updatedAt"`
	Extensions       Extensions         `json:"-" bson:",inline"`
}

// ApplyDefaults fills status, priority and narrative when unset.
func (t *Ticket) ApplyDefaults() {
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.ContextualChange == "" {
		t.ContextualChange = DefaultContextualChange
	}
	if t.Comments == nil {
		t.Comments = []Comment{}
	}
}

// Normalize trims free-text fields. A blank identifier or linear_id is cleared.
func (t *Ticket) Normalize() {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	t.Identifier = trimOptional(t.Identifier)
	t.LinearID = trimOptional(t.LinearID)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// IdentifierValue returns the identifier or "".
func (t *Ticket) IdentifierValue() string {
	return deref(t.Identifier)
}

// LinearIDValue returns the external key or "".
func (t *Ticket) LinearIDValue() string {
	return deref(t.LinearID)
}

// DisplayKey 日志中展示的工单标识, 优先使用 identifier.
func (t *Ticket) DisplayKey() string {
	if id := t.IdentifierValue(); id != "" {
		return id
	}
	return t.ID.Hex()
}

// Clone returns a deep copy.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.Identifier = cloneString(t.Identifier)
	c.LinearID = cloneString(t.LinearID)
	if t.Comments != nil {
		c.Comments = append([]Comment(nil), t.Comments...)
	}
	c.Extensions = t.Extensions.Clone()
	return &c
}

// SearchTextChanged reports whether the fields feeding the search projection differ.
func SearchTextChanged(old, new *Ticket) bool {
	return old.Title != new.Title ||
		old.Description != new.Description ||
		old.IdentifierValue() != new.IdentifierValue()
}

// StringPtr is a helper for optional string fields.
func StringPtr(s string) *string {
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
