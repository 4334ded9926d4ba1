package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventOperation 需要在索引上补做的操作.
type EventOperation string

const (
	OperationUpsert EventOperation = "upsert"
	OperationDelete EventOperation = "delete"
)

// EventStatus 一致性事件状态.
type EventStatus string

const (
	EventPending  EventStatus = "pending"
	EventResolved EventStatus = "resolved"
)

// ConsistencyEvent 记录文档库已提交但索引未同步的情况, 由 reconcile 补偿.
// 同一工单同一操作的新失败会合并进待处理事件并递增 Revision.
type ConsistencyEvent struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	TicketID   primitive.ObjectID `json:"ticketId" bson:"ticketId"`
	Identifier string             `json:"identifier,omitempty" bson:"identifier,omitempty"`
	Operation  EventOperation     `json:"operation" bson:"operation"`
	Reason     string             `json:"reason" bson:"reason"`
	Status     EventStatus        `json:"status" bson:"status"`
	Attempts   int                `json:"attempts" bson:"attempts"`
	Revision   int64              `json:"revision" bson:"revision"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt" bson:"updatedAt"`
	ResolvedAt *time.Time         `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
}
