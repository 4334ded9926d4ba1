package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VersionedFields 需要记录历史的字段.
var VersionedFields = []string{"title", "description"}

// TicketVersion 记录 title 或 description 的一次修改.
type TicketVersion struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	TicketID  primitive.ObjectID `json:"ticketId" bson:"ticketId"`
	Field     string             `json:"field" bson:"field"`
	OldValue  string             `json:"oldValue" bson:"oldValue"`
	NewValue  string             `json:"newValue" bson:"newValue"`
	Diff      string             `json:"diff" bson:"diff"`
	ChangedBy string             `json:"changedBy" bson:"changedBy"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}
