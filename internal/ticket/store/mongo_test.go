package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
)

func TestFilterDocument(t *testing.T) {
	id := primitive.NewObjectID()
	assert.Equal(t, bson.M{}, filterDocument(Filter{}))
	assert.Equal(t, bson.M{"_id": id}, filterDocument(ByID(id)))
	assert.Equal(t, bson.M{"identifier": "ABC-1"}, filterDocument(ByIdentifier("ABC-1")))
	assert.Equal(t,
		bson.M{"status": model.StatusOpen, "priority": model.PriorityHigh, "linear_id": "lin"},
		filterDocument(Filter{Status: model.StatusOpen, Priority: model.PriorityHigh, LinearID: "lin"}))
}

func TestUpdateDocument(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	status := model.StatusClosed
	comments := []model.Comment{{Text: "done", Author: "amy", CreatedAt: at}}

	doc := updateDocument(&Patch{
		ClearIdentifier:  true,
		LinearID:         model.StringPtr("lin"),
		Status:           &status,
		ContextualChange: model.StringPtr("closed"),
		PushComments:     comments,
		Extensions:       model.Extensions{"team": "auth"},
		UpdatedAt:        at,
	})

	assert.Equal(t, bson.M{
		"linear_id":        "lin",
		"status":           model.StatusClosed,
		"contextualChange": "closed",
		"team":             "auth",
		"updatedAt":        at,
	}, doc["$set"])
	assert.Equal(t, bson.M{"identifier": ""}, doc["$unset"])
	assert.Equal(t, bson.M{"comments": bson.M{"$each": comments}}, doc["$push"])
}

func TestUpdateDocumentMinimal(t *testing.T) {
	doc := updateDocument(&Patch{})
	assert.NotContains(t, doc, "$unset")
	assert.NotContains(t, doc, "$push")
	assert.Contains(t, doc["$set"], "updatedAt")
}

func TestIsIdentifierOnlyIndex(t *testing.T) {
	single, _ := bson.Marshal(bson.D{{Key: "identifier", Value: 1}})
	compound, _ := bson.Marshal(bson.D{{Key: "identifier", Value: 1}, {Key: "status", Value: 1}})
	other, _ := bson.Marshal(bson.D{{Key: "_id", Value: 1}})

	assert.True(t, isIdentifierOnlyIndex(single))
	assert.False(t, isIdentifierOnlyIndex(compound))
	assert.False(t, isIdentifierOnlyIndex(other))
}
