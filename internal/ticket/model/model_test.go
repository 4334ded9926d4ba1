package model

import (
	stdjson "encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validTicket() *Ticket {
	t := &Ticket{
		ID:          primitive.NewObjectID(),
		Identifier:  StringPtr("ABC-123"),
		Title:       "Login bug",
		Description: "Users cannot log in",
	}
	t.ApplyDefaults()
	return t
}

func TestApplyDefaults(t *testing.T) {
	tk := &Ticket{Title: "x", Description: "y"}
	tk.ApplyDefaults()

	assert.Equal(t, StatusOpen, tk.Status)
	assert.Equal(t, PriorityMedium, tk.Priority)
	assert.Equal(t, DefaultContextualChange, tk.ContextualChange)
	assert.NotNil(t, tk.Comments)
}

func TestIdentifierPattern(t *testing.T) {
	valid := []string{"ABC-1", "abc-12345", "X-0"}
	invalid := []string{"ABC123", "ABC-123456", "-1", "AB1-2", "ABC-", " ABC-1"}

	for _, s := range valid {
		assert.True(t, IsIdentifier(s), s)
	}
	for _, s := range invalid {
		assert.False(t, IsIdentifier(s), s)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validTicket().Validate())

	tests := []struct {
		name   string
		mutate func(*Ticket)
		want   error
		msg    string
	}{
		{"blank title", func(t *Ticket) { t.Title = "   " }, ErrInvalidTicket, "title is required"},
		{"blank description", func(t *Ticket) { t.Description = "" }, ErrInvalidTicket, "description is required"},
		{"bad status", func(t *Ticket) { t.Status = "done" }, ErrInvalidTicket, "status must be one of"},
		{"bad priority", func(t *Ticket) { t.Priority = "urgent" }, ErrInvalidTicket, "priority"},
		{"bad identifier", func(t *Ticket) { t.Identifier = StringPtr("ABC123") }, ErrInvalidIdentifier, "ABC123"},
		{"blank comment", func(t *Ticket) { t.Comments = []Comment{{Text: " "}} }, ErrInvalidTicket, "comments[0].text"},
		{"reserved extension", func(t *Ticket) { t.Extensions = Extensions{"title": "x"} }, ErrInvalidTicket, "reserved"},
		{"operator extension", func(t *Ticket) { t.Extensions = Extensions{"$set": 1} }, ErrInvalidTicket, "'$'"},
		{"dotted extension", func(t *Ticket) { t.Extensions = Extensions{"a.b": 1} }, ErrInvalidTicket, "'.'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := validTicket()
			tt.mutate(tk)
			err := tk.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestNormalize(t *testing.T) {
	tk := &Ticket{Title: "  a ", Description: "b\n", Identifier: StringPtr("  "), LinearID: StringPtr(" L-1 ")}
	tk.Normalize()

	assert.Equal(t, "a", tk.Title)
	assert.Equal(t, "b", tk.Description)
	assert.Nil(t, tk.Identifier)
	assert.Equal(t, "L-1", tk.LinearIDValue())
}

func TestTicketJSONFlattensExtensions(t *testing.T) {
	tk := validTicket()
	tk.Extensions = Extensions{"team": "auth", "estimate": 3}

	b, err := stdjson.Marshal(tk)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, stdjson.Unmarshal(b, &flat))
	assert.Equal(t, "auth", flat["team"])
	assert.EqualValues(t, 3, flat["estimate"])
	assert.Equal(t, "ABC-123", flat["identifier"])
	assert.Equal(t, tk.ID.Hex(), flat["_id"])

	var back Ticket
	require.NoError(t, stdjson.Unmarshal(b, &back))
	assert.Equal(t, tk.ID, back.ID)
	assert.Equal(t, "auth", back.Extensions["team"])
	assert.True(t, ExtensionValueEqual(3, back.Extensions["estimate"]))
	assert.NotContains(t, back.Extensions, "title")
}

func TestTicketJSONEmitsNullIdentifiers(t *testing.T) {
	tk := validTicket()
	tk.Identifier = nil
	tk.LinearID = nil

	b, err := stdjson.Marshal(tk)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"identifier":null`)
	assert.Contains(t, string(b), `"linear_id":null`)

	var back Ticket
	require.NoError(t, stdjson.Unmarshal(b, &back))
	assert.Nil(t, back.Identifier)
	assert.Nil(t, back.LinearID)
	assert.NotContains(t, back.Extensions, "identifier")
}

func TestCreateRequestCollectsUnknownKeys(t *testing.T) {
	body := `{"title":"Login bug","description":"cannot log in","identifier":"ABC-1","team":"auth","labels":["a","b"]}`

	var req CreateTicketRequest
	require.NoError(t, stdjson.Unmarshal([]byte(body), &req))

	assert.Equal(t, "Login bug", req.Title)
	assert.Equal(t, "ABC-1", *req.Identifier)
	assert.Equal(t, "auth", req.Extensions["team"])
	assert.Equal(t, []any{"a", "b"}, req.Extensions["labels"])
	assert.Len(t, req.Extensions, 2)
}

func TestUpdateRequestPointers(t *testing.T) {
	var req UpdateTicketRequest
	require.NoError(t, stdjson.Unmarshal([]byte(`{"status":"in_progress","comments":[{"text":"hi","author":"bob"}]}`), &req))

	require.NotNil(t, req.Status)
	assert.Equal(t, StatusInProgress, *req.Status)
	assert.Nil(t, req.Title)
	assert.Len(t, req.Comments, 1)
	assert.Empty(t, req.Extensions)
}

func TestTicketBSONInlinesExtensions(t *testing.T) {
	tk := validTicket()
	tk.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	tk.Extensions = Extensions{"team": "auth"}

	raw, err := bson.Marshal(tk)
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, "auth", doc["team"])
	assert.Equal(t, "ABC-123", doc["identifier"])
	assert.NotContains(t, doc, "linear_id")

	var back Ticket
	require.NoError(t, bson.Unmarshal(raw, &back))
	assert.Equal(t, "auth", back.Extensions["team"])
	assert.Equal(t, tk.Title, back.Title)
}

func TestMergeAndClone(t *testing.T) {
	base := Extensions{"team": "auth", "meta": map[string]any{"a": 1}}
	merged := base.Merge(Extensions{"team": "core", "sprint": 4})

	assert.Equal(t, "core", merged["team"])
	assert.Equal(t, 4, merged["sprint"])
	assert.Equal(t, "auth", base["team"])

	merged["meta"].(map[string]any)["a"] = 2
	assert.Equal(t, 1, base["meta"].(map[string]any)["a"])

	tk := validTicket()
	tk.Extensions = base
	c := tk.Clone()
	*c.Identifier = "XYZ-9"
	assert.Equal(t, "ABC-123", tk.IdentifierValue())
}

func TestExtensionValueEqual(t *testing.T) {
	assert.True(t, ExtensionValueEqual(int32(3), float64(3)))
	assert.True(t, ExtensionValueEqual(primitive.M{"a": "b"}, map[string]any{"a": "b"}))
	assert.True(t, ExtensionValueEqual(primitive.A{"x", int64(1)}, []any{"x", 1.0}))
	assert.False(t, ExtensionValueEqual("1", 1))
	assert.False(t, ExtensionValueEqual([]any{1}, []any{1, 2}))
}

func TestSearchHelpers(t *testing.T) {
	tk := validTicket()
	e := NewSearchEntry(tk, "ABC-123 Login bug", []float32{1, 0})
	assert.Equal(t, tk.ID.Hex(), e.ID)
	assert.Equal(t, map[string]string{"type": "ticket", "identifier": "ABC-123"}, e.Metadata)

	tk.Identifier = nil
	assert.NotContains(t, NewSearchEntry(tk, "", nil).Metadata, "identifier")

	assert.Equal(t, 0.0, ClampScore(-0.2))
	assert.Equal(t, 1.0, ClampScore(1.3))
	assert.InDelta(t, 0.5, ClampScore(0.5), 1e-9)
}

func TestSearchTextChanged(t *testing.T) {
	a := validTicket()
	b := a.Clone()
	b.Status = StatusClosed
	assert.False(t, SearchTextChanged(a, b))

	b.Identifier = StringPtr("ABC-124")
	assert.True(t, SearchTextChanged(a, b))
}
