package index

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
	"github.com/BluePanda-io/ai-agent-apis/pkg/component/milvus"
)

const (
	fieldType       = "type"
	fieldIdentifier = "identifier"
	fieldText       = "text"
	maxTextLen      = 8192
)

// MilvusIndex 基于 Milvus 集合的 VectorIndex, 使用 COSINE 度量.
type MilvusIndex struct {
	client *milvus.Client
	schema *milvus.CollectionSchema
}

var _ VectorIndex = (*MilvusIndex)(nil)

// NewMilvusIndex ensures the collection exists and is loaded.
func NewMilvusIndex(ctx context.Context, client *milvus.Client, collection string, dim int) (*MilvusIndex, error) {
	idx := &MilvusIndex{
		client: client,
		schema: &milvus.CollectionSchema{
			Name:        collection,
			Description: "ticket search projections",
			Dimension:   dim,
			IDMaxLen:    64,
			Metric:      entity.COSINE,
			MetaFields: []milvus.MetaField{
				{Name: fieldType, MaxLen: 32},
				{Name: fieldIdentifier, MaxLen: 64},
				{Name: fieldText, MaxLen: maxTextLen},
			},
		},
	}
	if err := client.EnsureCollection(ctx, idx.schema); err != nil {
		return nil, err
	}
	return idx, nil
}

func (m *MilvusIndex) Upsert(ctx context.Context, e model.SearchEntry) error {
	if len(e.Vector) != m.schema.Dimension {
		return fmt.Errorf("vector dimension %d, want %d", len(e.Vector), m.schema.Dimension)
	}
	return m.client.Upsert(ctx, m.schema.Name, &milvus.Rows{
		IDs:        []string{e.ID},
		Embeddings: [][]float32{e.Vector},
		VarChars: map[string][]string{
			fieldType:       {e.Metadata[fieldType]},
			fieldIdentifier: {e.Metadata[fieldIdentifier]},
			fieldText:       {truncate(e.Text, maxTextLen)},
		},
	})
}

func (m *MilvusIndex) Query(ctx context.Context, vector []float32, topK int) ([]model.SearchHit, error) {
	results, err := m.client.Search(ctx, m.schema.Name, vector, topK, []string{fieldType, fieldIdentifier})
	if err != nil {
		return nil, err
	}
	hits := make([]model.SearchHit, 0, len(results))
	for _, r := range results {
		meta := map[string]string{fieldType: r.Metadata[fieldType]}
		if id := r.Metadata[fieldIdentifier]; id != "" {
			meta[fieldIdentifier] = id
		}
		hits = append(hits, model.SearchHit{ID: r.ID, Score: r.Score, Metadata: meta})
	}
	return hits, nil
}

func (m *MilvusIndex) Delete(ctx context.Context, id string) error {
	return m.client.DeleteByIDs(ctx, m.schema.Name, []string{id})
}

// DeleteAll drops and recreates the collection.
func (m *MilvusIndex) DeleteAll(ctx context.Context) error {
	if err := m.client.DropCollection(ctx, m.schema.Name); err != nil {
		return err
	}
	return m.client.EnsureCollection(ctx, m.schema)
}

func (m *MilvusIndex) Ping(ctx context.Context) error {
	return m.client.Ping(ctx)
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

