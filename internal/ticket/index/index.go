// Package index 定义工单向量索引接口, 提供 Milvus 与内存两种实现.
package index

import (
	"context"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
)

// VectorIndex 向量索引. 条目以工单主键寻址, 不作为权威数据.
type VectorIndex interface {
	// Upsert replaces any entry with the same ID.
	Upsert(ctx context.Context, entry model.SearchEntry) error
	// Query returns at most topK hits, best first.
	Query(ctx context.Context, vector []float32, topK int) ([]model.SearchHit, error)
	// Delete removes the entry; a missing ID is not an error.
	Delete(ctx context.Context, id string) error
	// DeleteAll empties the index.
	DeleteAll(ctx context.Context) error
	Ping(ctx context.Context) error
}
