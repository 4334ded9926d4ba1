package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
)

// MemoryIndex 暴力余弦检索, 用于本地开发与测试.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	entries map[string]model.SearchEntry
}

var _ VectorIndex = (*MemoryIndex)(nil)

// NewMemoryIndex creates an index; dim 0 accepts any dimension.
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{dim: dim, entries: make(map[string]model.SearchEntry)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, e model.SearchEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.dim > 0 && len(e.Vector) != m.dim {
		return fmt.Errorf("vector dimension %d, want %d", len(e.Vector), m.dim)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e.Vector = append([]float32(nil), e.Vector...)
	m.entries[e.ID] = e
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, vector []float32, topK int) ([]model.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]model.SearchHit, 0, len(m.entries))
	for id, e := range m.entries {
		hits = append(hits, model.SearchHit{ID: id, Score: cosine(vector, e.Vector), Metadata: e.Metadata})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *MemoryIndex) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *MemoryIndex) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]model.SearchEntry)
	return nil
}

func (m *MemoryIndex) Ping(context.Context) error { return nil }

// Get returns a stored entry.
func (m *MemoryIndex) Get(id string) (model.SearchEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
