package model

// MetadataType 向量条目的类型标记.
const MetadataType = "ticket"

// SearchEntry 向量索引中的条目, 以工单主键为 ID. 非权威数据, 可能滞后或缺失.
type SearchEntry struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
	Text     string
}

// NewSearchEntry builds the entry for t.
func NewSearchEntry(t *Ticket, text string, vector []float32) SearchEntry {
	meta := map[string]string{"type": MetadataType}
	if id := t.IdentifierValue(); id != "" {
		meta["identifier"] = id
	}
	return SearchEntry{
		ID:       t.ID.Hex(),
		Vector:   vector,
		Metadata: meta,
		Text:     text,
	}
}

// SearchHit 向量索引返回的命中, 按相似度降序.
type SearchHit struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// SearchResult 融合后的搜索结果.
type SearchResult struct {
	Ticket     *Ticket `json:"ticket"`
	Similarity float64 `json:"similarity"`
}

// ClampScore maps a raw index score into [0,1].
func ClampScore(s float32) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return float64(s)
	}
}
