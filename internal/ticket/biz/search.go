package biz

import (
	"context"
	"strings"
	"sync"

	"github.com/kart-io/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/index"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/metrics"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/store"
	"github.com/BluePanda-io/ai-agent-apis/pkg/infra/pool"
	"github.com/BluePanda-io/ai-agent-apis/pkg/llm"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/errors"
)

// Searcher 语义搜索: 向量化查询, 查询索引, 再按主键回查文档库.
// 索引中已失效的条目在回查时被丢弃.
type Searcher struct {
	store    store.TicketStore
	index    index.VectorIndex
	embedder llm.EmbeddingProvider
	pool     *pool.Pool
	cfg      *Config
	metrics  *metrics.TicketMetrics
}

// NewSearcher creates a Searcher. p may be nil, in which case hits are resolved on plain goroutines.
func NewSearcher(s store.TicketStore, idx index.VectorIndex, embedder llm.EmbeddingProvider, p *pool.Pool, cfg *Config) *Searcher {
	cfg = cfg.complete()
	return &Searcher{
		store:    s,
		index:    idx,
		embedder: embedder,
		pool:     p,
		cfg:      cfg,
		metrics:  cfg.Metrics,
	}
}

// Search returns tickets ordered by index rank.
func (s *Searcher) Search(ctx context.Context, query string, topK int) (results []model.SearchResult, err error) {
	defer func() { s.metrics.RecordSearch(err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.ErrTicketInvalidQuery
	}
	topK = s.topK(topK)

	vector, err := s.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, errors.ErrTicketUpstreamUnavailable.WithCause(err)
	}

	hits, err := s.index.Query(ctx, vector, topK)
	if err != nil {
		return nil, errors.ErrTicketIndexUnavailable.WithCause(err)
	}

	resolved := s.resolveHits(ctx, hits)

	results = make([]model.SearchResult, 0, len(hits))
	for i, t := range resolved {
		if t == nil {
			continue
		}
		results = append(results, model.SearchResult{
			Ticket:     t,
			Similarity: model.ClampScore(hits[i].Score),
		})
	}

	logger.Debugw("ticket search", "query", query, "top_k", topK, "hits", len(hits), "results", len(results))
	return results, nil
}

func (s *Searcher) topK(k int) int {
	if k <= 0 {
		k = s.cfg.DefaultTopK
	}
	if k > s.cfg.MaxTopK {
		k = s.cfg.MaxTopK
	}
	return k
}

// resolveHits 并发回查命中, 结果下标与 hits 一一对应, 未命中为 nil.
func (s *Searcher) resolveHits(ctx context.Context, hits []model.SearchHit) []*model.Ticket {
	out := make([]*model.Ticket, len(hits))

	var wg sync.WaitGroup
	for i, hit := range hits {
		wg.Add(1)
		s.pool.Go(func() {
			defer wg.Done()
			out[i] = s.resolveHit(ctx, hit)
		})
	}
	wg.Wait()
	return out
}

func (s *Searcher) resolveHit(ctx context.Context, hit model.SearchHit) *model.Ticket {
	oid, err := primitive.ObjectIDFromHex(hit.ID)
	if err != nil {
		logger.Debugw("dropping search hit with malformed id", "id", hit.ID)
		return nil
	}

	t, err := s.store.FindOne(ctx, store.ByID(oid))
	switch {
	case err == nil:
		return t
	case errors.Is(err, store.ErrNotFound):
		logger.Debugw("dropping orphaned search hit", "id", hit.ID)
		s.metrics.RecordOrphanDropped()
	default:
		logger.Warnw("failed to resolve search hit", "id", hit.ID, "error", err.Error())
	}
	return nil
}
