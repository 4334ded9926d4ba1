package biz

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/index"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/metrics"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/store"
	"github.com/BluePanda-io/ai-agent-apis/pkg/llm"
)

const testDim = 256

var errBoom = errors.New("boom")

// vocabEmbedder 词袋向量, 每个新词占用一个维度, 相同文本总是得到相同向量.
type vocabEmbedder struct {
	mu     sync.Mutex
	vocab  map[string]int
	err    error
	calls  int
	onCall func()
}

func (e *vocabEmbedder) Name() string { return "vocab" }

func (e *vocabEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.EmbedSingle(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *vocabEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	err, hook := e.err, e.onCall
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *vocabEmbedder) setErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *vocabEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *vocabEmbedder) vector(text string) []float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vocab == nil {
		e.vocab = make(map[string]int)
	}

	v := make([]float32, testDim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		i, ok := e.vocab[w]
		if !ok {
			i = len(e.vocab) % testDim
			e.vocab[w] = i
		}
		v[i]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[testDim-1] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// flakyIndex 在内存索引外包一层可注入的故障.
type flakyIndex struct {
	*index.MemoryIndex

	mu        sync.Mutex
	upsertErr error
	deleteErr error
	queryErr  error
}

func newFlakyIndex() *flakyIndex {
	return &flakyIndex{MemoryIndex: index.NewMemoryIndex(testDim)}
}

func (f *flakyIndex) set(upsert, del, query error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertErr, f.deleteErr, f.queryErr = upsert, del, query
}

func (f *flakyIndex) Upsert(ctx context.Context, e model.SearchEntry) error {
	f.mu.Lock()
	err := f.upsertErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryIndex.Upsert(ctx, e)
}

func (f *flakyIndex) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	err := f.deleteErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryIndex.Delete(ctx, id)
}

func (f *flakyIndex) Query(ctx context.Context, vector []float32, topK int) ([]model.SearchHit, error) {
	f.mu.Lock()
	err := f.queryErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.MemoryIndex.Query(ctx, vector, topK)
}

// mockChat 摘要模型替身.
type mockChat struct {
	mock.Mock
}

func (m *mockChat) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	args := m.Called(ctx, messages, opts)
	return args.String(0), args.Error(1)
}

func (m *mockChat) Generate(ctx context.Context, prompt, systemPrompt string, opts ...llm.GenerateOption) (string, error) {
	args := m.Called(ctx, prompt, systemPrompt, opts)
	return args.String(0), args.Error(1)
}

func (m *mockChat) Name() string { return "mock" }

type fixture struct {
	store    *store.MemoryStore
	index    *flakyIndex
	embedder *vocabEmbedder
	metrics  *metrics.TicketMetrics
	cfg      *Config
	coord    *Coordinator
	searcher *Searcher
}

func newFixture(t *testing.T, chat llm.ChatProvider) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.NewMemoryStore(),
		index:    newFlakyIndex(),
		embedder: &vocabEmbedder{},
		metrics:  metrics.New(),
	}
	f.cfg = &Config{DefaultTopK: 5, MaxTopK: 50, IndexTimeout: time.Second, ReconcileConcurrency: 2, Metrics: f.metrics}
	f.coord = NewCoordinator(f.store, f.index, f.embedder, chat, f.cfg)
	f.searcher = NewSearcher(f.store, f.index, f.embedder, nil, f.cfg)
	return f
}

func (f *fixture) create(t *testing.T, identifier, title, description string) *model.Ticket {
	t.Helper()
	req := &model.CreateTicketRequest{Title: title, Description: description}
	if identifier != "" {
		req.Identifier = model.StringPtr(identifier)
	}
	created, err := f.coord.Create(context.Background(), req)
	require.NoError(t, err)
	return created
}

func (f *fixture) pendingEvents(t *testing.T) []*model.ConsistencyEvent {
	t.Helper()
	events, err := f.store.ListEvents(context.Background(), model.EventPending, 0)
	require.NoError(t, err)
	return events
}

// erroringStore 让 FindOne 对指定过滤条件返回错误.
type erroringStore struct {
	store.Store
	failOn func(store.Filter) bool
}

func (s *erroringStore) FindOne(ctx context.Context, f store.Filter) (*model.Ticket, error) {
	if s.failOn(f) {
		return nil, errBoom
	}
	return s.Store.FindOne(ctx, f)
}

// cancellingStore 写入提交后取消请求 context 并返回 ctx.Err(), 模拟客户端在提交后断开.
type cancellingStore struct {
	store.Store
	cancel context.CancelFunc
}

func (s *cancellingStore) Insert(ctx context.Context, t *model.Ticket) (*model.Ticket, error) {
	if _, err := s.Store.Insert(ctx, t); err != nil {
		return nil, err
	}
	s.cancel()
	return nil, ctx.Err()
}

func (s *cancellingStore) UpdateOne(ctx context.Context, id primitive.ObjectID, p *store.Patch) (*model.Ticket, error) {
	if _, err := s.Store.UpdateOne(ctx, id, p); err != nil {
		return nil, err
	}
	s.cancel()
	return nil, ctx.Err()
}

func (s *cancellingStore) DeleteOne(ctx context.Context, id primitive.ObjectID) (*model.Ticket, error) {
	if _, err := s.Store.DeleteOne(ctx, id); err != nil {
		return nil, err
	}
	s.cancel()
	return nil, ctx.Err()
}

// failingUpdateStore UpdateOne 总是失败且不写入.
type failingUpdateStore struct {
	store.Store
}

func (s *failingUpdateStore) UpdateOne(context.Context, primitive.ObjectID, *store.Patch) (*model.Ticket, error) {
	return nil, errBoom
}
