package ticket

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/biz"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/handler"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/index"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/metrics"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/router"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/store"
	"github.com/BluePanda-io/ai-agent-apis/pkg/component/milvus"
	"github.com/BluePanda-io/ai-agent-apis/pkg/component/mongodb"
	"github.com/BluePanda-io/ai-agent-apis/pkg/component/redis"
	"github.com/BluePanda-io/ai-agent-apis/pkg/infra/app"
	"github.com/BluePanda-io/ai-agent-apis/pkg/infra/middleware"
	"github.com/BluePanda-io/ai-agent-apis/pkg/infra/pool"
	"github.com/BluePanda-io/ai-agent-apis/pkg/infra/server"
	"github.com/BluePanda-io/ai-agent-apis/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/BluePanda-io/ai-agent-apis/pkg/llm/ollama"
	_ "github.com/BluePanda-io/ai-agent-apis/pkg/llm/openai"
	"github.com/BluePanda-io/ai-agent-apis/pkg/llm/resilience"
	ticketopts "github.com/BluePanda-io/ai-agent-apis/pkg/options/ticket"
)

// Server 组装好的工单服务.
type Server struct {
	manager *server.Manager
	closers []func()
}

// NewServer initializes every dependency in order. Anything opened before a
// failure is closed again.
func NewServer(ctx context.Context, opts *Options) (_ *Server, err error) {
	s := &Server{}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	// 1. 初始化日志
	if err := opts.Log.Init(Name); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("starting ticket service", app.VersionFields()...)

	var checks []handler.HealthCheck
	ticketMetrics := metrics.Default()

	// 2. 文档存储
	ticketStore, err := s.newStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	checks = append(checks, handler.HealthCheck{Name: opts.Ticket.StoreDriver, Ping: ticketStore.Ping})

	// 3. 向量索引
	vectorIndex, err := s.newIndex(ctx, opts)
	if err != nil {
		return nil, err
	}
	checks = append(checks, handler.HealthCheck{Name: opts.Ticket.IndexDriver, Ping: vectorIndex.Ping})

	// 4. LLM 供应商, 外层包重试与熔断
	embedder, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	chat, err := llm.NewChatProvider(opts.Chat.Provider, opts.Chat.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	resilientEmbedding := resilience.WrapEmbedding(embedder, opts.Embedding.RetryConfig(), opts.Embedding.BreakerConfig())
	resilientChat := resilience.WrapChat(chat, opts.Chat.RetryConfig(), opts.Chat.BreakerConfig())
	observeBreaker := func(name string, _, to resilience.State) {
		ticketMetrics.RecordBreakerState(name, int(to))
	}
	for _, cb := range []*resilience.CircuitBreaker{resilientEmbedding.Breaker(), resilientChat.Breaker()} {
		ticketMetrics.RecordBreakerState(cb.Stats().Name, int(cb.State()))
		cb.OnStateChange(observeBreaker)
	}
	var embedding llm.EmbeddingProvider = resilientEmbedding
	logger.Infow("llm providers initialized",
		"embedding.provider", opts.Embedding.Provider,
		"embedding.model", opts.Embedding.Model,
		"chat.provider", opts.Chat.Provider,
		"chat.model", opts.Chat.Model,
	)

	// 5. 可选的 Redis 嵌入缓存
	if opts.Ticket.Cache.Enabled {
		rc, err := redis.NewWithContext(ctx, opts.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		s.closers = append(s.closers, func() { _ = rc.Close() })
		checks = append(checks, handler.HealthCheck{Name: rc.Name(), Ping: rc.Ping})

		embedding = llm.NewCachedEmbeddingProvider(embedding, rc.Client(), &llm.EmbeddingCacheConfig{
			TTL:       opts.Ticket.Cache.TTL,
			KeyPrefix: opts.Ticket.Cache.KeyPrefix,
		})
		logger.Infow("embedding cache enabled", "redis", opts.Redis.String(), "ttl", opts.Ticket.Cache.TTL)
	}

	// 6. 检索回查协程池
	searchPool, err := pool.NewPool("ticket-search", pool.SearchConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create search pool: %w", err)
	}
	s.closers = append(s.closers, searchPool.Release)

	// 7. Biz 层
	cfg := &biz.Config{
		DefaultTopK:          opts.Ticket.TopK,
		MaxTopK:              opts.Ticket.MaxTopK,
		IndexTimeout:         opts.Ticket.IndexTimeout,
		ReconcileConcurrency: opts.Ticket.ReconcileConcurrency,
		Metrics:              ticketMetrics,
	}
	coord := biz.NewCoordinator(ticketStore, vectorIndex, embedding, resilientChat, cfg)
	searcher := biz.NewSearcher(ticketStore, vectorIndex, embedding, searchPool, cfg)

	// 8. HTTP 服务与路由
	httpServer := server.NewHTTPServer(opts.HTTP,
		middleware.RequestID(),
		middleware.Logger("/healthz", "/metrics"),
		middleware.Recovery(),
		middleware.BodyLimit(opts.HTTP.MaxBodyBytes),
	)
	router.Register(httpServer.Engine(),
		handler.NewTicketHandler(coord, searcher),
		handler.NewHealthHandler(opts.Ticket.IndexTimeout, checks...),
		handler.NewMetricsHandler(ticketMetrics),
	)

	s.manager = server.NewManager(opts.ShutdownTimeout, httpServer)
	logger.Infow("ticket service is ready",
		"store", opts.Ticket.StoreDriver,
		"index", opts.Ticket.IndexDriver,
		"addr", opts.HTTP.Addr,
	)
	return s, nil
}

func (s *Server) newStore(ctx context.Context, opts *Options) (store.Store, error) {
	if opts.Ticket.StoreDriver == ticketopts.DriverMemory {
		logger.Warn("using in-memory ticket store, data is lost on restart")
		return store.NewMemoryStore(), nil
	}

	client, err := mongodb.NewWithContext(ctx, opts.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mongodb: %w", err)
	}
	s.closers = append(s.closers, func() { _ = client.Close() })

	st, err := store.NewMongoStore(ctx, client, store.Collections{
		Tickets:  opts.Ticket.Collection,
		Versions: opts.Ticket.VersionsCollection,
		Events:   opts.Ticket.EventsCollection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ticket store: %w", err)
	}
	logger.Infow("mongodb ticket store initialized", "mongodb", opts.MongoDB.String())
	return st, nil
}

func (s *Server) newIndex(ctx context.Context, opts *Options) (index.VectorIndex, error) {
	if opts.Ticket.IndexDriver == ticketopts.DriverMemory {
		logger.Warn("using in-memory vector index, run a rebuild after restart")
		return index.NewMemoryIndex(opts.Ticket.EmbeddingDim), nil
	}

	client, err := milvus.New(ctx, opts.Milvus)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	s.closers = append(s.closers, func() { _ = client.Close(context.Background()) })

	idx, err := index.NewMilvusIndex(ctx, client, opts.Ticket.IndexCollection, opts.Ticket.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Infow("milvus vector index initialized",
		"address", opts.Milvus.Address,
		"collection", opts.Ticket.IndexCollection,
		"dim", opts.Ticket.EmbeddingDim,
	)
	return idx, nil
}

// Run serves until ctx is done or a termination signal arrives, then closes
// every client.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()
	return s.manager.Run(ctx)
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
