package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	options "github.com/BluePanda-io/ai-agent-apis/pkg/options/server/http"
)

// HTTPServer 基于 gin 的 HTTP 服务器.
type HTTPServer struct {
	opts   *options.Options
	engine *gin.Engine

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewHTTPServer 创建 HTTP 服务器, 中间件在注册路由前挂载.
func NewHTTPServer(opts *options.Options, middlewares ...gin.HandlerFunc) *HTTPServer {
	if opts == nil {
		opts = options.NewOptions()
	}
	gin.SetMode(opts.Mode)

	engine := gin.New()
	engine.Use(middlewares...)

	return &HTTPServer{opts: opts, engine: engine}
}

// Name returns the server name.
func (s *HTTPServer) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine.
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// Addr 返回实际监听地址, 未启动时返回配置地址.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Start 监听端口并在后台提供服务, 端口占用等错误同步返回.
func (s *HTTPServer) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("http server stopped unexpectedly", "addr", ln.Addr().String(), "error", err.Error())
		}
	}()

	logger.Infow("HTTP server started", "addr", ln.Addr().String())
	return nil
}

// Stop stops the HTTP server gracefully.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

var _ Runnable = (*HTTPServer)(nil)
