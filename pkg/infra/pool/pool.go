package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 最大并发 goroutine 数
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// PreAlloc 是否预分配 worker 队列
	PreAlloc bool
	// Nonblocking 池满时 Submit 立即返回 ErrPoolOverload
	Nonblocking bool
	// MaxBlockingTasks Nonblocking=false 时的最大等待任务数, 0 表示无限制
	MaxBlockingTasks int
	PanicHandler     func(any)
}

// DefaultConfig 返回默认池配置
func DefaultConfig() *Config {
	return &Config{
		Capacity:       1000,
		ExpiryDuration: 10 * time.Second,
	}
}

// SearchConfig 返回检索回查使用的池配置, 池满时不阻塞请求.
func SearchConfig() *Config {
	return &Config{
		Capacity:       256,
		ExpiryDuration: 30 * time.Second,
		Nonblocking:    true,
	}
}

// Pool represents a worker pool.
type Pool struct {
	name         string
	pool         *ants.Pool
	config       *Config
	panicHandler func(any)
	stats        counters
	closed       atomic.Bool
	closedMu     sync.Mutex
}

type counters struct {
	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	fallback  atomic.Int64
	panics    atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
	Fallback  int64 `json:"fallback"`
	Panics    int64 `json:"panics"`
	Running   int   `json:"running"`
	Capacity  int   `json:"capacity"`
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pool{name: name, config: config}

	opts := []ants.Option{
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithPreAlloc(config.PreAlloc),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
	}
	handler := config.PanicHandler
	if handler == nil {
		handler = func(r any) {
			logger.Errorw("worker panic recovered", "pool", name, "panic", r)
		}
	}
	p.panicHandler = handler
	opts = append(opts, ants.WithPanicHandler(handler))

	pool, err := ants.NewPool(config.Capacity, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 ants 池失败: %w", err)
	}
	p.pool = pool

	logger.Infow("worker pool created", "name", name, "capacity", config.Capacity, "nonblocking", config.Nonblocking)
	return p, nil
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.name
}

// Cap 返回池容量
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Running 返回正在运行的 goroutine 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.stats.panics.Add(1)
				panic(r)
			}
			p.stats.completed.Add(1)
		}()
		task()
	})
	switch {
	case err == nil:
		p.stats.submitted.Add(1)
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		p.stats.rejected.Add(1)
		return ErrPoolOverload
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	default:
		return err
	}
}

// SubmitWithContext 提交任务, 任务开始前 ctx 已取消则跳过执行.
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		task()
	})
}

// Go 优先在池中执行 task, 池满或已关闭时退化为独立 goroutine.
// nil Pool 直接启动 goroutine. 两种退化路径同样恢复 panic.
func (p *Pool) Go(task func()) {
	if p == nil {
		go runRecovered(task, func(r any) {
			logger.Errorw("goroutine panic recovered", "panic", r)
		})
		return
	}
	if err := p.Submit(task); err != nil {
		p.stats.fallback.Add(1)
		logger.Debugw("worker pool fallback to goroutine", "pool", p.name, "reason", err.Error())
		go runRecovered(task, func(r any) {
			p.stats.panics.Add(1)
			p.panicHandler(r)
		})
	}
}

func runRecovered(task func(), handler func(any)) {
	defer func() {
		if r := recover(); r != nil {
			handler(r)
		}
	}()
	task()
}

// Release 关闭池并释放资源
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Load() {
		return
	}
	p.closed.Store(true)
	p.pool.Release()
	logger.Infow("worker pool released", "name", p.name)
}

// ReleaseTimeout 等待运行中的任务完成, 直到超时
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Load() {
		return nil
	}
	p.closed.Store(true)
	return p.pool.ReleaseTimeout(timeout)
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.stats.submitted.Load(),
		Completed: p.stats.completed.Load(),
		Rejected:  p.stats.rejected.Load(),
		Fallback:  p.stats.fallback.Load(),
		Panics:    p.stats.panics.Load(),
		Running:   p.pool.Running(),
		Capacity:  p.pool.Cap(),
	}
}
