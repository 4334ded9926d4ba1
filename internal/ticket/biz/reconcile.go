package biz

import (
	"context"
	"sync/atomic"

	"github.com/kart-io/logger"
	"golang.org/x/sync/errgroup"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/store"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/errors"
)

// DefaultReconcileBatch 单次 Reconcile 处理的事件数.
const DefaultReconcileBatch = 100

// ReconcileReport Reconcile 的处理结果. Superseded 为重放期间又记录了新失败的事件,
// 它们保持 pending 等待下一轮.
type ReconcileReport struct {
	Processed  int `json:"processed"`
	Resolved   int `json:"resolved"`
	Failed     int `json:"failed"`
	Superseded int `json:"superseded"`
}

// RebuildReport Rebuild 的处理结果.
type RebuildReport struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

// Reconcile 重放待处理的一致性事件. upsert 事件重新读取工单; 工单已被删除时
// 改为删除向量. 成功的事件按读取时的 revision 标记为 resolved, 失败的事件累加重试次数.
func (c *Coordinator) Reconcile(ctx context.Context, limit int) (*ReconcileReport, error) {
	if limit <= 0 {
		limit = DefaultReconcileBatch
	}

	events, err := c.store.ListEvents(ctx, model.EventPending, limit)
	if err != nil {
		return nil, errors.ErrTicketStore.WithCause(err)
	}

	var resolved, failed, superseded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.ReconcileConcurrency)

	for _, e := range events {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := c.replay(gctx, e); err != nil {
				failed.Add(1)
				c.cfg.Metrics.RecordReconcile("failed")
				logger.Warnw("consistency event replay failed",
					"event", e.ID.Hex(),
					"ticket", e.TicketID.Hex(),
					"operation", e.Operation,
					"attempts", e.Attempts+1,
					"error", err.Error(),
				)
				if err := c.store.IncrementAttempts(gctx, e.ID, err.Error()); err != nil {
					logger.Errorw("failed to update consistency event", "event", e.ID.Hex(), "error", err.Error())
				}
				return nil
			}
			switch err := c.store.ResolveEvent(gctx, e.ID, e.Revision); {
			case err == nil:
				resolved.Add(1)
				c.cfg.Metrics.RecordReconcile("resolved")
			case errors.Is(err, store.ErrEventChanged):
				superseded.Add(1)
				c.cfg.Metrics.RecordReconcile("superseded")
				logger.Infow("consistency event changed during replay, keeping it pending",
					"event", e.ID.Hex(),
					"ticket", e.TicketID.Hex(),
				)
			default:
				logger.Errorw("failed to resolve consistency event", "event", e.ID.Hex(), "error", err.Error())
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.ErrTicketStore.WithCause(err)
	}

	report := &ReconcileReport{
		Processed:  len(events),
		Resolved:   int(resolved.Load()),
		Failed:     int(failed.Load()),
		Superseded: int(superseded.Load()),
	}
	logger.Infow("consistency events reconciled",
		"processed", report.Processed,
		"resolved", report.Resolved,
		"failed", report.Failed,
		"superseded", report.Superseded,
	)
	return report, nil
}

func (c *Coordinator) replay(ctx context.Context, e *model.ConsistencyEvent) error {
	id := e.TicketID.Hex()

	if e.Operation == model.OperationDelete {
		return c.deleteEntry(ctx, id)
	}

	t, err := c.store.FindOne(ctx, store.ByID(e.TicketID))
	switch {
	case err == nil:
		return c.upsertEntry(ctx, t)
	case errors.Is(err, store.ErrNotFound):
		return c.deleteEntry(ctx, id)
	default:
		return errors.ErrTicketStore.WithCause(err)
	}
}

func (c *Coordinator) deleteEntry(ctx context.Context, id string) error {
	if err := c.index.Delete(ctx, id); err != nil {
		return errors.ErrTicketIndexUnavailable.WithCause(err)
	}
	return nil
}

// Rebuild 重新索引全部工单. purge 为 true 时先清空索引.
// 单个工单失败会记录一致性事件, 不影响其余工单.
func (c *Coordinator) Rebuild(ctx context.Context, purge bool) (*RebuildReport, error) {
	if purge {
		if err := c.DeleteAll(ctx); err != nil {
			return nil, err
		}
	}

	var indexed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.ReconcileConcurrency)

	scanErr := c.store.All(gctx, func(t *model.Ticket) error {
		g.Go(func() error {
			if err := c.upsertEntry(gctx, t); err != nil {
				failed.Add(1)
				c.recordPartial(gctx, t, model.OperationUpsert, err)
				return nil
			}
			indexed.Add(1)
			return nil
		})
		return nil
	})
	waitErr := g.Wait()

	if scanErr != nil {
		return nil, errors.ErrTicketStore.WithCause(scanErr)
	}
	if waitErr != nil {
		return nil, errors.ErrTicketStore.WithCause(waitErr)
	}

	report := &RebuildReport{Indexed: int(indexed.Load()), Failed: int(failed.Load())}
	logger.Infow("vector index rebuilt", "indexed", report.Indexed, "failed", report.Failed, "purged", purge)
	return report, nil
}
