// Package ticket 工单服务: MongoDB 保存工单, Milvus 保存检索向量, 两者通过一致性事件对账.
package ticket

import (
	"context"

	"github.com/BluePanda-io/ai-agent-apis/pkg/infra/app"
)

// Name is the name of the application.
const Name = "ticket-apiserver"

const description = `Ticket API server.

Tickets live in MongoDB. Every ticket is projected into search text,
embedded and written to Milvus, so that free-text search returns the
tickets themselves. Index writes that fail are recorded as consistency
events and replayed by the reconcile endpoint.`

// NewApp creates the ticket-apiserver command.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("Ticket store with semantic search"),
		app.WithDescription(description),
		app.WithOptions(opts),
		app.WithRunFunc(func(ctx context.Context) error {
			return Run(ctx, opts)
		}),
	)
}

// Run builds the server from opts and blocks until shutdown.
func Run(ctx context.Context, opts *Options) error {
	s, err := NewServer(ctx, opts)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}
