// Package mongodb 封装 MongoDB 客户端的创建, 健康检查与关闭.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	mongodbopts "github.com/BluePanda-io/ai-agent-apis/pkg/options/mongodb"
)

// Client wraps mongo.Client bound to the configured database.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	opts     *mongodbopts.Options
}

// NewWithContext connects and pings MongoDB. ctx bounds connection setup only.
func NewWithContext(ctx context.Context, opts *mongodbopts.Options) (*Client, error) {
	if opts == nil {
		return nil, errors.New("mongodb options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid mongodb options: %w", errors.Join(errs...))
	}

	clientOpts := mongoopts.Client().
		ApplyURI(opts.BuildURI()).
		// 扩展字段中的嵌套文档解码为 map, 而不是 bson.D
		SetBSONOptions(&mongoopts.BSONOptions{DefaultDocumentM: true})

	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(opts.MinPoolSize)
	}
	if opts.MaxConnIdleTime > 0 {
		clientOpts.SetMaxConnIdleTime(opts.MaxConnIdleTime)
	}
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.SocketTimeout > 0 {
		clientOpts.SetSocketTimeout(opts.SocketTimeout)
	}
	if opts.ServerSelectionTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(opts.ServerSelectionTimeout)
	}
	if opts.Direct {
		clientOpts.SetDirect(true)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Client{
		client:   client,
		database: client.Database(opts.Database),
		opts:     opts,
	}, nil
}

func (c *Client) Name() string {
	return "mongodb"
}

func (c *Client) Ping(ctx context.Context) error {
	if c.client == nil {
		return errors.New("mongodb client is nil")
	}
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects, waiting at most 10s for in-flight operations.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

func (c *Client) Database() *mongo.Database {
	return c.database
}

func (c *Client) Collection(name string) *mongo.Collection {
	return c.database.Collection(name)
}
