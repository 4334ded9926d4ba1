// Package milvus 封装 Milvus SDK, 提供以字符串主键寻址的向量集合操作.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/BluePanda-io/ai-agent-apis/pkg/options/milvus"
)

const (
	// FieldID 主键字段.
	FieldID = "id"
	// FieldEmbedding 向量字段.
	FieldEmbedding = "embedding"
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New connects to Milvus. ctx bounds the dial; opts.Timeout applies on top.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{client: c, opts: opts}, nil
}

func (c *Client) Name() string {
	return "milvus"
}

// Ping lists collections to check the connection.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.ListCollections(ctx, milvusclient.NewListCollectionOption()); err != nil {
		return fmt.Errorf("milvus ping: %w", err)
	}
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// CollectionSchema 集合定义: VarChar 主键, 一个向量字段, 若干 VarChar 元数据字段.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	// IDMaxLen 主键最大长度.
	IDMaxLen   int
	MetaFields []MetaField
	Metric     entity.MetricType
}

// MetaField defines a VarChar metadata field.
type MetaField struct {
	Name   string
	MaxLen int
}

// EnsureCollection creates, indexes and loads the collection when absent.
// An existing collection is only loaded.
func (c *Client) EnsureCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		if err := c.createCollection(ctx, schema); err != nil {
			return err
		}
	}
	return c.load(ctx, schema.Name)
}

func (c *Client) createCollection(ctx context.Context, schema *CollectionSchema) error {
	maxLen := schema.IDMaxLen
	if maxLen <= 0 {
		maxLen = 64
	}
	metric := schema.Metric
	if metric == "" {
		metric = entity.COSINE
	}

	collSchema := entity.NewSchema().
		WithName(schema.Name).
		WithDescription(schema.Description).
		WithAutoID(false).
		WithField(entity.NewField().
			WithName(FieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(int64(maxLen)).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(schema.Dimension)))

	for _, f := range schema.MetaFields {
		collSchema.WithField(entity.NewField().
			WithName(f.Name).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(int64(f.MaxLen)))
	}

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(metric, c.opts.NList)
	task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, FieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}
	return nil
}

func (c *Client) load(ctx context.Context, name string) error {
	task, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// Rows 列式写入数据, 所有切片长度一致.
type Rows struct {
	IDs        []string
	Embeddings [][]float32
	VarChars   map[string][]string
}

// Upsert writes rows by primary key and flushes so they are searchable at once.
func (c *Client) Upsert(ctx context.Context, collection string, rows *Rows) error {
	if len(rows.IDs) == 0 {
		return nil
	}
	if len(rows.Embeddings) != len(rows.IDs) {
		return fmt.Errorf("milvus upsert: %d ids but %d embeddings", len(rows.IDs), len(rows.Embeddings))
	}

	columns := make([]column.Column, 0, len(rows.VarChars)+2)
	columns = append(columns,
		column.NewColumnVarChar(FieldID, rows.IDs),
		column.NewColumnFloatVector(FieldEmbedding, len(rows.Embeddings[0]), rows.Embeddings),
	)
	for name, values := range rows.VarChars {
		if len(values) != len(rows.IDs) {
			return fmt.Errorf("milvus upsert: field %s has %d values, want %d", name, len(values), len(rows.IDs))
		}
		columns = append(columns, column.NewColumnVarChar(name, values))
	}

	if _, err := c.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collection, columns...)); err != nil {
		return fmt.Errorf("failed to upsert: %w", err)
	}
	return c.flush(ctx, collection)
}

func (c *Client) flush(ctx context.Context, collection string) error {
	task, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// SearchResult 单条检索结果.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// Search returns up to topK nearest rows, best first.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int, outputFields []string) ([]SearchResult, error) {
	opt := milvusclient.NewSearchOption(collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldEmbedding).
		WithSearchParam("nprobe", strconv.Itoa(c.opts.NProbe)).
		WithOutputFields(outputFields...)

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	rs := results[0]
	ids, ok := rs.IDs.(*column.ColumnVarChar)
	if !ok && rs.ResultCount > 0 {
		return nil, fmt.Errorf("unexpected milvus id column type %T", rs.IDs)
	}

	out := make([]SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		r := SearchResult{
			ID:       ids.Data()[i],
			Score:    rs.Scores[i],
			Metadata: make(map[string]string, len(rs.Fields)),
		}
		for _, field := range rs.Fields {
			if col, ok := field.(*column.ColumnVarChar); ok {
				r.Metadata[col.Name()] = col.Data()[i]
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// DeleteByIDs deletes rows by primary key. Missing keys are not an error.
func (c *Client) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collection).WithStringIDs(FieldID, ids)); err != nil {
		return fmt.Errorf("failed to delete by ids: %w", err)
	}
	return nil
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collection)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
