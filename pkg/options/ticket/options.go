// Package ticket provides ticket service configuration options.
package ticket

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/BluePanda-io/ai-agent-apis/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const (
	DriverMongoDB = "mongodb"
	DriverMilvus  = "milvus"
	DriverMemory  = "memory"
)

// Options contains ticket service configuration.
type Options struct {
	// StoreDriver selects the document store: mongodb or memory.
	StoreDriver string `json:"store-driver" mapstructure:"store-driver"`
	// IndexDriver selects the vector index: milvus or memory.
	IndexDriver string `json:"index-driver" mapstructure:"index-driver"`

	Collection         string `json:"collection" mapstructure:"collection"`
	VersionsCollection string `json:"versions-collection" mapstructure:"versions-collection"`
	EventsCollection   string `json:"events-collection" mapstructure:"events-collection"`
	// IndexCollection is the Milvus collection holding search entries.
	IndexCollection string `json:"index-collection" mapstructure:"index-collection"`

	// EmbeddingDim must match the embedding model output.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// TopK is used when a search does not ask for a count, MaxTopK caps it.
	TopK    int `json:"top-k" mapstructure:"top-k"`
	MaxTopK int `json:"max-top-k" mapstructure:"max-top-k"`

	// IndexTimeout bounds the index phase of a mutation once the store write has happened.
	IndexTimeout time.Duration `json:"index-timeout" mapstructure:"index-timeout"`

	// ReconcileConcurrency bounds reconcile and rebuild fan-out.
	ReconcileConcurrency int `json:"reconcile-concurrency" mapstructure:"reconcile-concurrency"`

	Cache *CacheOptions `json:"cache" mapstructure:"cache"`
}

// CacheOptions 嵌入缓存配置.
type CacheOptions struct {
	Enabled   bool          `json:"enabled" mapstructure:"enabled"`
	TTL       time.Duration `json:"ttl" mapstructure:"ttl"`
	KeyPrefix string        `json:"key-prefix" mapstructure:"key-prefix"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		StoreDriver:          DriverMongoDB,
		IndexDriver:          DriverMilvus,
		Collection:           "tickets",
		VersionsCollection:   "ticket_versions",
		EventsCollection:     "consistency_events",
		IndexCollection:      "ticket_vectors",
		EmbeddingDim:         1536,
		TopK:                 5,
		MaxTopK:              50,
		IndexTimeout:         30 * time.Second,
		ReconcileConcurrency: 4,
		Cache: &CacheOptions{
			TTL:       24 * time.Hour,
			KeyPrefix: "ticket:emb:",
		},
	}
}

// AddFlags adds flags for ticket options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "ticket."
	fs.StringVar(&o.StoreDriver, p+"store-driver", o.StoreDriver, "Document store driver (mongodb, memory).")
	fs.StringVar(&o.IndexDriver, p+"index-driver", o.IndexDriver, "Vector index driver (milvus, memory).")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "MongoDB collection for tickets.")
	fs.StringVar(&o.VersionsCollection, p+"versions-collection", o.VersionsCollection, "MongoDB collection for ticket versions.")
	fs.StringVar(&o.EventsCollection, p+"events-collection", o.EventsCollection, "MongoDB collection for consistency events.")
	fs.StringVar(&o.IndexCollection, p+"index-collection", o.IndexCollection, "Milvus collection for ticket vectors.")
	fs.IntVar(&o.EmbeddingDim, p+"embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Default number of search results.")
	fs.IntVar(&o.MaxTopK, p+"max-top-k", o.MaxTopK, "Maximum number of search results.")
	fs.DurationVar(&o.IndexTimeout, p+"index-timeout", o.IndexTimeout, "Timeout for the index phase of a mutation.")
	fs.IntVar(&o.ReconcileConcurrency, p+"reconcile-concurrency", o.ReconcileConcurrency, "Concurrent index writes during reconcile and rebuild.")

	if o.Cache == nil {
		o.Cache = NewOptions().Cache
	}
	fs.BoolVar(&o.Cache.Enabled, p+"cache.enabled", o.Cache.Enabled, "Cache embeddings in Redis.")
	fs.DurationVar(&o.Cache.TTL, p+"cache.ttl", o.Cache.TTL, "Embedding cache TTL.")
	fs.StringVar(&o.Cache.KeyPrefix, p+"cache.key-prefix", o.Cache.KeyPrefix, "Embedding cache key prefix.")
}

// Complete completes the ticket options with defaults.
func (o *Options) Complete() error {
	if o.Cache == nil {
		o.Cache = NewOptions().Cache
	}
	if o.MaxTopK > 0 && o.TopK > o.MaxTopK {
		o.TopK = o.MaxTopK
	}
	return nil
}

// Validate validates the ticket options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.StoreDriver != DriverMongoDB && o.StoreDriver != DriverMemory {
		errs = append(errs, fmt.Errorf("ticket.store-driver must be %s or %s", DriverMongoDB, DriverMemory))
	}
	if o.IndexDriver != DriverMilvus && o.IndexDriver != DriverMemory {
		errs = append(errs, fmt.Errorf("ticket.index-driver must be %s or %s", DriverMilvus, DriverMemory))
	}
	if o.StoreDriver == DriverMongoDB && (o.Collection == "" || o.VersionsCollection == "" || o.EventsCollection == "") {
		errs = append(errs, fmt.Errorf("ticket collections must not be empty"))
	}
	if o.IndexDriver == DriverMilvus && o.IndexCollection == "" {
		errs = append(errs, fmt.Errorf("ticket.index-collection must not be empty"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("ticket.embedding-dim must be positive"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("ticket.top-k must be positive"))
	}
	if o.MaxTopK < o.TopK {
		errs = append(errs, fmt.Errorf("ticket.max-top-k must be >= ticket.top-k"))
	}
	if o.IndexTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ticket.index-timeout must be positive"))
	}
	if o.ReconcileConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("ticket.reconcile-concurrency must be positive"))
	}
	if o.Cache != nil && o.Cache.Enabled && o.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("ticket.cache.ttl must be positive"))
	}
	return errs
}
