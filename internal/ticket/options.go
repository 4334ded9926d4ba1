package ticket

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/BluePanda-io/ai-agent-apis/pkg/app"
	"github.com/BluePanda-io/ai-agent-apis/pkg/app/cliflag"
	llmopts "github.com/BluePanda-io/ai-agent-apis/pkg/options/llm"
	logopts "github.com/BluePanda-io/ai-agent-apis/pkg/options/logger"
	milvusopts "github.com/BluePanda-io/ai-agent-apis/pkg/options/milvus"
	mongodbopts "github.com/BluePanda-io/ai-agent-apis/pkg/options/mongodb"
	redisopts "github.com/BluePanda-io/ai-agent-apis/pkg/options/redis"
	httpopts "github.com/BluePanda-io/ai-agent-apis/pkg/options/server/http"
	ticketopts "github.com/BluePanda-io/ai-agent-apis/pkg/options/ticket"
)

var _ app.CliOptions = (*Options)(nil)

// Options contains all ticket service options.
type Options struct {
	HTTP      *httpopts.Options        `json:"http" mapstructure:"http"`
	Log       *logopts.Options         `json:"log" mapstructure:"log"`
	MongoDB   *mongodbopts.Options     `json:"mongodb" mapstructure:"mongodb"`
	Milvus    *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`
	Redis     *redisopts.Options       `json:"redis" mapstructure:"redis"`
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	Chat      *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`
	Ticket    *ticketopts.Options      `json:"ticket" mapstructure:"ticket"`

	// ShutdownTimeout 优雅关闭的最长等待时间.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		HTTP:            httpopts.NewOptions(),
		Log:             logopts.NewOptions(),
		MongoDB:         mongodbopts.NewOptions(),
		Milvus:          milvusopts.NewOptions(),
		Redis:           redisopts.NewOptions(),
		Embedding:       llmopts.NewEmbeddingOptions(),
		Chat:            llmopts.NewChatOptions(),
		Ticket:          ticketopts.NewOptions(),
		ShutdownTimeout: 30 * time.Second,
	}
}

// Flags returns the flags grouped by section.
func (o *Options) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTP.AddFlags(fss.FlagSet("http"))
	o.Log.AddFlags(fss.FlagSet("log"))
	o.MongoDB.AddFlags(fss.FlagSet("mongodb"))
	o.Milvus.AddFlags(fss.FlagSet("milvus"))
	o.Redis.AddFlags(fss.FlagSet("redis"))
	o.Embedding.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.Chat.AddFlags(fss.FlagSet("chat"), "chat")
	o.Ticket.AddFlags(fss.FlagSet("ticket"))

	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout.")
	return fss
}

// Complete completes every section.
func (o *Options) Complete() error {
	for _, c := range []interface{ Complete() error }{
		o.HTTP, o.MongoDB, o.Milvus, o.Redis, o.Embedding, o.Chat, o.Ticket,
	} {
		if err := c.Complete(); err != nil {
			return err
		}
	}
	return nil
}

// Validate aggregates the errors of every section in use.
func (o *Options) Validate() error {
	var errs []error
	errs = append(errs, o.HTTP.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	errs = append(errs, o.Ticket.Validate()...)
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Chat.Validate()...)

	if o.Ticket.StoreDriver == ticketopts.DriverMongoDB {
		errs = append(errs, o.MongoDB.Validate()...)
	}
	if o.Ticket.IndexDriver == ticketopts.DriverMilvus {
		errs = append(errs, o.Milvus.Validate()...)
	}
	if o.Ticket.Cache.Enabled {
		errs = append(errs, o.Redis.Validate()...)
	}
	if o.Embedding.Dimensions > 0 && o.Embedding.Dimensions != o.Ticket.EmbeddingDim {
		errs = append(errs, fmt.Errorf("embedding.dimensions %d does not match ticket.embedding-dim %d",
			o.Embedding.Dimensions, o.Ticket.EmbeddingDim))
	}
	if o.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown-timeout must be positive"))
	}
	return utilerrors.NewAggregate(errs)
}
