// Package milvusopts provides options for Milvus client configuration.
package milvusopts

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/BluePanda-io/ai-agent-apis/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Milvus client configuration.
type Options struct {
	Address  string        `json:"address" mapstructure:"address"`
	Database string        `json:"database" mapstructure:"database"`
	Username string        `json:"username" mapstructure:"username"`
	Password string        `json:"-" mapstructure:"password"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
	// NProbe IVF 索引搜索时探测的聚类数.
	NProbe int `json:"nprobe" mapstructure:"nprobe"`
	// NList IVF 索引的聚类数, 仅在创建集合时使用.
	NList int `json:"nlist" mapstructure:"nlist"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Address:  "localhost:19530",
		Database: "default",
		Timeout:  30 * time.Second,
		NProbe:   16,
		NList:    128,
	}
}

// Complete 未设置密码时读取 MILVUS_PASSWORD.
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv("MILVUS_PASSWORD")
	}
	return nil
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "milvus."
	fs.StringVar(&o.Address, p+"address", o.Address, "Milvus server address (host:port).")
	fs.StringVar(&o.Database, p+"database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Milvus username for authentication.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Milvus password, prefer MILVUS_PASSWORD.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Connection timeout.")
	fs.IntVar(&o.NProbe, p+"nprobe", o.NProbe, "Number of IVF clusters probed per search.")
	fs.IntVar(&o.NList, p+"nlist", o.NList, "Number of IVF clusters when creating the index.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("milvus address is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("milvus timeout must be positive"))
	}
	if o.NProbe <= 0 || o.NList <= 0 {
		errs = append(errs, fmt.Errorf("milvus nprobe and nlist must be positive"))
	}
	return errs
}
