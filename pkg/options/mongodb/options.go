// Package mongodb provides MongoDB options.
package mongodb

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/BluePanda-io/ai-agent-apis/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const redactedPassword = "[REDACTED]"

// Options defines configuration options for MongoDB.
type Options struct {
	URI      string `json:"uri" mapstructure:"uri"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`

	MaxPoolSize     uint64        `json:"max-pool-size" mapstructure:"max-pool-size"`
	MinPoolSize     uint64        `json:"min-pool-size" mapstructure:"min-pool-size"`
	MaxConnIdleTime time.Duration `json:"max-conn-idle-time" mapstructure:"max-conn-idle-time"`

	ConnectTimeout         time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	SocketTimeout          time.Duration `json:"socket-timeout" mapstructure:"socket-timeout"`
	ServerSelectionTimeout time.Duration `json:"server-selection-timeout" mapstructure:"server-selection-timeout"`

	ReplicaSet string `json:"replica-set" mapstructure:"replica-set"`
	AuthSource string `json:"auth-source" mapstructure:"auth-source"`
	Direct     bool   `json:"direct" mapstructure:"direct"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:                   "127.0.0.1",
		Port:                   27017,
		Database:               "ticketing",
		MaxPoolSize:            100,
		MinPoolSize:            5,
		MaxConnIdleTime:        5 * time.Minute,
		ConnectTimeout:         10 * time.Second,
		SocketTimeout:          30 * time.Second,
		ServerSelectionTimeout: 10 * time.Second,
		AuthSource:             "admin",
	}
}

// String returns a representation safe for logs.
func (o *Options) String() string {
	password := ""
	if o.Password != "" {
		password = redactedPassword
	}
	return fmt.Sprintf("MongoDB{host=%s, port=%d, user=%s, password=%s, database=%s}",
		o.Host, o.Port, o.Username, password, o.Database)
}

// Complete 从环境变量 MONGODB_URI / MONGODB_PASSWORD 补全未设置的连接信息.
func (o *Options) Complete() error {
	if o.URI == "" {
		o.URI = os.Getenv("MONGODB_URI")
	}
	if o.Password == "" {
		o.Password = os.Getenv("MONGODB_PASSWORD")
	}
	return nil
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.URI == "" {
		if o.Host == "" {
			errs = append(errs, errors.New("mongodb.host is required when mongodb.uri is not set"))
		}
		if o.Port <= 0 || o.Port > 65535 {
			errs = append(errs, fmt.Errorf("mongodb.port %d out of range", o.Port))
		}
	}
	if o.Database == "" {
		errs = append(errs, errors.New("mongodb.database is required"))
	}
	if o.MinPoolSize > o.MaxPoolSize && o.MaxPoolSize > 0 {
		errs = append(errs, errors.New("mongodb.min-pool-size must not exceed mongodb.max-pool-size"))
	}
	return errs
}

// AddFlags adds flags for MongoDB options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "mongodb."
	fs.StringVar(&o.URI, p+"uri", o.URI, "MongoDB URI (mongodb://...), overrides host/port. Falls back to MONGODB_URI.")
	fs.StringVar(&o.Host, p+"host", o.Host, "MongoDB service host address.")
	fs.IntVar(&o.Port, p+"port", o.Port, "MongoDB service port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Username for access to mongodb service.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Password for access to mongodb, prefer MONGODB_PASSWORD.")
	fs.StringVar(&o.Database, p+"database", o.Database, "Database holding tickets, versions and consistency events.")
	fs.Uint64Var(&o.MaxPoolSize, p+"max-pool-size", o.MaxPoolSize, "Maximum number of connections in the pool.")
	fs.Uint64Var(&o.MinPoolSize, p+"min-pool-size", o.MinPoolSize, "Minimum number of connections in the pool.")
	fs.DurationVar(&o.MaxConnIdleTime, p+"max-conn-idle-time", o.MaxConnIdleTime, "Maximum connection idle time.")
	fs.DurationVar(&o.ConnectTimeout, p+"connect-timeout", o.ConnectTimeout, "Timeout for connection.")
	fs.DurationVar(&o.SocketTimeout, p+"socket-timeout", o.SocketTimeout, "Timeout for socket operations.")
	fs.DurationVar(&o.ServerSelectionTimeout, p+"server-selection-timeout", o.ServerSelectionTimeout, "Timeout for server selection.")
	fs.StringVar(&o.ReplicaSet, p+"replica-set", o.ReplicaSet, "MongoDB replica set name.")
	fs.StringVar(&o.AuthSource, p+"auth-source", o.AuthSource, "MongoDB authentication source.")
	fs.BoolVar(&o.Direct, p+"direct", o.Direct, "MongoDB direct connection.")
}

// BuildURI returns URI when set, otherwise assembles one from the parts.
func (o *Options) BuildURI() string {
	if o.URI != "" {
		return o.URI
	}

	var uri strings.Builder
	uri.WriteString("mongodb://")
	if o.Username != "" {
		uri.WriteString(url.QueryEscape(o.Username))
		if o.Password != "" {
			uri.WriteString(":")
			uri.WriteString(url.QueryEscape(o.Password))
		}
		uri.WriteString("@")
	}
	uri.WriteString(o.Host)
	if o.Port != 0 {
		fmt.Fprintf(&uri, ":%d", o.Port)
	}
	uri.WriteString("/")

	params := url.Values{}
	if o.Username != "" && o.AuthSource != "" {
		params.Add("authSource", o.AuthSource)
	}
	if o.ReplicaSet != "" {
		params.Add("replicaSet", o.ReplicaSet)
	}
	if o.Direct {
		params.Add("directConnection", "true")
	}
	if len(params) > 0 {
		uri.WriteString("?")
		uri.WriteString(params.Encode())
	}
	return uri.String()
}
