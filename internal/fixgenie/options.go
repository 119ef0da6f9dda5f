// Package fixgenie assembles the FixGenie service.
package fixgenie

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	llmopts "github.com/kart-io/fixgenie/pkg/options/llm"
	logopts "github.com/kart-io/fixgenie/pkg/options/logger"
	milvusopts "github.com/kart-io/fixgenie/pkg/options/milvus"
	redisopts "github.com/kart-io/fixgenie/pkg/options/redis"
)

// ServerOptions contains HTTP server configuration.
type ServerOptions struct {
	// Addr is the listen address.
	Addr string `json:"addr" mapstructure:"addr"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`

	// RequestDeadline bounds one query end to end.
	RequestDeadline time.Duration `json:"request-deadline" mapstructure:"request-deadline"`
}

// CorpusOptions contains corpus storage and maintenance configuration.
type CorpusOptions struct {
	// DSN is the SQLite database path for the canonical corpus.
	DSN string `json:"dsn" mapstructure:"dsn"`

	// DataFile is an optional incident export (json or csv) loaded at start
	// and watched for changes. Empty disables the watcher.
	DataFile string `json:"data-file" mapstructure:"data-file"`

	// AuditInterval is the period of the consistency sweep. Zero disables it.
	AuditInterval time.Duration `json:"audit-interval" mapstructure:"audit-interval"`

	// IngestWorkers bounds concurrent embedding during batch ingest.
	IngestWorkers int `json:"ingest-workers" mapstructure:"ingest-workers"`
}

// CacheOptions contains the embedding cache configuration.
type CacheOptions struct {
	// Enabled toggles the Redis embedding cache.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL is the cache entry lifetime.
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix namespaces cache keys.
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
}

// RateLimitOptions sizes the token bucket for generative calls.
type RateLimitOptions struct {
	// RequestsPerSecond is the sustained rate.
	RequestsPerSecond float64 `json:"requests-per-second" mapstructure:"requests-per-second"`

	// Burst is the bucket size.
	Burst int `json:"burst" mapstructure:"burst"`

	// MaxBacklog bounds queued waiters before requests fail fast.
	MaxBacklog int `json:"max-backlog" mapstructure:"max-backlog"`
}

// Options contains all FixGenie service options.
type Options struct {
	// Server contains HTTP server configuration.
	Server *ServerOptions `json:"server" mapstructure:"server"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Milvus contains vector index configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Redis contains the embedding cache backend configuration.
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`

	// Embedding contains embedding provider configuration.
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains chat provider configuration.
	Chat *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// Corpus contains corpus storage and maintenance configuration.
	Corpus *CorpusOptions `json:"corpus" mapstructure:"corpus"`

	// Cache contains embedding cache configuration.
	Cache *CacheOptions `json:"cache" mapstructure:"cache"`

	// RateLimit contains generative call rate limiting.
	RateLimit *RateLimitOptions `json:"rate-limit" mapstructure:"rate-limit"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	embedding := llmopts.NewProviderOptions()
	embedding.Model = "text-embedding-004"
	embedding.TaskType = "retrieval_document"

	chat := llmopts.NewProviderOptions()
	chat.Model = "gemini-1.5-flash"

	return &Options{
		Server: &ServerOptions{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			RequestDeadline: 10 * time.Second,
		},
		Log:       logopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		Redis:     redisopts.NewOptions(),
		Embedding: embedding,
		Chat:      chat,
		Corpus: &CorpusOptions{
			DSN:           "fixgenie.db",
			AuditInterval: 10 * time.Minute,
			IngestWorkers: 4,
		},
		Cache: &CacheOptions{
			Enabled:   true,
			TTL:       24 * time.Hour,
			KeyPrefix: "emb:",
		},
		RateLimit: &RateLimitOptions{
			RequestsPerSecond: 10,
			Burst:             20,
			MaxBacklog:        64,
		},
	}
}

// AddFlags adds all flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Server.Addr, "server.addr", o.Server.Addr, "HTTP listen address.")
	fs.DurationVar(&o.Server.ShutdownTimeout, "server.shutdown-timeout", o.Server.ShutdownTimeout, "Graceful shutdown timeout.")
	fs.DurationVar(&o.Server.RequestDeadline, "server.request-deadline", o.Server.RequestDeadline, "End-to-end deadline for one query.")

	o.Log.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Redis.AddFlags(fs)
	o.Embedding.AddFlags(fs, "embedding.")
	o.Chat.AddFlags(fs, "chat.")

	fs.StringVar(&o.Corpus.DSN, "corpus.dsn", o.Corpus.DSN, "SQLite database path for the corpus.")
	fs.StringVar(&o.Corpus.DataFile, "corpus.data-file", o.Corpus.DataFile, "Incident export file loaded at start and watched for changes.")
	fs.DurationVar(&o.Corpus.AuditInterval, "corpus.audit-interval", o.Corpus.AuditInterval, "Consistency sweep interval; 0 disables.")
	fs.IntVar(&o.Corpus.IngestWorkers, "corpus.ingest-workers", o.Corpus.IngestWorkers, "Concurrent embedding workers during ingest.")

	fs.BoolVar(&o.Cache.Enabled, "cache.enabled", o.Cache.Enabled, "Enable the Redis embedding cache.")
	fs.DurationVar(&o.Cache.TTL, "cache.ttl", o.Cache.TTL, "Embedding cache TTL.")
	fs.StringVar(&o.Cache.KeyPrefix, "cache.key-prefix", o.Cache.KeyPrefix, "Embedding cache key prefix.")

	fs.Float64Var(&o.RateLimit.RequestsPerSecond, "rate-limit.requests-per-second", o.RateLimit.RequestsPerSecond, "Sustained generative call rate.")
	fs.IntVar(&o.RateLimit.Burst, "rate-limit.burst", o.RateLimit.Burst, "Generative call burst size.")
	fs.IntVar(&o.RateLimit.MaxBacklog, "rate-limit.max-backlog", o.RateLimit.MaxBacklog, "Queued waiters before fail-fast.")
}

// Validate validates all options.
func (o *Options) Validate() error {
	if err := o.Log.Validate(); err != nil {
		return err
	}
	if o.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if o.Server.RequestDeadline <= 0 {
		return fmt.Errorf("server.request-deadline must be positive")
	}
	if o.Corpus.DSN == "" {
		return fmt.Errorf("corpus.dsn is required")
	}
	// Milvus options only matter when an address is set; empty selects the
	// in-memory index.
	if o.Milvus.Address != "" {
		if errs := o.Milvus.Validate(); len(errs) > 0 {
			return errs[0]
		}
	}
	if o.Cache.Enabled {
		if errs := o.Redis.Validate(); len(errs) > 0 {
			return errs[0]
		}
	}
	if errs := o.Embedding.Validate(); len(errs) > 0 {
		return errs[0]
	}
	if errs := o.Chat.Validate(); len(errs) > 0 {
		return errs[0]
	}
	if o.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate-limit.requests-per-second must be positive")
	}
	return nil
}
