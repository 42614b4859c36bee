// Package config loads tiercache CLI configuration from flags, environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/discochess/tiercache"
	"github.com/discochess/tiercache/internal/codec/codecs"
	"github.com/discochess/tiercache/internal/eviction"
)

// EnvPrefix is the prefix of environment variables read by Load,
// e.g. TIERCACHE_BACKEND or TIERCACHE_CACHE_MAX_ENTRIES.
const EnvPrefix = "TIERCACHE"

// Backend names.
const (
	BackendDisk  = "disk"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
	BackendRedis = "redis"
)

// Config holds all CLI configuration.
type Config struct {
	DataDir   string `mapstructure:"data_dir"`
	Backend   string `mapstructure:"backend"`
	Codec     string `mapstructure:"codec"`
	Namespace string `mapstructure:"namespace"`
	Verbose   bool   `mapstructure:"verbose"`

	// CodecLevel is the compression level; zero keeps the codec default.
	CodecLevel int `mapstructure:"codec_level"`

	Cache CacheConfig `mapstructure:"cache"`
	S3    S3Config    `mapstructure:"s3"`
	GCS   GCSConfig   `mapstructure:"gcs"`
	Redis RedisConfig `mapstructure:"redis"`
}

// CacheConfig holds engine settings.
type CacheConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	MaxSizeBytes    int64         `mapstructure:"max_size_bytes"`
	MaxEntries      int           `mapstructure:"max_entries"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Policy          string        `mapstructure:"policy"`

	// ReadCacheSize is the number of host items kept in memory in front of
	// remote backends. Zero disables the read cache.
	ReadCacheSize int `mapstructure:"read_cache_size"`
}

// S3Config holds AWS S3 backend settings.
type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// GCSConfig holds Google Cloud Storage backend settings.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// RedisConfig holds Redis backend settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`

	// SessionExpiry bounds how long an idle session survives in Redis.
	// Zero keeps items until removed.
	SessionExpiry time.Duration `mapstructure:"session_expiry"`
}

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"data-dir":  "data_dir",
	"backend":   "backend",
	"codec":     "codec",
	"namespace": "namespace",
	"verbose":   "verbose",
}

// Load reads configuration. Values are taken, highest precedence first,
// from changed flags, TIERCACHE_* environment variables, the config file
// and defaults. An empty path looks for tiercache.yaml in the working
// directory and tolerates its absence; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tiercache")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %q: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./tiercache-data")
	v.SetDefault("backend", BackendDisk)
	v.SetDefault("codec", "zstd")
	v.SetDefault("codec_level", 0)
	v.SetDefault("namespace", tiercache.DefaultNamespace)
	v.SetDefault("verbose", false)

	v.SetDefault("cache.default_ttl", tiercache.DefaultTTL)
	v.SetDefault("cache.max_size_bytes", tiercache.DefaultMaxSizeBytes)
	v.SetDefault("cache.max_entries", tiercache.DefaultMaxEntries)
	v.SetDefault("cache.cleanup_interval", tiercache.DefaultCleanupInterval)
	v.SetDefault("cache.policy", "lru")
	v.SetDefault("cache.read_cache_size", 256)

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "tiercache")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")

	v.SetDefault("gcs.bucket", "")
	v.SetDefault("gcs.prefix", "tiercache")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "tiercache")
	v.SetDefault("redis.session_expiry", 24*time.Hour)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDisk:
		if c.DataDir == "" {
			return errors.New("data_dir is required for the disk backend")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return errors.New("s3.bucket is required for the s3 backend")
		}
	case BackendGCS:
		if c.GCS.Bucket == "" {
			return errors.New("gcs.bucket is required for the gcs backend")
		}
	case BackendRedis:
		if c.Redis.Address == "" {
			return errors.New("redis.address is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.Namespace == "" {
		return errors.New("namespace must not be empty")
	}
	if _, err := codecs.ByName(c.Codec, c.CodecLevel); err != nil {
		return err
	}
	if _, err := eviction.ByName(c.Cache.Policy); err != nil {
		return err
	}
	if c.Cache.DefaultTTL < 0 || c.Cache.CleanupInterval < 0 {
		return errors.New("durations must not be negative")
	}
	if c.Cache.MaxSizeBytes < 0 || c.Cache.MaxEntries < 0 || c.Cache.ReadCacheSize < 0 {
		return errors.New("capacities must not be negative")
	}
	if c.Redis.SessionExpiry < 0 {
		return errors.New("redis.session_expiry must not be negative")
	}
	return nil
}

// CacheOptions translates the configuration into engine options.
// The session store is supplied by the caller.
func (c *Config) CacheOptions() ([]tiercache.Option, error) {
	cd, err := codecs.ByName(c.Codec, c.CodecLevel)
	if err != nil {
		return nil, err
	}
	policy, err := eviction.ByName(c.Cache.Policy)
	if err != nil {
		return nil, err
	}
	return []tiercache.Option{
		tiercache.WithNamespace(c.Namespace),
		tiercache.WithCodec(cd),
		tiercache.WithPolicy(policy),
		tiercache.WithDefaultTTL(c.Cache.DefaultTTL),
		tiercache.WithMaxSizeBytes(c.Cache.MaxSizeBytes),
		tiercache.WithMaxEntries(c.Cache.MaxEntries),
		tiercache.WithCleanupInterval(c.Cache.CleanupInterval),
	}, nil
}
