// Package config loads the settings of the demo service from flags and the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables read by Load.
const EnvPrefix = "GOODM"

// MemoryScheme selects the in-memory database. A path after the scheme is
// used as its snapshot file.
const MemoryScheme = "memory://"

const (
	keyMongoURI         = "mongo-uri"
	keyDatabase         = "database"
	keyAddr             = "addr"
	keyDebug            = "debug"
	keyAutoIndex        = "auto-index"
	keyMaxPoolSize      = "max-pool-size"
	keyMinPoolSize      = "min-pool-size"
	keyConnectTimeout   = "connect-timeout"
	keySnapshotInterval = "snapshot-interval"
)

type Config struct {
	MongoURI         string
	Database         string
	Addr             string
	Debug            bool
	AutoIndex        bool
	MaxPoolSize      uint64
	MinPoolSize      uint64
	ConnectTimeout   time.Duration
	SnapshotInterval time.Duration
}

// BindFlags registers the configuration flags on flags.
func BindFlags(flags *pflag.FlagSet) {
	flags.String(keyMongoURI, "mongodb://localhost:27017", "MongoDB connection string, or memory://[snapshot file]")
	flags.String(keyDatabase, "go_odm", "database name")
	flags.String(keyAddr, ":8080", "HTTP listen address")
	flags.Bool(keyDebug, false, "enable debug logging")
	flags.Bool(keyAutoIndex, true, "synchronize indexes on connect")
	flags.Uint64(keyMaxPoolSize, 100, "maximum connections in the driver pool")
	flags.Uint64(keyMinPoolSize, 0, "minimum connections in the driver pool")
	flags.Duration(keyConnectTimeout, 10*time.Second, "timeout for connecting to MongoDB")
	flags.Duration(keySnapshotInterval, 0, "background snapshot interval of the memory database, 0 disables it")
}

// Load resolves the configuration. Explicit flags win over the environment,
// which wins over flag defaults. Besides GOODM_* variables, MONGODB_URL and
// MONGODB_DB are honored for the connection string and database name.
func Load(flags *pflag.FlagSet) (*Config, error) {
	vip := viper.New()
	if flags != nil {
		if err := vip.BindPFlags(flags); err != nil {
			return nil, err
		}
	}

	vip.SetEnvPrefix(EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vip.AutomaticEnv()
	if err := vip.BindEnv(keyMongoURI, EnvPrefix+"_MONGO_URI", "MONGODB_URL"); err != nil {
		return nil, err
	}
	if err := vip.BindEnv(keyDatabase, EnvPrefix+"_DATABASE", "MONGODB_DB"); err != nil {
		return nil, err
	}

	vip.SetDefault(keyMongoURI, "mongodb://localhost:27017")
	vip.SetDefault(keyDatabase, "go_odm")
	vip.SetDefault(keyAddr, ":8080")
	vip.SetDefault(keyAutoIndex, true)
	vip.SetDefault(keyMaxPoolSize, 100)
	vip.SetDefault(keyConnectTimeout, 10*time.Second)

	cfg := &Config{
		MongoURI:         vip.GetString(keyMongoURI),
		Database:         vip.GetString(keyDatabase),
		Addr:             vip.GetString(keyAddr),
		Debug:            vip.GetBool(keyDebug),
		AutoIndex:        vip.GetBool(keyAutoIndex),
		MaxPoolSize:      vip.GetUint64(keyMaxPoolSize),
		MinPoolSize:      vip.GetUint64(keyMinPoolSize),
		ConnectTimeout:   vip.GetDuration(keyConnectTimeout),
		SnapshotInterval: vip.GetDuration(keySnapshotInterval),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch {
	case c.MongoURI == "":
		return fmt.Errorf("mongo uri is required")
	case !c.Memory() && !strings.HasPrefix(c.MongoURI, "mongodb://") && !strings.HasPrefix(c.MongoURI, "mongodb+srv://"):
		return fmt.Errorf("unsupported connection string %q: expected mongodb://, mongodb+srv:// or %s", c.MongoURI, MemoryScheme)
	case c.Database == "":
		return fmt.Errorf("database name is required")
	case c.MinPoolSize > c.MaxPoolSize && c.MaxPoolSize > 0:
		return fmt.Errorf("min pool size %d exceeds max pool size %d", c.MinPoolSize, c.MaxPoolSize)
	case c.ConnectTimeout < 0 || c.SnapshotInterval < 0:
		return fmt.Errorf("durations cannot be negative")
	}
	return nil
}

// Memory reports whether the in-memory database is selected.
func (c *Config) Memory() bool {
	return strings.HasPrefix(c.MongoURI, MemoryScheme)
}

// SnapshotFile returns the snapshot path of the memory database, if any.
func (c *Config) SnapshotFile() string {
	if !c.Memory() {
		return ""
	}
	return strings.TrimPrefix(c.MongoURI, MemoryScheme)
}
