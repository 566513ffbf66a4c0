package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	gofetchcache "github.com/dgduncan/go-fetch-cache"
)

const envPrefix = "FETCHCACHE"

type logConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

type fetchConfig struct {
	Timeout      time.Duration                 `mapstructure:"timeout"`
	MaxBodyBytes int64                         `mapstructure:"max_body_bytes"`
	UserAgent    string                        `mapstructure:"user_agent"`
	KeyStrategy  string                        `mapstructure:"key_strategy"`
	Concurrency  int                           `mapstructure:"concurrency"`
	Overrides    []gofetchcache.DomainOverride `mapstructure:"overrides"`
}

type storageConfig struct {
	Backend        string        `mapstructure:"backend"`
	Dir            string        `mapstructure:"dir"`
	NoSync         bool          `mapstructure:"no_sync"` // leveldb only
	LevelDBPath    string        `mapstructure:"leveldb_path"`
	PostgresDSN    string        `mapstructure:"postgres_dsn"`
	DynamoTable    string        `mapstructure:"dynamodb_table"`
	DynamoRegion   string        `mapstructure:"dynamodb_region"`
	DynamoEndpoint string        `mapstructure:"dynamodb_endpoint"`
	CreateTable    bool          `mapstructure:"create_table"`
	ItemExpiration time.Duration `mapstructure:"item_expiration"`
	DeleteExpired  bool          `mapstructure:"delete_expired"`
}

type appConfig struct {
	Listen  string        `mapstructure:"listen"`
	Out     string        `mapstructure:"out"`
	Log     logConfig     `mapstructure:"log"`
	Fetch   fetchConfig   `mapstructure:"fetch"`
	Storage storageConfig `mapstructure:"storage"`
}

// cliOptions is the parsed command line: the resolved configuration plus the
// locators to fetch.
type cliOptions struct {
	cfg         appConfig
	locators    []string
	showVersion bool
}

// flagKeys maps flag names to their configuration keys.
var flagKeys = map[string]string{
	"listen":            "listen",
	"out":               "out",
	"log-level":         "log.level",
	"log-file":          "log.file",
	"timeout":           "fetch.timeout",
	"max-body-bytes":    "fetch.max_body_bytes",
	"user-agent":        "fetch.user_agent",
	"key-strategy":      "fetch.key_strategy",
	"concurrency":       "fetch.concurrency",
	"backend":           "storage.backend",
	"dir":               "storage.dir",
	"leveldb-path":      "storage.leveldb_path",
	"postgres-dsn":      "storage.postgres_dsn",
	"dynamodb-table":    "storage.dynamodb_table",
	"dynamodb-region":   "storage.dynamodb_region",
	"dynamodb-endpoint": "storage.dynamodb_endpoint",
	"create-table":      "storage.create_table",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.compress", true)
	v.SetDefault("fetch.timeout", gofetchcache.DefaultFetchTimeout.String())
	v.SetDefault("fetch.key_strategy", "segment")
	v.SetDefault("fetch.concurrency", 4)
	v.SetDefault("storage.backend", "disk")
	v.SetDefault("storage.dir", defaultCacheDir())
	v.SetDefault("storage.leveldb_path", "./data/leveldb")
	v.SetDefault("storage.no_sync", false)
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.dynamodb_table", "fetch_cache")
	v.SetDefault("storage.dynamodb_region", "")
	v.SetDefault("storage.dynamodb_endpoint", "")
	v.SetDefault("storage.create_table", false)
	v.SetDefault("storage.item_expiration", "0s")
	v.SetDefault("storage.delete_expired", false)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("fetchcache", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringP("config", "c", "", "path to a YAML config file (or FETCHCACHE_CONFIG)")
	fs.Bool("version", false, "print version and exit")
	fs.StringP("listen", "l", "", "serve GET /resource?locator=<url> on this address instead of fetching arguments")
	fs.StringP("out", "o", "", "write fetched resources into this directory")
	fs.String("log-level", "", "debug|info|warn|error")
	fs.String("log-file", "", "rotating log file (default stderr)")
	fs.Duration("timeout", 0, "timeout for a single network fetch")
	fs.Int64("max-body-bytes", 0, "reject responses larger than this (0 = unlimited)")
	fs.String("user-agent", "", "User-Agent sent with fetches")
	fs.String("key-strategy", "", "segment|hash")
	fs.Int("concurrency", 0, "locators fetched in parallel")
	fs.StringP("backend", "b", "", "disk|memory|leveldb|postgres|dynamodb")
	fs.StringP("dir", "d", "", "disk backend directory")
	fs.String("leveldb-path", "", "leveldb backend database directory")
	fs.String("postgres-dsn", "", "postgres backend connection string")
	fs.String("dynamodb-table", "", "dynamodb backend table")
	fs.String("dynamodb-region", "", "dynamodb backend region")
	fs.String("dynamodb-endpoint", "", "dynamodb endpoint override, e.g. http://localhost:8000")
	fs.Bool("create-table", false, "create the dynamodb table before use")

	return fs
}

func parseCLI(args []string) (cliOptions, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("parse flags: %w", err)
	}
	configPath, _ := fs.GetString("config")
	showVersion, _ := fs.GetBool("version")

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return cliOptions{}, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	path := os.Getenv(envPrefix + "_CONFIG")
	if configPath != "" {
		path = configPath
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cliOptions{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg appConfig
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return cliOptions{}, fmt.Errorf("decode config: %w", err)
	}

	opts := cliOptions{cfg: cfg, locators: fs.Args(), showVersion: showVersion}
	if opts.showVersion {
		return opts, nil
	}
	if err := cfg.validate(len(opts.locators)); err != nil {
		return cliOptions{}, err
	}

	return opts, nil
}

func (c appConfig) validate(locators int) error {
	if c.Listen == "" && locators == 0 {
		return errors.New("nothing to do: pass locators or --listen")
	}
	if c.Listen != "" && locators > 0 {
		return errors.New("--listen cannot be combined with locator arguments")
	}
	if c.Fetch.Timeout <= 0 {
		return errors.New("fetch.timeout must be positive")
	}
	if c.Fetch.Concurrency <= 0 {
		return errors.New("fetch.concurrency must be positive")
	}
	if _, err := c.keyFunc(); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case "disk":
		if c.Storage.Dir == "" {
			return errors.New("storage.dir is required for the disk backend")
		}
		if c.Storage.NoSync {
			// disk entries carry no checksum, so a short file would be served
			return errors.New("storage.no_sync is not supported by the disk backend")
		}
	case "memory":
	case "leveldb":
		if c.Storage.LevelDBPath == "" {
			return errors.New("storage.leveldb_path is required for the leveldb backend")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres backend")
		}
	case "dynamodb":
		if c.Storage.DynamoTable == "" {
			return errors.New("storage.dynamodb_table is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("unsupported storage.backend %q (disk|memory|leveldb|postgres|dynamodb)", c.Storage.Backend)
	}

	return nil
}

func (c appConfig) keyFunc() (gofetchcache.KeyFunc, error) {
	switch strings.ToLower(c.Fetch.KeyStrategy) {
	case "", "segment":
		return gofetchcache.LastSegmentKey, nil
	case "hash":
		return gofetchcache.HashKey, nil
	default:
		return nil, fmt.Errorf("unsupported fetch.key_strategy %q (segment|hash)", c.Fetch.KeyStrategy)
	}
}

func (c appConfig) fetchCacheConfig() (*gofetchcache.Config, error) {
	keyFunc, err := c.keyFunc()
	if err != nil {
		return nil, err
	}
	return &gofetchcache.Config{
		KeyFunc:         keyFunc,
		FetchTimeout:    c.Fetch.Timeout,
		DomainOverrides: c.Fetch.Overrides,
	}, nil
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "./cache"
	}
	return dir + string(os.PathSeparator) + "fetchcache"
}
