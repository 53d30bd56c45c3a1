package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/meigma/collate"
	"github.com/meigma/collate/internal/contenthash"
)

// configEnv names the config file when --config is not given.
const configEnv = "COLLATE_CONFIG"

// fileConfig is the YAML config file. Unset fields keep flag defaults.
type fileConfig struct {
	MaxDepth        *int   `yaml:"max_depth"`
	MaxEntrySize    string `yaml:"max_entry_size"`
	VerifyExisting  *bool  `yaml:"verify_existing"`
	MatchContainers *bool  `yaml:"match_containers"`
	Hash            string `yaml:"hash"`
	Missing         string `yaml:"missing"`
	LogLevel        string `yaml:"log_level"`
}

// config is the resolved CLI configuration.
type config struct {
	configPath      string
	maxDepth        int
	maxEntrySize    string
	verifyExisting  bool
	matchContainers bool
	hash            string
	missing         string
	logLevel        string
}

func defaultConfig() config {
	return config{
		maxDepth:     collate.DefaultMaxDepth,
		maxEntrySize: humanize.IBytes(uint64(collate.DefaultMaxEntrySize)),
		hash:         contenthash.SHA256.String(),
		logLevel:     "warn",
	}
}

func (c *config) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML config file (default: $"+configEnv+")")
	fs.IntVar(&c.maxDepth, "max-depth", c.maxDepth, "archive nesting depth to open (negative: unlimited)")
	fs.StringVar(&c.maxEntrySize, "max-entry-size", c.maxEntrySize, "largest archive entry to buffer, e.g. 512MiB (-1: unlimited)")
	fs.BoolVar(&c.verifyExisting, "verify-existing", c.verifyExisting, "hash existing output files before trusting them")
	fs.BoolVar(&c.matchContainers, "match-containers", c.matchContainers, "also match archives themselves against the manifest")
	fs.StringVar(&c.hash, "hash", c.hash, "manifest hash algorithm: sha256 or blake3")
	fs.StringVar(&c.missing, "missing", c.missing, "write manifest paths that were not found to this file")
	fs.StringVar(&c.logLevel, "log-level", c.logLevel, "log level: debug, info, warn, error")
}

// applyFile fills every option not set on the command line from the config
// file named by --config or $COLLATE_CONFIG.
func (c *config) applyFile(fs *pflag.FlagSet) error {
	path := c.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	if path == "" {
		return nil
	}

	fc, err := loadConfigFile(path)
	if err != nil {
		return err
	}

	if fc.MaxDepth != nil && !fs.Changed("max-depth") {
		c.maxDepth = *fc.MaxDepth
	}
	if fc.MaxEntrySize != "" && !fs.Changed("max-entry-size") {
		c.maxEntrySize = fc.MaxEntrySize
	}
	if fc.VerifyExisting != nil && !fs.Changed("verify-existing") {
		c.verifyExisting = *fc.VerifyExisting
	}
	if fc.MatchContainers != nil && !fs.Changed("match-containers") {
		c.matchContainers = *fc.MatchContainers
	}
	if fc.Hash != "" && !fs.Changed("hash") {
		c.hash = fc.Hash
	}
	if fc.Missing != "" && !fs.Changed("missing") {
		c.missing = fc.Missing
	}
	if fc.LogLevel != "" && !fs.Changed("log-level") {
		c.logLevel = fc.LogLevel
	}
	return nil
}

func loadConfigFile(path string) (*fileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &fc, nil
}

// parseSize parses a byte size such as "1GiB" or "500 MB". "-1" and
// "unlimited" disable the limit.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "-1" || strings.EqualFold(s, "unlimited") {
		return -1, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}
	return int64(n), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// resolverOptions converts the configuration into resolver options.
func (c *config) resolverOptions(logger *slog.Logger) ([]collate.Option, error) {
	maxEntrySize, err := parseSize(c.maxEntrySize)
	if err != nil {
		return nil, fmt.Errorf("max-entry-size: %w", err)
	}
	return []collate.Option{
		collate.WithMaxDepth(c.maxDepth),
		collate.WithMaxEntrySize(maxEntrySize),
		collate.WithVerifyExisting(c.verifyExisting),
		collate.WithMatchContainers(c.matchContainers),
		collate.WithLogger(logger),
	}, nil
}
