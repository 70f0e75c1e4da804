package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Node configuration
	NodeID    string `yaml:"nodeID"`
	RaftAddr  string `yaml:"raftAddr"`
	RaftDir   string `yaml:"raftDir"`
	HTTPAddr  string `yaml:"httpAddr"`
	Bootstrap bool   `yaml:"bootstrap"`
	JoinAddr  string `yaml:"join"`
	// Peers are the other voters of a bootstrapped cluster, as id=addr
	Peers         []string `yaml:"peers"`
	ClusterSecret string   `yaml:"clusterSecret"`

	// Storage
	DatabaseURL string `yaml:"databaseURL"`
	ArchiveDir  string `yaml:"archiveDir"`

	// Sessions
	SessionSecret string `yaml:"sessionSecret"`
	SessionIssuer string `yaml:"sessionIssuer"`
	SessionCookie string `yaml:"sessionCookie"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`

	// Logging
	LogLevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile"`
}

// Defaults returns the single-node configuration.
func Defaults() Config {
	return Config{
		NodeID:        "node1",
		RaftAddr:      "127.0.0.1:7000",
		RaftDir:       "data",
		HTTPAddr:      ":8080",
		SessionCookie: "session",
		LogLevel:      "info",
	}
}

// Load builds the configuration from, in increasing priority: defaults,
// the YAML file named by -config, PRINTLOG_* environment variables and
// explicitly set flags.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("printlog", flag.ContinueOnError)

	var (
		configPath = fs.String("config", "", "Path to a YAML config file")
		flagged    Config
		peersStr   string
	)
	fs.StringVar(&flagged.NodeID, "id", "", "Node ID")
	fs.StringVar(&flagged.RaftAddr, "raft-addr", "", "Raft transport address")
	fs.StringVar(&flagged.RaftDir, "raft-dir", "", "Raft storage directory")
	fs.StringVar(&flagged.HTTPAddr, "http-addr", "", "HTTP API address")
	fs.BoolVar(&flagged.Bootstrap, "bootstrap", false, "Bootstrap the cluster")
	fs.StringVar(&flagged.JoinAddr, "join", "", "HTTP address of an existing node to join")
	fs.StringVar(&peersStr, "peers", "", "Comma-separated id=addr list of the other voters when bootstrapping")
	fs.StringVar(&flagged.ClusterSecret, "cluster-secret", "", "Shared secret required by the join and leave endpoints")
	fs.StringVar(&flagged.DatabaseURL, "db", "", "Database DSN (SQLite path or Postgres URL)")
	fs.StringVar(&flagged.ArchiveDir, "archive-dir", "", "Directory keeping account exports taken before purges")
	fs.StringVar(&flagged.SessionSecret, "session-secret", "", "HS256 secret shared with the identity provider")
	fs.StringVar(&flagged.SessionIssuer, "session-issuer", "", "Expected session token issuer")
	fs.StringVar(&flagged.SessionCookie, "session-cookie", "", "Session cookie name")
	fs.StringVar(&flagged.RedisAddr, "redis-addr", "", "Redis address for the shared logout list")
	fs.StringVar(&flagged.LogLevel, "log-level", "", "Log level")
	fs.StringVar(&flagged.LogFile, "log-file", "", "Log file (rotated); stderr when empty")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Defaults()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "id":
			cfg.NodeID = flagged.NodeID
		case "raft-addr":
			cfg.RaftAddr = flagged.RaftAddr
		case "raft-dir":
			cfg.RaftDir = flagged.RaftDir
		case "http-addr":
			cfg.HTTPAddr = flagged.HTTPAddr
		case "bootstrap":
			cfg.Bootstrap = flagged.Bootstrap
		case "join":
			cfg.JoinAddr = flagged.JoinAddr
		case "peers":
			cfg.Peers = splitList(peersStr)
		case "cluster-secret":
			cfg.ClusterSecret = flagged.ClusterSecret
		case "db":
			cfg.DatabaseURL = flagged.DatabaseURL
		case "archive-dir":
			cfg.ArchiveDir = flagged.ArchiveDir
		case "session-secret":
			cfg.SessionSecret = flagged.SessionSecret
		case "session-issuer":
			cfg.SessionIssuer = flagged.SessionIssuer
		case "session-cookie":
			cfg.SessionCookie = flagged.SessionCookie
		case "redis-addr":
			cfg.RedisAddr = flagged.RedisAddr
		case "log-level":
			cfg.LogLevel = flagged.LogLevel
		case "log-file":
			cfg.LogFile = flagged.LogFile
		}
	})

	// A node that joins nobody forms its own cluster
	if cfg.JoinAddr == "" {
		cfg.Bootstrap = true
	}
	if cfg.DatabaseURL == "" && cfg.RaftDir != "" {
		cfg.DatabaseURL = filepath.Join(cfg.RaftDir, "printlog.db")
	}
	if cfg.ArchiveDir == "" && cfg.RaftDir != "" {
		cfg.ArchiveDir = filepath.Join(cfg.RaftDir, "purged")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseFlags parses command line flags and returns a Config. It exits the
// process on invalid configuration.
func ParseFlags() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	return cfg
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.NodeID) == "" {
		return errors.New("config: node id is required")
	}
	if strings.TrimSpace(c.RaftAddr) == "" {
		return errors.New("config: raft address is required")
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("config: http address is required")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("config: database url is required")
	}
	if strings.TrimSpace(c.SessionSecret) == "" {
		return errors.New("config: session secret is required (set PRINTLOG_SESSION_SECRET)")
	}
	if c.Bootstrap && c.JoinAddr != "" {
		return errors.New("config: -bootstrap and -join are mutually exclusive")
	}
	if c.JoinAddr != "" && c.ClusterSecret == "" {
		return errors.New("config: joining a cluster requires a cluster secret (set PRINTLOG_CLUSTER_SECRET)")
	}
	for _, peer := range c.Peers {
		id, addr, ok := strings.Cut(peer, "=")
		if !ok || strings.TrimSpace(id) == "" || strings.TrimSpace(addr) == "" {
			return fmt.Errorf("config: peer %q must be id=addr", peer)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"PRINTLOG_NODE_ID":        &cfg.NodeID,
		"PRINTLOG_RAFT_ADDR":      &cfg.RaftAddr,
		"PRINTLOG_RAFT_DIR":       &cfg.RaftDir,
		"PRINTLOG_HTTP_ADDR":      &cfg.HTTPAddr,
		"PRINTLOG_JOIN":           &cfg.JoinAddr,
		"PRINTLOG_CLUSTER_SECRET": &cfg.ClusterSecret,
		"PRINTLOG_DATABASE_URL":   &cfg.DatabaseURL,
		"PRINTLOG_ARCHIVE_DIR":    &cfg.ArchiveDir,
		"PRINTLOG_SESSION_SECRET": &cfg.SessionSecret,
		"PRINTLOG_SESSION_ISSUER": &cfg.SessionIssuer,
		"PRINTLOG_SESSION_COOKIE": &cfg.SessionCookie,
		"PRINTLOG_REDIS_ADDR":     &cfg.RedisAddr,
		"PRINTLOG_REDIS_PASSWORD": &cfg.RedisPassword,
		"PRINTLOG_LOG_LEVEL":      &cfg.LogLevel,
		"PRINTLOG_LOG_FILE":       &cfg.LogFile,
	}
	for key, dst := range str {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("PRINTLOG_PEERS"); v != "" {
		cfg.Peers = splitList(v)
	}
	if v := os.Getenv("PRINTLOG_BOOTSTRAP"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: PRINTLOG_BOOTSTRAP: %w", err)
		}
		cfg.Bootstrap = b
	}
	if v := os.Getenv("PRINTLOG_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PRINTLOG_REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
