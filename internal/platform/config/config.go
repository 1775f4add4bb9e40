package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	platformstrings "senderguard/pkg/platform/strings"
)

// Config holds all configuration for the service.
type Config struct {
	Server    Server
	Postgres  PostgresConfig
	Redis     RedisConfig
	Mongo     MongoConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	Blocklist BlocklistConfig
	Log       LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	JWTSigningKey   string
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// PostgresConfig configures the relational store for entries, traffic and audit.
// An empty DSN selects the in-memory stores.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the shared rate-limit counter store.
// An empty URL selects the in-memory counter store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MongoConfig optionally points the traffic reader at a MongoDB collection.
type MongoConfig struct {
	URI               string
	Database          string
	TrafficCollection string
	ConnectTimeout    time.Duration
}

// KafkaConfig optionally mirrors audit records to a topic.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
	Partitions int32
	Replicas   int16
}

// RateLimitConfig holds the store timeout and the named policies.
type RateLimitConfig struct {
	Disabled     bool
	StoreTimeout time.Duration
	Policies     map[string]PolicyConfig
}

// PolicyConfig is one named fixed window.
type PolicyConfig struct {
	MaxRequests   int
	WindowSeconds int
}

// BlocklistConfig tunes the audited mutation service and the matching engine.
type BlocklistConfig struct {
	AuditMode        string
	StoreTimeout     time.Duration
	MatchConcurrency int
	MatchInterval    time.Duration
	AllowedRoles     []string
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultPolicies are the windows applied when no override is configured.
var DefaultPolicies = map[string]PolicyConfig{
	"auth":   {MaxRequests: 5, WindowSeconds: 900},
	"verify": {MaxRequests: 10, WindowSeconds: 900},
	"api":    {MaxRequests: 100, WindowSeconds: 60},
	"upload": {MaxRequests: 10, WindowSeconds: 600},
	"email":  {MaxRequests: 3, WindowSeconds: 3600},
	"cron":   {MaxRequests: 1, WindowSeconds: 60},
}

const envPrefix = "SENDERGUARD"

// Load reads an optional .env file, an optional config.yaml and SENDERGUARD_*
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Kafka.Brokers = platformstrings.SplitList(cfg.Kafka.Brokers)
	cfg.Blocklist.AllowedRoles = platformstrings.SplitList(cfg.Blocklist.AllowedRoles)
	if cfg.RateLimit.Policies == nil {
		cfg.RateLimit.Policies = map[string]PolicyConfig{}
	}
	for name, p := range DefaultPolicies {
		if _, ok := cfg.RateLimit.Policies[name]; !ok {
			cfg.RateLimit.Policies[name] = p
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Blocklist.AuditMode {
	case "sequential", "transactional":
	default:
		return fmt.Errorf("blocklist.auditmode must be sequential or transactional, got %q", c.Blocklist.AuditMode)
	}
	if c.Blocklist.AuditMode == "transactional" && c.Postgres.DSN == "" {
		return errors.New("blocklist.auditmode=transactional requires postgres.dsn")
	}
	if c.Blocklist.MatchConcurrency <= 0 {
		return errors.New("blocklist.matchconcurrency must be positive")
	}
	for name, p := range c.RateLimit.Policies {
		if p.MaxRequests <= 0 || p.WindowSeconds <= 0 {
			return fmt.Errorf("ratelimit policy %q: maxrequests and windowseconds must be positive", name)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.writetimeout", 30*time.Second)
	v.SetDefault("server.shutdowntimeout", 10*time.Second)
	// Development default; override SENDERGUARD_SERVER_JWTSIGNINGKEY in production.
	v.SetDefault("server.jwtsigningkey", "dev-secret-key-change-in-production")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopenconns", 10)
	v.SetDefault("postgres.maxidleconns", 5)
	v.SetDefault("postgres.connmaxlifetime", 30*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.poolsize", 10)
	v.SetDefault("redis.minidleconns", 2)
	v.SetDefault("redis.dialtimeout", 2*time.Second)
	v.SetDefault("redis.readtimeout", 500*time.Millisecond)
	v.SetDefault("redis.writetimeout", 500*time.Millisecond)

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "senderguard")
	v.SetDefault("mongo.trafficcollection", "sender_traffic")
	v.SetDefault("mongo.connecttimeout", 5*time.Second)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.audittopic", "senderguard.audit")
	v.SetDefault("kafka.partitions", 1)
	v.SetDefault("kafka.replicas", 1)

	v.SetDefault("ratelimit.disabled", false)
	v.SetDefault("ratelimit.storetimeout", 250*time.Millisecond)

	v.SetDefault("blocklist.auditmode", "sequential")
	v.SetDefault("blocklist.storetimeout", 5*time.Second)
	v.SetDefault("blocklist.matchconcurrency", 8)
	v.SetDefault("blocklist.matchinterval", time.Hour)
	v.SetDefault("blocklist.allowedroles", []string{"ADMIN", "MANAGER"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
