package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RiskProfile overrides one built-in policy's numbers from YAML.
type RiskProfile struct {
	ATRMultSL       float64 `yaml:"atr_mult_sl"`
	ATRMultTP       float64 `yaml:"atr_mult_tp"`
	MinNotional     float64 `yaml:"min_notional"`
	MaxNotional     float64 `yaml:"max_notional"`
	DefaultNotional float64 `yaml:"default_notional"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Trading struct {
		DryRun bool `yaml:"dry_run"`
	} `yaml:"trading"`
	State struct {
		Backend string `yaml:"backend"` // memory | redis
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"state"`
	Audit struct {
		Backend string `yaml:"backend"` // kafka | clickhouse
	} `yaml:"audit"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		SignalsTopic string   `yaml:"signals_topic"` // inbound candidates
		AuditTopic   string   `yaml:"audit_topic"`   // decision events
		OpsTopic     string   `yaml:"ops_topic"`     // aggregated error logs
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Feed struct {
		Enabled        bool          `yaml:"enabled"`
		Token          string        `yaml:"token"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Channels       []string      `yaml:"channels"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
	Scorer struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"scorer"`
	Market struct {
		URL          string        `yaml:"url"`
		Timeout      time.Duration `yaml:"timeout"`
		CacheTTL     time.Duration `yaml:"cache_ttl"`
		CacheBackend string        `yaml:"cache_backend"` // memory | redis | layered
	} `yaml:"market"`
	Executor struct {
		Mode    string        `yaml:"mode"` // paper | http
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"executor"`
	Risk struct {
		Initial  string                 `yaml:"initial"`
		Profiles map[string]RiskProfile `yaml:"profiles"`
	} `yaml:"risk"`
	Guard struct {
		Enabled             bool     `yaml:"enabled"`
		ConfidenceThreshold float64  `yaml:"confidence_threshold"`
		MaxTradeSize        float64  `yaml:"max_trade_size"`
		MaxDailyLoss        float64  `yaml:"max_daily_loss"`
		CooldownMinutes     int      `yaml:"cooldown_minutes"`
		LatencyBudgetMS     int64    `yaml:"latency_budget_ms"`
		SymbolAllowlist     []string `yaml:"symbol_allowlist"`
		GlobalRatePerMin    float64  `yaml:"global_rate_per_min"`
		GlobalBurst         float64  `yaml:"global_burst"`
		SymbolRatePerMin    float64  `yaml:"symbol_rate_per_min"`
		SymbolBurst         float64  `yaml:"symbol_burst"`
	} `yaml:"guard"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FEED_TOKEN"); v != "" {
		c.Feed.Token = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("STATE_BACKEND"); v != "" {
		c.State.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.State.Redis.Addr = v
	}
	if v := os.Getenv("AUDIT_BACKEND"); v != "" {
		c.Audit.Backend = v
	}
	if v := os.Getenv("DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Trading.DryRun = b
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.State.Backend {
	case "memory":
	case "redis":
		if c.State.Redis.Addr == "" {
			return fmt.Errorf("state.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("state.backend must be 'memory' or 'redis', got '%s'", c.State.Backend)
	}
	switch c.Audit.Backend {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty for the kafka audit backend")
		}
		if c.Kafka.AuditTopic == "" {
			return fmt.Errorf("kafka.audit_topic is required for the kafka audit backend")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for the clickhouse audit backend")
		}
	default:
		return fmt.Errorf("audit.backend must be 'kafka' or 'clickhouse', got '%s'", c.Audit.Backend)
	}
	switch c.Executor.Mode {
	case "paper":
	case "http":
		if c.Executor.URL == "" {
			return fmt.Errorf("executor.url is required for the http executor")
		}
	default:
		return fmt.Errorf("executor.mode must be 'paper' or 'http', got '%s'", c.Executor.Mode)
	}
	switch c.Market.CacheBackend {
	case "", "memory":
	case "redis", "layered":
		// The quote cache shares the state store's Redis instance.
		if c.State.Redis.Addr == "" {
			return fmt.Errorf("state.redis.addr is required for the '%s' market cache", c.Market.CacheBackend)
		}
	default:
		return fmt.Errorf("market.cache_backend must be 'memory', 'redis' or 'layered', got '%s'", c.Market.CacheBackend)
	}
	if c.Kafka.Consumer.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when the consumer is enabled")
		}
		if c.Kafka.SignalsTopic == "" {
			return fmt.Errorf("kafka.signals_topic is required when the consumer is enabled")
		}
	}
	if c.Feed.Enabled && c.Feed.WebSocketURL == "" {
		return fmt.Errorf("feed.websocket_url is required when the feed is enabled")
	}
	if c.Risk.Initial == "" {
		return fmt.Errorf("risk.initial is required")
	}
	return nil
}
