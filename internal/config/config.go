package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	Scylla      ScyllaConfig      `mapstructure:"scylla"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Rules       RulesConfig       `mapstructure:"rules"`
	Compliance  ComplianceConfig  `mapstructure:"compliance"`
	Slots       SlotsConfig       `mapstructure:"slots"`
	Rescheduler ReschedulerConfig `mapstructure:"rescheduler"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	HealthQuery     string        `mapstructure:"health_query"`
}

type ScyllaConfig struct {
	Hosts             []string      `mapstructure:"hosts"`
	Port              int           `mapstructure:"port"`
	Keyspace          string        `mapstructure:"keyspace"`
	Consistency       string        `mapstructure:"consistency"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DisableInitSchema bool          `mapstructure:"disable_init_schema"`
}

type KafkaConfig struct {
	Brokers           []string      `mapstructure:"brokers"`
	ClientID          string        `mapstructure:"client_id"`
	DecisionTopic     string        `mapstructure:"decision_topic"`
	RescheduleTopic   string        `mapstructure:"reschedule_topic"`
	ReleaseTopic      string        `mapstructure:"release_topic"`
	DeadLetterTopic   string        `mapstructure:"dead_letter_topic"`
	ConsumerGroupID   string        `mapstructure:"consumer_group_id"`
	CommitInterval    time.Duration `mapstructure:"commit_interval"`
	Partitions        int           `mapstructure:"partitions"`
	ReplicationFactor int           `mapstructure:"replication_factor"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

type TelemetryConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ServiceName     string        `mapstructure:"service_name"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	TracingEnabled  bool          `mapstructure:"tracing_enabled"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RulesConfig controls the execution rules cache. Backend is "memory" or "redis".
type RulesConfig struct {
	CacheBackend   string        `mapstructure:"cache_backend"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	CacheKeyPrefix string        `mapstructure:"cache_key_prefix"`
}

type ComplianceConfig struct {
	DefaultTimezone string        `mapstructure:"default_timezone"`
	DecisionTTL     time.Duration `mapstructure:"decision_ttl"`
}

type SlotsConfig struct {
	MaxRangeDays int `mapstructure:"max_range_days"`
}

// ReschedulerConfig bounds how the reschedule worker waits. A message whose
// release time is further away than MaxWait is re-enqueued after MaxWait.
// Transient failures are retried in place with backoff between RetryInitial
// and RetryMax.
type ReschedulerConfig struct {
	MaxWait      time.Duration `mapstructure:"max_wait"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryInitial time.Duration `mapstructure:"retry_initial"`
	RetryMax     time.Duration `mapstructure:"retry_max"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("COMPLIANCE")
	v.SetEnvKeyReplacer(NewEnvReplacer())
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("http.port", 8080)
	v.SetDefault("rules.cache_backend", "memory")
	v.SetDefault("rules.cache_ttl", 5*time.Minute)
	v.SetDefault("rules.cache_key_prefix", "compliance:rules:")
	v.SetDefault("compliance.default_timezone", "America/New_York")
	v.SetDefault("slots.max_range_days", 62)
	v.SetDefault("rescheduler.max_wait", 15*time.Minute)
	v.SetDefault("rescheduler.max_attempts", 10)
	v.SetDefault("rescheduler.retry_initial", 500*time.Millisecond)
	v.SetDefault("rescheduler.retry_max", 30*time.Second)
	v.SetDefault("kafka.partitions", 12)
	v.SetDefault("kafka.replication_factor", 1)
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}
