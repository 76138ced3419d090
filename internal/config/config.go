package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConf struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type MongoConf struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type StoreConf struct {
	Driver         string    `mapstructure:"driver"` // mongo|memory
	Mongo          MongoConf `mapstructure:"mongodb"`
	TimeoutSeconds int       `mapstructure:"timeout_seconds"`
}

type AuthConf struct {
	BaseURL           string  `mapstructure:"base_url"`
	ServiceName       string  `mapstructure:"service_name"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	JWTSecret         string  `mapstructure:"jwt_secret"`
	PublicKeyPath     string  `mapstructure:"public_key_path"`
	IdentityFile      string  `mapstructure:"identity_file"`
}

type BreakerConf struct {
	MaxFailures uint32 `mapstructure:"max_failures"`
	IntervalSec int    `mapstructure:"interval_seconds"`
	TimeoutSec  int    `mapstructure:"timeout_seconds"`
}

type DiscoveryConf struct {
	ConsulAddr string            `mapstructure:"consul_addr"`
	Services   map[string]string `mapstructure:"services"`
}

type AWSConf struct {
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	Endpoint string `mapstructure:"endpoint"`
}

type S3Conf struct {
	PublicRead bool `mapstructure:"public_read"`
	PresignTTL int  `mapstructure:"presign_ttl_seconds"`
}

type RedisConf struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConf struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MetricsConf struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

type UIConf struct {
	FilterDebounceMs int `mapstructure:"filter_debounce_ms"`
}

type Config struct {
	App       AppConf       `mapstructure:"app"`
	Store     StoreConf     `mapstructure:"store"`
	Auth      AuthConf      `mapstructure:"auth"`
	Breaker   BreakerConf   `mapstructure:"breaker"`
	Discovery DiscoveryConf `mapstructure:"discovery"`
	AWS       AWSConf       `mapstructure:"aws"`
	S3        S3Conf        `mapstructure:"s3"`
	Redis     RedisConf     `mapstructure:"redis"`
	Kafka     KafkaConf     `mapstructure:"kafka"`
	Metrics   MetricsConf   `mapstructure:"metrics"`
	UI        UIConf        `mapstructure:"ui"`

	// derived
	StoreTimeout    time.Duration
	AuthTimeout     time.Duration
	BreakerInterval time.Duration
	BreakerTimeout  time.Duration
	PresignTTL      time.Duration
	FilterDebounce  time.Duration
}

func (c *Config) IsDev() bool { return c.App.Env == "dev" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("store.driver", "mongo")
	v.SetDefault("store.mongodb.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("store.mongodb.database", "dmclient")
	v.SetDefault("store.timeout_seconds", 3)

	v.SetDefault("auth.base_url", "")
	v.SetDefault("auth.service_name", "auth-service")
	v.SetDefault("auth.timeout_seconds", 10)
	v.SetDefault("auth.requests_per_second", 5)
	v.SetDefault("auth.burst", 5)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("auth.identity_file", ".dmclient/identity.yaml")

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.interval_seconds", 60)
	v.SetDefault("breaker.timeout_seconds", 30)

	v.SetDefault("discovery.consul_addr", "")
	v.SetDefault("discovery.services", map[string]string{})

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.bucket", "")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("s3.public_read", false)
	v.SetDefault("s3.presign_ttl_seconds", 600)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "dm.events")

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "dmclient")

	v.SetDefault("ui.filter_debounce_ms", 300)
}

// Load reads .env (if present), then the optional YAML file at path, then
// DMCLIENT_* environment overrides such as DMCLIENT_STORE_DRIVER.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("dmclient")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.derive()
	return &cfg, nil
}

func (c *Config) derive() {
	if c.Store.TimeoutSeconds <= 0 {
		c.Store.TimeoutSeconds = 3
	}
	if c.Auth.TimeoutSeconds <= 0 {
		c.Auth.TimeoutSeconds = 10
	}
	if c.Breaker.MaxFailures == 0 {
		c.Breaker.MaxFailures = 5
	}
	if c.S3.PresignTTL <= 0 {
		c.S3.PresignTTL = 600
	}
	if c.UI.FilterDebounceMs <= 0 {
		c.UI.FilterDebounceMs = 300
	}
	c.StoreTimeout = time.Duration(c.Store.TimeoutSeconds) * time.Second
	c.AuthTimeout = time.Duration(c.Auth.TimeoutSeconds) * time.Second
	c.BreakerInterval = time.Duration(c.Breaker.IntervalSec) * time.Second
	c.BreakerTimeout = time.Duration(c.Breaker.TimeoutSec) * time.Second
	c.PresignTTL = time.Duration(c.S3.PresignTTL) * time.Second
	c.FilterDebounce = time.Duration(c.UI.FilterDebounceMs) * time.Millisecond
}
