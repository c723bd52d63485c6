package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chatmesh/server/pkg/log"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Auth      AuthConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Push      PushConfig
	Log       log.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type AuthConfig struct {
	Secret string
	Issuer string
}

type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	CachePrefix string        `mapstructure:"cache_prefix"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
}

type PushConfig struct {
	Enabled         bool
	Subscriber      string // contact mailto for VAPID
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	TTL             int
}

// Load reads configuration from ./config/config.yaml and environment
// variables, with defaults for every key.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file: rely on defaults and env vars.
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("websocket.ping_interval", "25s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "chatmesh")
	v.SetDefault("mongo.timeout", "10s")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_prefix", "chatmesh:user")
	v.SetDefault("redis.cache_ttl", "5m")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "chat-messages")
	v.SetDefault("kafka.partitions", 8)
	v.SetDefault("push.enabled", false)
	v.SetDefault("push.subscriber", "")
	v.SetDefault("push.vapid_public_key", "")
	v.SetDefault("push.vapid_private_key", "")
	v.SetDefault("push.ttl", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "chatmesh")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.secret", "JWT_SECRET")
	v.BindEnv("mongo.uri", "MONGO_URI")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("push.vapid_public_key", "VAPID_PUBLIC_KEY")
	v.BindEnv("push.vapid_private_key", "VAPID_PRIVATE_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth.secret (JWT_SECRET) is required")
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 25*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Mongo.Timeout = parseDuration(v, "mongo.timeout", 10*time.Second)
	cfg.Redis.CacheTTL = parseDuration(v, "redis.cache_ttl", 5*time.Minute)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
