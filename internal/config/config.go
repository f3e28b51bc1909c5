package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/weiawesome/wes-match-live/internal/conversation"
	pkgconfig "github.com/weiawesome/wes-match-live/pkg/config"
	pkglog "github.com/weiawesome/wes-match-live/pkg/log"
)

type Config struct {
	Server       ServerConfig
	Auth         AuthConfig
	WebSocket    WebSocketConfig
	Presence     PresenceConfig
	Delivery     DeliveryConfig
	Conversation conversation.Config
	Redis        RedisConfig
	Kafka        KafkaConfig
	Log          pkglog.Config
}

type ServerConfig struct {
	Host       string
	Port       int
	InstanceID string `mapstructure:"instance_id"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	Issuer        string        `mapstructure:"issuer"`
	TokenDuration time.Duration `mapstructure:"token_duration"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type PresenceConfig struct {
	BroadcastDebounce    time.Duration `mapstructure:"broadcast_debounce"`
	OfflineQueueCapacity int           `mapstructure:"offline_queue_capacity"`
	HistoryReplayLimit   int           `mapstructure:"history_replay_limit"`
}

type DeliveryConfig struct {
	MaxContentLength int `mapstructure:"max_content_length"`
}

type RedisConfig struct {
	Enabled       bool
	Address       string
	Password      string
	DB            int
	LastSeenKey   string `mapstructure:"last_seen_key"`
	PubSubChannel string `mapstructure:"pub_sub_channel"`
}

type KafkaConfig struct {
	Enabled bool
	Brokers string
	Topic   string
	GroupID string `mapstructure:"group_id"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}
	setDefaults(v)
	bindEnv(v)
	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.instance_id", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.token_duration", "24h")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("presence.broadcast_debounce", "500ms")
	v.SetDefault("presence.offline_queue_capacity", 50)
	v.SetDefault("presence.history_replay_limit", 50)
	v.SetDefault("delivery.max_content_length", 4000)
	v.SetDefault("conversation.driver", conversation.DriverMemory)
	v.SetDefault("conversation.database.driver", "mysql")
	v.SetDefault("conversation.database.host", "localhost")
	v.SetDefault("conversation.database.port", 3306)
	v.SetDefault("conversation.database.user", "root")
	v.SetDefault("conversation.database.password", "")
	v.SetDefault("conversation.database.db_name", "matrimony")
	v.SetDefault("conversation.database.ssl_mode", "disable")
	v.SetDefault("conversation.database.file_path", "")
	v.SetDefault("conversation.database.max_idle_conns", 5)
	v.SetDefault("conversation.database.max_open_conns", 20)
	v.SetDefault("conversation.database.conn_max_lifetime", 30)
	v.SetDefault("conversation.database.log_level", "warn")
	v.SetDefault("conversation.cassandra.hosts", []string{"localhost"})
	v.SetDefault("conversation.cassandra.keyspace", "match_chat")
	v.SetDefault("conversation.cassandra.consistency", "LOCAL_QUORUM")
	v.SetDefault("conversation.cassandra.connect_timeout", "5s")
	v.SetDefault("conversation.cassandra.timeout", "2s")
	v.SetDefault("conversation.cassandra.num_conns", 2)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.last_seen_key", "presence:last_seen")
	v.SetDefault("redis.pub_sub_channel", "presence:user_updates")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "relationship-notifications")
	v.SetDefault("kafka.group_id", "match-live")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "match-live")
}

// Override from environment
func bindEnv(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.instance_id", "INSTANCE_ID")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.issuer", "JWT_ISSUER")
	v.BindEnv("conversation.driver", "CONVERSATION_DRIVER")
	v.BindEnv("conversation.database.driver", "DB_DRIVER")
	v.BindEnv("conversation.database.host", "DB_HOST")
	v.BindEnv("conversation.database.port", "DB_PORT")
	v.BindEnv("conversation.database.user", "DB_USER")
	v.BindEnv("conversation.database.password", "DB_PASSWORD")
	v.BindEnv("conversation.database.db_name", "DB_NAME")
	v.BindEnv("conversation.cassandra.hosts", "CASSANDRA_HOSTS")
	v.BindEnv("conversation.cassandra.keyspace", "CASSANDRA_KEYSPACE")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("kafka.group_id", "KAFKA_GROUP_ID")
	v.BindEnv("log.level", "LOG_LEVEL")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Auth.TokenDuration = pkgconfig.Duration(v, "auth.token_duration", 24*time.Hour)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Presence.BroadcastDebounce = pkgconfig.Duration(v, "presence.broadcast_debounce", 500*time.Millisecond)
	cfg.Conversation.Cassandra.ConnectTimeout = pkgconfig.Duration(v, "conversation.cassandra.connect_timeout", 5*time.Second)
	cfg.Conversation.Cassandra.Timeout = pkgconfig.Duration(v, "conversation.cassandra.timeout", 2*time.Second)

	// CASSANDRA_HOSTS arrives as a comma separated string.
	if hosts := v.GetString("conversation.cassandra.hosts"); strings.Contains(hosts, ",") {
		cfg.Conversation.Cassandra.Hosts = strings.Split(hosts, ",")
	}

	return &cfg, nil
}
