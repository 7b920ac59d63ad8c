package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Scylla   ScyllaConfig   `yaml:"scylla"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
	Sync     SyncConfig     `yaml:"sync"`
	Blob     BlobConfig     `yaml:"blob"`
	Logging  LoggingConfig  `yaml:"logging"`
	Backends BackendsConfig `yaml:"backends"`
}

type ServerConfig struct {
	APIAddr     string `yaml:"api_addr"`
	GatewayAddr string `yaml:"gateway_addr"`
	NodeID      int64  `yaml:"node_id"`
}

type ScyllaConfig struct {
	Hosts             []string `yaml:"hosts"`
	Keyspace          string   `yaml:"keyspace"`
	ReplicationFactor int      `yaml:"replication_factor"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type SyncConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	TypingTTL    time.Duration `yaml:"typing_ttl"`
	OnlineTTL    time.Duration `yaml:"online_ttl"`
}

type BlobConfig struct {
	Dir string `yaml:"dir"`
	// MaxSize accepts human sizes such as "10 MB".
	MaxSize string `yaml:"max_size"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type BackendsConfig struct {
	Store    string `yaml:"store"`
	Presence string `yaml:"presence"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{APIAddr: ":8081", GatewayAddr: ":8080", NodeID: 1},
		Scylla: ScyllaConfig{Hosts: []string{"localhost:9042"}, Keyspace: "support", ReplicationFactor: 1},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:19092"},
			Topic:   "support-events",
			GroupID: "support-messaging",
		},
		Auth: AuthConfig{TokenTTL: 24 * time.Hour},
		Sync: SyncConfig{
			PollInterval: 3 * time.Second,
			TypingTTL:    5 * time.Second,
			OnlineTTL:    15 * time.Second,
		},
		Blob:     BlobConfig{Dir: "./data/blobs", MaxSize: "10 MB"},
		Logging:  LoggingConfig{Level: "info"},
		Backends: BackendsConfig{Store: "memory", Presence: "memory"},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order. A .env file in the working directory is loaded
// first if present.
func Load(path string) (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	if path == "" {
		path = os.Getenv("SUPPORTDESK_CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.APIAddr, "API_ADDR")
	setString(&cfg.Server.GatewayAddr, "GATEWAY_ADDR")
	setList(&cfg.Scylla.Hosts, "SCYLLA_HOSTS")
	setString(&cfg.Scylla.Keyspace, "SCYLLA_KEYSPACE")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setList(&cfg.Kafka.Brokers, "KAFKA_BROKERS")
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")
	setString(&cfg.Kafka.GroupID, "KAFKA_GROUP_ID")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Blob.Dir, "BLOB_DIR")
	setString(&cfg.Blob.MaxSize, "ATTACHMENT_MAX_SIZE")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.File, "LOG_FILE")
	setString(&cfg.Backends.Store, "STORE_BACKEND")
	setString(&cfg.Backends.Presence, "PRESENCE_BACKEND")

	if v := os.Getenv("NODE_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("NODE_ID: %w", err)
		}
		cfg.Server.NodeID = id
	}
	for key, dst := range map[string]*time.Duration{
		"POLL_INTERVAL": &cfg.Sync.PollInterval,
		"TYPING_TTL":    &cfg.Sync.TypingTTL,
		"ONLINE_TTL":    &cfg.Sync.OnlineTTL,
		"TOKEN_TTL":     &cfg.Auth.TokenTTL,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.Split(v, ",")
	}
}

// AttachmentMaxSize returns Blob.MaxSize in bytes.
func (c Config) AttachmentMaxSize() (int64, error) {
	n, err := humanize.ParseBytes(c.Blob.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("blob.max_size: %w", err)
	}
	return int64(n), nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret (JWT_SECRET) is required"))
	}
	if c.Sync.PollInterval <= 0 || c.Sync.TypingTTL <= 0 || c.Sync.OnlineTTL <= 0 {
		errs = append(errs, errors.New("sync intervals and TTLs must be positive"))
	}
	if c.Backends.Store != "memory" && c.Backends.Store != "scylla" {
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Backends.Store))
	}
	if c.Backends.Presence != "memory" && c.Backends.Presence != "redis" {
		errs = append(errs, fmt.Errorf("unknown presence backend %q", c.Backends.Presence))
	}
	if _, err := c.AttachmentMaxSize(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
