package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Delivery   DeliveryConfig   `mapstructure:"delivery"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type StorageConfig struct {
	SupabaseURL     string `mapstructure:"supabase_url"`
	ServiceRoleKey  string `mapstructure:"service_role_key"`
	Bucket          string `mapstructure:"bucket"`
	RawPrefix       string `mapstructure:"raw_prefix"`
	ProcessedPrefix string `mapstructure:"processed_prefix"`
	LocalDir        string `mapstructure:"local_dir"`
}

type EnrichmentConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	BatchSize   int           `mapstructure:"batch_size"`
	MaxCalls    int           `mapstructure:"max_calls"`
	Window      time.Duration `mapstructure:"window"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryBase   time.Duration `mapstructure:"retry_base"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

type DeliveryConfig struct {
	Mode       string        `mapstructure:"mode"` // "http" or "socket"
	UploadURL  string        `mapstructure:"upload_url"`
	SocketAddr string        `mapstructure:"socket_addr"`
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryBase  time.Duration `mapstructure:"retry_base"`
	PendingTTL time.Duration `mapstructure:"pending_ttl"`
	SweepEvery time.Duration `mapstructure:"sweep_every"`
}

type PipelineConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	RetentionCap int           `mapstructure:"retention_cap"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Load .env file into System Environment (if it exists)
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	// 2. Set Defaults
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "delivery_events")

	v.SetDefault("storage.supabase_url", "http://localhost:54321")
	v.SetDefault("storage.service_role_key", "")
	v.SetDefault("storage.bucket", "tp3-csv")
	v.SetDefault("storage.raw_prefix", "raw")
	v.SetDefault("storage.processed_prefix", "processed")
	v.SetDefault("storage.local_dir", "./data")

	v.SetDefault("enrichment.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("enrichment.batch_size", 20)
	v.SetDefault("enrichment.max_calls", 5)
	v.SetDefault("enrichment.window", time.Second)
	v.SetDefault("enrichment.max_retries", 3)
	v.SetDefault("enrichment.retry_base", time.Second)
	v.SetDefault("enrichment.http_timeout", 15*time.Second)

	v.SetDefault("delivery.mode", "http")
	v.SetDefault("delivery.upload_url", "http://localhost:5000/api/upload")
	v.SetDefault("delivery.socket_addr", "localhost:7000")
	v.SetDefault("delivery.webhook_url", "http://localhost:8080/api/webhook")
	v.SetDefault("delivery.timeout", 30*time.Second)
	v.SetDefault("delivery.max_retries", 3)
	v.SetDefault("delivery.retry_base", time.Second)
	v.SetDefault("delivery.pending_ttl", time.Hour)
	v.SetDefault("delivery.sweep_every", 30*time.Minute)

	v.SetDefault("pipeline.poll_interval", 60*time.Second)
	v.SetDefault("pipeline.retention_cap", 10)

	// 3. Configure Viper to read Environment Variables
	// This maps dot-notation to underscores (e.g., "delivery.mode" -> "DELIVERY_MODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Explicitly Bind Env Vars to Keys
	// This is crucial for Viper to map flat Env Vars (APP_PORT) to nested structs (App.Port)
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.brokers", "kafka.topic")
	bindEnv(v, "storage.supabase_url", "storage.service_role_key", "storage.bucket",
		"storage.raw_prefix", "storage.processed_prefix", "storage.local_dir")
	bindEnv(v, "enrichment.base_url", "enrichment.batch_size", "enrichment.max_calls",
		"enrichment.window", "enrichment.max_retries", "enrichment.retry_base",
		"enrichment.http_timeout")
	bindEnv(v, "delivery.mode", "delivery.upload_url", "delivery.socket_addr",
		"delivery.webhook_url", "delivery.timeout", "delivery.max_retries",
		"delivery.retry_base", "delivery.pending_ttl", "delivery.sweep_every")
	bindEnv(v, "pipeline.poll_interval", "pipeline.retention_cap")

	// 5. Unmarshal into Struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	// 6. Basic Validation
	if cfg.Delivery.Mode != "http" && cfg.Delivery.Mode != "socket" {
		return nil, fmt.Errorf("delivery mode must be \"http\" or \"socket\", got %q", cfg.Delivery.Mode)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if cfg.Pipeline.RetentionCap < 1 {
		return nil, fmt.Errorf("retention cap must be at least 1")
	}

	return &cfg, nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
