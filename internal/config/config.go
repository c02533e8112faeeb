package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию сервиса.
type Config struct {
	Env         string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	ServerPort  string `envconfig:"SERVER_PORT" default:"8080"`

	// CORS
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`

	// AI
	AIClientType  string        `envconfig:"AI_CLIENT_TYPE" default:"gemini"` // openai, ollama, gemini
	AIBaseURL     string        `envconfig:"AI_BASE_URL" default:""`
	AIModel       string        `envconfig:"AI_MODEL" default:"gemini-2.5-flash"`
	AITemperature float64       `envconfig:"AI_TEMPERATURE" default:"0.9"`
	AIMaxTokens   int           `envconfig:"AI_MAX_TOKENS" default:"8000"`
	AITimeout     time.Duration `envconfig:"AI_TIMEOUT" default:"5m"`
	// Секрет без envconfig тега
	AIAPIKey string

	// Генерация глав
	ChapterTimeout  time.Duration `envconfig:"CHAPTER_TIMEOUT" default:"180s"`
	OutlineTimeout  time.Duration `envconfig:"OUTLINE_TIMEOUT" default:"180s"`
	MaxActiveTasks  int           `envconfig:"MAX_ACTIVE_TASKS" default:"20"`
	TaskRetention   time.Duration `envconfig:"TASK_RETENTION" default:"1h"`
	CategoriesFile  string        `envconfig:"CATEGORIES_FILE" default:"configs/categories.yaml"`
	ErrorLogEntries int           `envconfig:"ERROR_LOG_ENTRIES" default:"10"`

	// Хранилище: memory, redis, postgres
	StoreBackend string        `envconfig:"STORE_BACKEND" default:"memory"`
	StoreTTL     time.Duration `envconfig:"STORE_TTL" default:"720h"`

	// Redis
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	// Секрет без envconfig тега
	RedisPassword string

	// PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"chapters"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_IDLE_TIMEOUT" default:"5m"`
	DBMigrate     bool          `envconfig:"DB_MIGRATE" default:"true"`
	// Секрет без envconfig тега
	DBPassword string

	// RabbitMQ, пустой URL отключает публикацию событий
	RabbitMQURL       string `envconfig:"RABBITMQ_URL" default:""`
	ChapterEventQueue string `envconfig:"CHAPTER_EVENT_QUEUE" default:"chapter_events"`
}

// GetAllowedOrigins разбивает CORSAllowedOrigins на список.
func (c *Config) GetAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(c.CORSAllowedOrigins, " ", ""), ",")
}

// PostgresDSN собирает строку подключения к PostgreSQL.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	switch strings.ToLower(c.AIClientType) {
	case "openai", "ollama", "gemini":
	default:
		return fmt.Errorf("unknown AI_CLIENT_TYPE %q", c.AIClientType)
	}
	switch strings.ToLower(c.StoreBackend) {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.ChapterTimeout <= 0 {
		return fmt.Errorf("CHAPTER_TIMEOUT must be positive, got %s", c.ChapterTimeout)
	}
	if c.AIClientType != "ollama" && c.AIAPIKey == "" {
		return fmt.Errorf("AI API key is required for client type %q", c.AIClientType)
	}
	return nil
}

// LoadConfig загружает конфигурацию из .env, переменных окружения и секретов.
func LoadConfig(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if _, err := os.Stat(envFilePath); err == nil {
			if err := godotenv.Load(envFilePath); err != nil {
				log.Printf("Warning: Could not load %s file: %v", envFilePath, err)
			} else {
				log.Printf("Loaded configuration from %s", envFilePath)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("Warning: Error checking %s file: %v", envFilePath, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env vars: %w", err)
	}

	// Секреты необязательны для ollama и memory, поэтому ошибки только логируем
	cfg.AIAPIKey = readSecretOrEnv("ai_api_key", "AI_API_KEY")
	cfg.DBPassword = readSecretOrEnv("db_password", "DB_PASSWORD")
	cfg.RedisPassword = readSecretOrEnv("redis_password", "REDIS_PASSWORD")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Println("Configuration loaded successfully.")
	return &cfg, nil
}

func readSecretOrEnv(secretName, envName string) string {
	secret, err := ReadSecret(secretName)
	if err == nil {
		return secret
	}
	if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
		return v
	}
	log.Printf("Optional secret '%s' not found: %v", secretName, err)
	return ""
}
