package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	// BotBaseURL: HTTP-эндпоинт бота (ответы оператора, прокси фото). Значение
	// из окружения: начальное; оператор может сменить его через админку.
	BotBaseURL string
	// AutoConnect: подключаться к БД при старте сервера.
	AutoConnect bool
	// RealtimeChannel: канал LISTEN/NOTIFY, в который пишет триггер complaints.
	RealtimeChannel string

	CatalogPath  string
	MapStaticURL string

	// RedisURL: хранилище настроек дашборда; пусто: настройки в памяти процесса.
	RedisURL string

	Kafka struct {
		Brokers     string
		TopicTicket string
	}

	Minio struct {
		Endpoint  string
		AccessKey string
		SecretKey string
		Bucket    string
		UseSSL    bool
		PublicURL string
	}

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:         getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:        firstEnv("APP_PORT", "HTTP_PORT", "8098"),
		AppEnv:          getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		BotBaseURL:      getEnv("BOT_BASE_URL", ""),
		AutoConnect:     getBool("AUTO_CONNECT", true),
		RealtimeChannel: getEnv("REALTIME_CHANNEL", "complaints_changes"),
		CatalogPath:     getEnv("CATALOG_PATH", ""),
		MapStaticURL:    getEnv("MAP_STATIC_URL", "https://static-maps.yandex.ru/1.x/"),
		RedisURL:        getEnv("REDIS_URL", ""),
	}
	cfg.Kafka.Brokers = getEnv("KAFKA_BROKERS", "")
	cfg.Kafka.TopicTicket = getEnv("KAFKA_TOPIC_TICKET", "triage.tickets")

	cfg.Minio.Endpoint = getEnv("MINIO_ENDPOINT", "")
	cfg.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", "")
	cfg.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", "")
	cfg.Minio.Bucket = getEnv("MINIO_BUCKET", "replies")
	cfg.Minio.UseSSL = getBool("MINIO_USE_SSL", false)
	cfg.Minio.PublicURL = getEnv("MINIO_PUBLIC_URL", "")

	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "triage")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DB.Host == "" || c.DB.Database == "" {
		return errors.New("config: DB_HOST and DB_DATABASE are required")
	}
	if c.AppEnv == "production" && c.DB.Password == "" {
		return errors.New("config: in production DB_PASSWORD is required")
	}
	if c.RealtimeChannel == "" {
		return errors.New("config: REALTIME_CHANNEL must not be empty")
	}
	if c.Minio.Endpoint != "" && (c.Minio.AccessKey == "" || c.Minio.SecretKey == "") {
		return errors.New("config: MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
