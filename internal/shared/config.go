package shared

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	HTTPTimeout time.Duration

	MySQLDSN  string
	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	CatalogBackend string // mysql | http
	CatalogBase    string
	CatalogKey     string
	CatalogRPS     int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	UploadsPublic  string
	UploadsRoot    string
	UploadWorkers  int
	MaxUploadBytes int64

	SnapshotDebounce time.Duration
	DraftMaxAge      time.Duration

	RabbitURL      string
	SweepWorkers   int
	PushgatewayURL string
}

// LoadDotEnv reads .env into the process environment when the file exists.
// Real environment variables win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	if err := godotenv.Load(paths...); err != nil {
		log.Debug().Err(err).Msg("no .env loaded")
	}
}

func Load() Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("APP_ENV", "prod")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 60)
	v.SetDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/travel?parseTime=true&charset=utf8mb4,utf8&loc=UTC")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL_SECONDS", 900)
	v.SetDefault("CATALOG_BACKEND", "mysql")
	v.SetDefault("CATALOG_BASE_URL", "")
	v.SetDefault("CATALOG_API_KEY", "")
	v.SetDefault("CATALOG_RPS", 5)
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	v.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	v.SetDefault("MINIO_BUCKET", "travel-media")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("UPLOADS_PUBLIC_BASE", "http://localhost:9000/travel-media")
	v.SetDefault("UPLOADS_ROOT", "uploads")
	v.SetDefault("UPLOAD_CONCURRENCY", 4)
	v.SetDefault("MAX_UPLOAD_MB", 10)
	v.SetDefault("SNAPSHOT_DEBOUNCE_MS", 500)
	v.SetDefault("DRAFT_MAX_AGE_HOURS", 72)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("SWEEP_WORKERS", 8)
	v.SetDefault("PUSHGATEWAY_URL", "")

	c := Config{
		AppEnv:      v.GetString("APP_ENV"),
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		MetricsAddr: v.GetString("METRICS_ADDR"),
		HTTPTimeout: time.Duration(v.GetInt("HTTP_TIMEOUT_SECONDS")) * time.Second,

		MySQLDSN:  v.GetString("MYSQL_DSN"),
		RedisAddr: v.GetString("REDIS_ADDR"),
		RedisPass: v.GetString("REDIS_PASSWORD"),
		RedisDB:   v.GetInt("REDIS_DB"),
		CacheTTL:  time.Duration(v.GetInt("CACHE_TTL_SECONDS")) * time.Second,

		CatalogBackend: strings.ToLower(v.GetString("CATALOG_BACKEND")),
		CatalogBase:    v.GetString("CATALOG_BASE_URL"),
		CatalogKey:     v.GetString("CATALOG_API_KEY"),
		CatalogRPS:     v.GetInt("CATALOG_RPS"),

		MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:    v.GetString("MINIO_BUCKET"),
		MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),
		UploadsPublic:  v.GetString("UPLOADS_PUBLIC_BASE"),
		UploadsRoot:    v.GetString("UPLOADS_ROOT"),
		UploadWorkers:  v.GetInt("UPLOAD_CONCURRENCY"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_MB") << 20,

		SnapshotDebounce: time.Duration(v.GetInt("SNAPSHOT_DEBOUNCE_MS")) * time.Millisecond,
		DraftMaxAge:      time.Duration(v.GetInt("DRAFT_MAX_AGE_HOURS")) * time.Hour,

		RabbitURL:      v.GetString("RABBITMQ_URL"),
		SweepWorkers:   v.GetInt("SWEEP_WORKERS"),
		PushgatewayURL: v.GetString("PUSHGATEWAY_URL"),
	}
	if c.CatalogBackend == "http" && c.CatalogBase == "" {
		log.Warn().Msg("CATALOG_BACKEND=http but CATALOG_BASE_URL is empty")
	}
	if c.RabbitURL == "" {
		log.Warn().Msg("RABBITMQ_URL is empty; catalog events disabled")
	}
	return c
}
