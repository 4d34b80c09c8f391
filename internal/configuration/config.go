package configuration

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env    string
	Server ServerConfig
	Redis  RedisConfig
	MinIO  MinIOConfig
	Share  ShareConfig
	Log    LogConfig

	NATSURL   string
	ClamAVURL string
}

type ServerConfig struct {
	Port          string
	BaseURL       string
	AllowedOrigin string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
}

type ShareConfig struct {
	MaxFileSize    int64
	FileTTL        time.Duration
	TokenTTL       time.Duration
	UploadURLTTL   time.Duration
	DownloadURLTTL time.Duration
	ThrottleWindow time.Duration
	ThrottleMax    int64
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, with a .env file as a
// development convenience.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("ALLOWED_ORIGIN", "*")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	v.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	v.SetDefault("MINIO_BUCKET", "shares")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("CLAMAV_URL", "tcp://localhost:3310")

	v.SetDefault("SHARE_MAX_FILE_SIZE", int64(200<<20))
	v.SetDefault("SHARE_FILE_TTL", 48*time.Hour)
	v.SetDefault("SHARE_TOKEN_TTL", 5*time.Minute)
	v.SetDefault("SHARE_UPLOAD_URL_TTL", time.Hour)
	v.SetDefault("SHARE_DOWNLOAD_URL_TTL", 5*time.Minute)
	v.SetDefault("SHARE_THROTTLE_WINDOW", time.Minute)
	v.SetDefault("SHARE_THROTTLE_MAX", int64(30))

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	return &Config{
		Env: v.GetString("ENV"),
		Server: ServerConfig{
			Port:          v.GetString("SERVER_PORT"),
			BaseURL:       v.GetString("BASE_URL"),
			AllowedOrigin: v.GetString("ALLOWED_ORIGIN"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		MinIO: MinIOConfig{
			Endpoint:   v.GetString("MINIO_ENDPOINT"),
			AccessKey:  v.GetString("MINIO_ACCESS_KEY"),
			SecretKey:  v.GetString("MINIO_SECRET_KEY"),
			BucketName: v.GetString("MINIO_BUCKET"),
			UseSSL:     v.GetBool("MINIO_USE_SSL"),
		},
		Share: ShareConfig{
			MaxFileSize:    v.GetInt64("SHARE_MAX_FILE_SIZE"),
			FileTTL:        v.GetDuration("SHARE_FILE_TTL"),
			TokenTTL:       v.GetDuration("SHARE_TOKEN_TTL"),
			UploadURLTTL:   v.GetDuration("SHARE_UPLOAD_URL_TTL"),
			DownloadURLTTL: v.GetDuration("SHARE_DOWNLOAD_URL_TTL"),
			ThrottleWindow: v.GetDuration("SHARE_THROTTLE_WINDOW"),
			ThrottleMax:    v.GetInt64("SHARE_THROTTLE_MAX"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		NATSURL:   v.GetString("NATS_URL"),
		ClamAVURL: v.GetString("CLAMAV_URL"),
	}, nil
}
