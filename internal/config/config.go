package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type AppConfig struct {
	ServiceName string     `mapstructure:"service_name"`
	Env         string     `mapstructure:"env"`
	LogLevel    string     `mapstructure:"log_level"`
	MetricsPath string     `mapstructure:"metrics_path"`
	HTTP        HTTPConfig `mapstructure:"http"`
}

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// TokenConfig carries the signing material for one token purpose. Access and
// refresh tokens are signed with different secrets so a leak of one cannot
// forge the other.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

type MediaConfig struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

type RateLimitRedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type RateLimitConfig struct {
	LoginLimit int
	Window     time.Duration
	Redis      RateLimitRedisConfig
}

// Config is assembled once at startup and never mutated afterwards. All
// secret-dependent components receive it through their constructors.
type Config struct {
	App          AppConfig
	AccessToken  TokenConfig
	RefreshToken TokenConfig
	Argon2       Argon2Params
	DB           DBConfig
	Media        MediaConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	appCfg, err := loadApp(os.Getenv("VT_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: *appCfg,
		AccessToken: TokenConfig{
			Secret: []byte(envString("VT_ACCESS_TOKEN_SECRET", "")),
			TTL:    envDuration("VT_ACCESS_TOKEN_TTL", 24*time.Hour),
		},
		RefreshToken: TokenConfig{
			Secret: []byte(envString("VT_REFRESH_TOKEN_SECRET", "")),
			TTL:    envDuration("VT_REFRESH_TOKEN_TTL", 10*24*time.Hour),
		},
		Argon2: Argon2Params{
			Memory:      uint32(envInt("VT_ARGON2_MEMORY", 64*1024)),
			Iterations:  uint32(envInt("VT_ARGON2_ITERATIONS", 3)),
			Parallelism: uint8(envInt("VT_ARGON2_PARALLELISM", 2)),
			SaltLength:  uint32(envInt("VT_ARGON2_SALT_LENGTH", 16)),
			KeyLength:   uint32(envInt("VT_ARGON2_KEY_LENGTH", 32)),
		},
		DB: DBConfig{
			Host:     envString("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Name:     envString("POSTGRES_DB", "videotube"),
			User:     envString("POSTGRES_USER", "videotube"),
			Password: envString("POSTGRES_PASSWORD", "videotube"),
			SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
		},
		Media: MediaConfig{
			Endpoint:      envString("VT_S3_ENDPOINT", ""),
			Region:        envString("VT_S3_REGION", "us-east-1"),
			Bucket:        envString("VT_S3_BUCKET", "videotube-media"),
			AccessKey:     envString("VT_S3_ACCESS_KEY", ""),
			SecretKey:     envString("VT_S3_SECRET_KEY", ""),
			PublicBaseURL: envString("VT_S3_PUBLIC_BASE_URL", ""),
		},
		RateLimit: RateLimitConfig{
			LoginLimit: envInt("VT_LOGIN_RATE_LIMIT", 10),
			Window:     envDuration("VT_LOGIN_RATE_WINDOW", 1*time.Minute),
			Redis: RateLimitRedisConfig{
				Addr:     envString("VT_RATE_LIMIT_REDIS_ADDR", ""),
				Password: envString("VT_RATE_LIMIT_REDIS_PASSWORD", ""),
				DB:       envInt("VT_RATE_LIMIT_REDIS_DB", 0),
				Prefix:   envString("VT_RATE_LIMIT_REDIS_PREFIX", "vt:auth:rl:"),
			},
		},
	}

	if len(cfg.AccessToken.Secret) == 0 {
		return nil, fmt.Errorf("VT_ACCESS_TOKEN_SECRET must be set")
	}
	if len(cfg.RefreshToken.Secret) == 0 {
		return nil, fmt.Errorf("VT_REFRESH_TOKEN_SECRET must be set")
	}
	if string(cfg.AccessToken.Secret) == string(cfg.RefreshToken.Secret) {
		return nil, fmt.Errorf("access and refresh token secrets must differ")
	}

	return cfg, nil
}

func loadApp(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("VT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = "config.yaml"
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "videotube-api")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_path", "/metrics")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8000)
	v.SetDefault("http.read_timeout", "5s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.idle_timeout", "60s")
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
