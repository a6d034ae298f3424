package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/LJTian/FeedHub/internal/storage"
	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string

	DataDir       string
	StorageDriver string // file / postgres
	PostgresDSN   string
	RedisAddr     string

	CronSpec         string
	FeedTimeout      time.Duration
	FetchConcurrency int
	HostInterval     time.Duration
	MaxArticles      int

	WebRoot       string
	BasicAuthUser string
	BasicAuthPass string
}

func Load() *Config {
	// .env 可选，不存在时只用进程环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("warn: load .env: %v", err)
	}

	cfg := &Config{
		AppPort:          getEnv("APP_PORT", "3000"),
		DataDir:          getEnv("DATA_DIR", "./data"),
		StorageDriver:    getEnv("STORAGE_DRIVER", "file"),
		PostgresDSN:      getEnv("POSTGRES_DSN", "host=localhost user=feedhub password=feedhub dbname=feedhub port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		CronSpec:         getEnv("CRON_SPEC", "*/30 * * * *"),
		FeedTimeout:      getDuration("FEED_TIMEOUT", 20*time.Second),
		FetchConcurrency: getInt("FETCH_CONCURRENCY", 8),
		HostInterval:     getDuration("HOST_INTERVAL", 500*time.Millisecond),
		MaxArticles:      getInt("MAX_ARTICLES", 1000),
		WebRoot:          getEnv("WEB_ROOT", "public"),
		BasicAuthUser:    getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:    getEnv("APP_BASIC_PASS", ""),
	}

	log.Printf("config loaded: port=%s storage=%s cron=%s timeout=%s max=%d",
		cfg.AppPort, cfg.StorageDriver, cfg.CronSpec, cfg.FeedTimeout, cfg.MaxArticles)
	return cfg
}

// StorageOptions 两个命令共用的存储选择
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Driver:      c.StorageDriver,
		DataDir:     c.DataDir,
		PostgresDSN: c.PostgresDSN,
		RedisAddr:   c.RedisAddr,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("warn: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Printf("warn: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}
