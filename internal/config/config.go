package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Server - настройки API комментариев.
type Server struct {
	Port         string
	DatabaseURL  string
	LogLevel     string
	SeedDemo     bool
	MaxDepth     int
	OTLPEndpoint string
}

// Client - настройки клиента и движка дерева.
type Client struct {
	APIURL            string
	ViewerID          string
	LogLevel          string
	PageSize          int
	RequestTimeout    time.Duration
	MaxReplyDepth     int
	AlwaysExpandDepth int
	ReplyCachePosts   int
	EagerReplies      bool
}

// LoadEnv подхватывает .env, если он есть. Уже заданные переменные не перетираются.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

func LoadServer() (*Server, error) {
	cfg := &Server{
		Port:         getEnv("PORT", "8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	var err error
	if cfg.SeedDemo, err = getBool("SEED_DEMO", false); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = getInt("COMMENTS_MAX_REPLY_DEPTH", 3); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadClient() (*Client, error) {
	cfg := &Client{
		APIURL:   getEnv("COMMENTS_API_URL", "http://localhost:8080"),
		ViewerID: os.Getenv("VIEWER_ID"),
		LogLevel: getEnv("LOG_LEVEL", "warn"),
	}
	var err error
	if cfg.PageSize, err = getInt("COMMENTS_PAGE_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("COMMENTS_REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxReplyDepth, err = getInt("COMMENTS_MAX_REPLY_DEPTH", 3); err != nil {
		return nil, err
	}
	if cfg.AlwaysExpandDepth, err = getInt("COMMENTS_ALWAYS_EXPAND_DEPTH", 2); err != nil {
		return nil, err
	}
	if cfg.ReplyCachePosts, err = getInt("COMMENTS_REPLY_CACHE_POSTS", 64); err != nil {
		return nil, err
	}
	if cfg.EagerReplies, err = getBool("COMMENTS_EAGER_REPLIES", false); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: positive integer expected, got %q", key, val)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: boolean expected, got %q", key, val)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: positive duration expected, got %q", key, val)
	}
	return d, nil
}
