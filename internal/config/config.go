// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity Provider
	AuthJWTSecret string

	// User Directory
	DirectoryBaseURL string
	DirectoryAPIKey  string

	// Rate Limit
	RedisURL         string        // 未設定の場合はインメモリのスライディングウィンドウにフォールバックする
	PostRateLimit    int           // 1ウィンドウあたりの投稿許容数
	PostRateWindow   time.Duration // 投稿レート制限のウィンドウ幅
	RateLimitGeneral int           // API全般のレート（req/min/user）

	// Posts
	PostMaxLength  int
	PostsEmojiOnly bool

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envはローカル開発用。存在しなくてもエラーにしない。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AuthJWTSecret = os.Getenv("AUTH_JWT_SECRET")
	if cfg.AuthJWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}

	cfg.DirectoryBaseURL = os.Getenv("DIRECTORY_BASE_URL")
	if cfg.DirectoryBaseURL == "" {
		missing = append(missing, "DIRECTORY_BASE_URL")
	}

	cfg.DirectoryAPIKey = os.Getenv("DIRECTORY_API_KEY")
	if cfg.DirectoryAPIKey == "" {
		missing = append(missing, "DIRECTORY_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.PostRateLimit = getEnvInt("POST_RATE_LIMIT", 3)
	cfg.PostRateWindow = getEnvDuration("POST_RATE_WINDOW", 60*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.PostMaxLength = getEnvInt("POST_MAX_LENGTH", 280)
	cfg.PostsEmojiOnly = getEnvBool("POSTS_EMOJI_ONLY", true)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
