// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// スケジュール設定はプロセスの生存期間中は再読み込みされない。
type Config struct {
	// Database
	DatabaseURL string

	// Expiry store
	DataDir string

	// Schedule
	SweepTimezone string
	SweepRunAt    string

	// Rate Limit
	RateLimitAdmin int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DataDir = getEnvString("DATA_DIR", ".")
	cfg.SweepTimezone = getEnvString("SWEEP_TIMEZONE", "Europe/Moscow")
	cfg.SweepRunAt = getEnvString("SWEEP_RUN_AT", "00:00")
	cfg.RateLimitAdmin = getEnvInt("RATE_LIMIT_ADMIN", 60)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = len(cfg.BaseURL) >= 8 && cfg.BaseURL[:8] == "https://"
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.BaseURL)

	if err := validateRunAt(cfg.SweepRunAt); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateRunAt はSWEEP_RUN_ATが "HH:MM" 形式であることを検証する。
// タイムゾーン名の妥当性は起動時ではなくスケジューラ側で判定する
// （不正なゾーンはフォールバック遅延で自己回復するため、起動は止めない）。
func validateRunAt(runAt string) error {
	var hh, mm int
	if _, err := fmt.Sscanf(runAt, "%d:%d", &hh, &mm); err != nil {
		return fmt.Errorf("invalid SWEEP_RUN_AT %q: %w", runAt, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return fmt.Errorf("invalid SWEEP_RUN_AT %q: out of range", runAt)
	}
	return nil
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
