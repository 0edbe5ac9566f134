// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// ClickUp OAuth
	// 未設定のままでも起動は許可し、OAuth系エンドポイントが
	// リクエスト時にconfigurationエラーを返す。
	ClickUpClientID     string
	ClickUpClientSecret string
	ClickUpRedirectURI  string

	// Relay
	RelayTTL           time.Duration
	RelaySweepInterval time.Duration

	// Upstream
	UpstreamTimeout   time.Duration
	SlackPageInterval time.Duration

	// Webhook
	WebhookTimeout time.Duration

	// Rate Limit（req/min/クライアントIP）
	RateLimitGeneral int

	// Server
	ServerPort string

	// CORS
	// プラグインのUIはnullオリジンから呼び出すためデフォルトはワイルドカード。
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// リレーのTTLとスイープ間隔が正でない場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{
		ClickUpClientID:     os.Getenv("CLICKUP_CLIENT_ID"),
		ClickUpClientSecret: os.Getenv("CLICKUP_CLIENT_SECRET"),
		ClickUpRedirectURI:  os.Getenv("CLICKUP_REDIRECT_URI"),

		RelayTTL:           getEnvDuration("RELAY_TTL", 5*time.Minute),
		RelaySweepInterval: getEnvDuration("RELAY_SWEEP_INTERVAL", 1*time.Minute),

		UpstreamTimeout:   getEnvDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		SlackPageInterval: getEnvDuration("SLACK_PAGE_INTERVAL", 1*time.Second),

		WebhookTimeout: getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),

		RateLimitGeneral: getEnvInt("RATE_LIMIT_GENERAL", 120),

		ServerPort:        getEnvString("SERVER_PORT", "8080"),
		CORSAllowedOrigin: getEnvString("CORS_ALLOWED_ORIGIN", "*"),
	}

	if cfg.RelayTTL <= 0 {
		return nil, fmt.Errorf("RELAY_TTL must be positive: %v", cfg.RelayTTL)
	}
	if cfg.RelaySweepInterval <= 0 {
		return nil, fmt.Errorf("RELAY_SWEEP_INTERVAL must be positive: %v", cfg.RelaySweepInterval)
	}

	return cfg, nil
}

// HasOAuthClient はOAuthクライアント設定（client idとredirect URI）が
// そろっているかを返す。認可URL生成の前提条件。
func (c *Config) HasOAuthClient() bool {
	return c.ClickUpClientID != "" && c.ClickUpRedirectURI != ""
}

// HasOAuthSecret はトークン交換に必要な設定がそろっているかを返す。
func (c *Config) HasOAuthSecret() bool {
	return c.ClickUpClientID != "" && c.ClickUpClientSecret != ""
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
