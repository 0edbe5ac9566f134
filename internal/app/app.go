// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/analytics"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/clickup"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/config"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/handler"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/logger"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/metrics"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/middleware"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/relay"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/security"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/slack"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("oauth_configured", cfg.HasOAuthSecret()),
	)

	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーと中継ストアの
// スイープループを起動する。SIGINTまたはSIGTERMシグナルを
// 受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	// 1. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 2. 中継ストアとスイープループ
	store := relay.NewStore(cfg.RelayTTL, log, collector)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go store.Start(sweepCtx, cfg.RelaySweepInterval)

	// 3. 上流クライアント
	upstreamClient := &http.Client{Timeout: cfg.UpstreamTimeout}

	oauthProvider := clickup.NewOAuthProvider(clickup.OAuthConfig{
		ClientID:     cfg.ClickUpClientID,
		ClientSecret: cfg.ClickUpClientSecret,
		RedirectURI:  cfg.ClickUpRedirectURI,
	}, upstreamClient, log)

	clickupClient := clickup.NewClient(upstreamClient, log, collector)
	updater := clickup.NewUpdater(clickupClient, log)

	slackClient := slack.NewClient(upstreamClient, log, rate.Every(cfg.SlackPageInterval), collector)

	webhookGuard := security.NewWebhookGuard()
	webhookSender := slack.NewWebhookSender(webhookGuard, cfg.WebhookTimeout, log)

	// 4. 計測
	recorder := analytics.NewRecorder(log)

	// 5. レート制限
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		// configのRateLimitGeneralはreq/min単位なのでreq/secに変換する
		rateLimiterCfg.Rate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.Burst = cfg.RateLimitGeneral
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		StatusRecorder:    collector,

		OAuthService: oauthProvider,
		RelayStore:   store,
		KeyGenerator: relay.RandomKeyGenerator{},
		AuthConfig: handler.AuthHandlerConfig{
			HasOAuthClient: cfg.HasOAuthClient(),
			HasOAuthSecret: cfg.HasOAuthSecret(),
		},

		ClickUpService:     clickupClient,
		FieldUpdateService: updater,

		SlackDirectory: slackClient,
		WebhookService: webhookSender,

		Analytics: recorder,
		Gatherer:  registry,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
