package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/security"
)

// WebhookSender はIncoming Webhookへのメッセージ転送を提供する。
// Webhook URLは呼び出し元が指定するため、SSRFガードで検証してから
// ガード付きクライアントで送信する。
type WebhookSender struct {
	guard      security.WebhookGuardService
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookSender はWebhookSenderを生成する。
// httpClientがnilの場合はガードが生成する安全なクライアントを使用する。
func NewWebhookSender(guard security.WebhookGuardService, timeout time.Duration, logger *slog.Logger) *WebhookSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookSender{
		guard:      guard,
		httpClient: guard.NewSafeClient(timeout),
		logger:     logger,
	}
}

// Send はペイロードをWebhook URLへ転送する。
// URLの静的検証に失敗した場合はinvalid_argument、Webhook側の
// 非成功レスポンスはそのボディを伝搬するupstreamエラーとなる。
func (s *WebhookSender) Send(ctx context.Context, webhookURL string, payload json.RawMessage) error {
	if err := s.guard.ValidateURL(webhookURL); err != nil {
		return model.NewInvalidArgumentError(fmt.Sprintf("Invalid webhook URL: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read webhook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("slack webhook returned error status",
			slog.Int("http_status", resp.StatusCode),
		)
		return model.NewUpstreamError("Slack webhook failed",
			strings.TrimSpace(string(body)),
			http.StatusBadRequest,
		)
	}

	return nil
}
