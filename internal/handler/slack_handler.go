package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

// SlackDirectoryService はチャンネル・ユーザー一覧のインターフェース。
type SlackDirectoryService interface {
	ListChannels(ctx context.Context, token string) ([]model.Channel, error)
	ListUsers(ctx context.Context, token string) ([]model.SlackUser, error)
}

// WebhookService はWebhook転送のインターフェース。
type WebhookService interface {
	Send(ctx context.Context, webhookURL string, payload json.RawMessage) error
}

// SlackHandler はSlackディレクトリミラーとWebhook転送のHTTPハンドラー。
type SlackHandler struct {
	directory SlackDirectoryService
	webhook   WebhookService
	logger    *slog.Logger
	now       func() time.Time
}

// NewSlackHandler はSlackHandlerを生成する。
func NewSlackHandler(directory SlackDirectoryService, webhook WebhookService, logger *slog.Logger) *SlackHandler {
	return &SlackHandler{
		directory: directory,
		webhook:   webhook,
		logger:    logger,
		now:       time.Now,
	}
}

// Channels はワークスペースのチャンネル一覧を返す。
// POST /api/slack/channels body: {token}
func (h *SlackHandler) Channels(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if body.Token == "" {
		writeError(w, h.logger, model.NewMissingFieldError("Slack bot token"))
		return
	}

	channels, err := h.directory.ListChannels(r.Context(), body.Token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"channels":      channels,
			"lastUpdated":   h.now().UTC().Format(time.RFC3339),
			"totalChannels": len(channels),
		},
	})
}

// Users はワークスペースのユーザー一覧を返す。teamsはプラグイン側の
// グルーピングUI用の足場で、allに全ユーザーIDを入れる。
// POST /api/slack/users body: {token}
func (h *SlackHandler) Users(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if body.Token == "" {
		writeError(w, h.logger, model.NewMissingFieldError("Slack bot token"))
		return
	}

	users, err := h.directory.ListUsers(r.Context(), body.Token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	allIDs := make([]string, len(users))
	for i, u := range users {
		allIDs[i] = u.ID
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"users": users,
			"teams": map[string]any{
				"design":      []string{},
				"product":     []string{},
				"engineering": []string{},
				"all":         allIDs,
			},
			"lastUpdated": h.now().UTC().Format(time.RFC3339),
			"totalUsers":  len(users),
		},
	})
}

// Send は呼び出し元指定のWebhook URLへペイロードを転送する。
// POST /api/slack/send body: {webhookUrl, payload}
func (h *SlackHandler) Send(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WebhookURL string          `json:"webhookUrl"`
		Payload    json.RawMessage `json:"payload"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if body.WebhookURL == "" || len(body.Payload) == 0 {
		writeError(w, h.logger, model.NewInvalidArgumentError("Missing webhookUrl or payload"))
		return
	}

	if err := h.webhook.Send(r.Context(), body.WebhookURL, body.Payload); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
