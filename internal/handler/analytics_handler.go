package handler

import (
	"log/slog"
	"net/http"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

// AnalyticsService は利用イベントの記録インターフェース。
type AnalyticsService interface {
	Record(event string, properties map[string]any)
}

// AnalyticsHandler は利用イベント受信のHTTPハンドラー。
type AnalyticsHandler struct {
	recorder AnalyticsService
	logger   *slog.Logger
}

// NewAnalyticsHandler はAnalyticsHandlerを生成する。
func NewAnalyticsHandler(recorder AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		recorder: recorder,
		logger:   logger,
	}
}

// Track はイベントを記録する。記録先の都合で失敗することはなく、
// イベント名さえあれば常に200を返す。
// POST /api/analytics body: {event, properties}
func (h *AnalyticsHandler) Track(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Event      string         `json:"event"`
		Properties map[string]any `json:"properties"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if body.Event == "" {
		writeError(w, h.logger, model.NewInvalidArgumentError("Event name is required"))
		return
	}

	h.recorder.Record(body.Event, body.Properties)

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
