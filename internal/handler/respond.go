// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

// writeJSON はレスポンスをJSONで書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError はエラーを統一形式のJSONで書き込む。
// APIErrorの場合はそのステータスと詳細を使い、それ以外は500で返す。
// レスポンスにトークンやシークレットを含めてはならない。
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		body := map[string]any{
			"success": false,
			"error":   apiErr.Message,
		}
		if apiErr.Details != "" {
			body["details"] = apiErr.Details
		}
		writeJSON(w, apiErr.Status, body)
		return
	}

	logger.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"error":   "Server error",
	})
}

// decodeBody はリクエストボディをJSONとしてデコードする。
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewInvalidArgumentError("Invalid JSON body")
	}
	return nil
}
