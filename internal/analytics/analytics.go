// Package analytics はプラグインから送られる利用イベントを構造化ログとして記録する。
package analytics

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// allowedProperties は記録を許可するプロパティのホワイトリスト。
// 個人を特定できる値は受け取っても破棄する。
var allowedProperties = map[string]struct{}{
	"folder_count":         {},
	"has_clickup_task":     {},
	"has_figma_link":       {},
	"acknowledgment_count": {},
	"cc_count":             {},
	"timestamp":            {},
	"session_id":           {},
	"plugin_version":       {},
}

// Recorder はイベントをログ出力する記録器。外部送信は行わない。
type Recorder struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewRecorder(logger *slog.Logger) *Recorder {
	return &Recorder{
		logger: logger,
		now:    time.Now,
	}
}

// Record はイベントを1件記録する。記録は失敗しない。
// ホワイトリスト外のプロパティは黙って落とす。
func (r *Recorder) Record(event string, properties map[string]any) {
	if event == "" {
		event = "unknown"
	}

	filtered := make(map[string]any, len(properties))
	for key, value := range properties {
		if _, ok := allowedProperties[key]; ok {
			filtered[key] = value
		}
	}

	r.logger.Info("analytics event",
		slog.String("event_id", uuid.NewString()),
		slog.String("event", event),
		slog.Time("recorded_at", r.now()),
		slog.Any("properties", filtered),
	)
}
