package clickup

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

// TaskAPI はアップデーターが必要とするClickUpクライアントの部分集合。
type TaskAPI interface {
	// GetTask はタスク詳細とカスタムフィールド定義を取得する。
	GetTask(ctx context.Context, accessToken, taskID string) (*TaskDetail, error)
	// SetCustomField は1つのカスタムフィールドの値を更新する。
	SetCustomField(ctx context.Context, accessToken, taskID, fieldID string, value any) error
}

// Updater は名前指定のカスタムフィールド更新を編成する。
// フィールド定義の取得、名前解決と値エンコード、フィールドごとの
// 更新呼び出しと部分失敗の集計を行う。
type Updater struct {
	api    TaskAPI
	logger *slog.Logger
}

// NewUpdater はUpdaterを生成する。
func NewUpdater(api TaskAPI, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{api: api, logger: logger}
}

// UpdateReport はカスタムフィールド更新の集計結果。
// 一部のフィールドが失敗しても成功したフィールドの記録は破棄されない。
type UpdateReport struct {
	Success       bool
	UpdatedFields int
	Results       []model.FieldUpdateResult
	Errors        []model.FieldUpdateError

	// Message は更新対象が1つも無かった場合の説明。
	Message string
	// Task は更新対象が1つも無かった場合に返すタスクのスナップショット。
	Task json.RawMessage
}

// ApplyUpdates はタスクのカスタムフィールドを名前指定で更新する。
//
// フィールド定義の取得失敗はリクエスト全体の失敗となり、更新は一切
// 試行されない。解決でスキップされたフィールド（名前不一致・無効な
// 日付・選択肢不一致）はresultsにもerrorsにも現れない。エンコード
// できたフィールドは呼び出し元の順序で逐次更新され、1フィールドの
// 失敗は他のフィールドを中断もロールバックもしない。
func (u *Updater) ApplyUpdates(ctx context.Context, accessToken, taskID string, specs []model.FieldSpec) (*UpdateReport, error) {
	if taskID == "" {
		return nil, model.NewMissingFieldError("task ID")
	}
	if len(specs) == 0 {
		return nil, model.NewInvalidArgumentError("Missing or invalid custom fields")
	}

	detail, err := u.api.GetTask(ctx, accessToken, taskID)
	if err != nil {
		return nil, err
	}

	type encodedField struct {
		fieldID string
		value   any
	}
	var encoded []encodedField

	for _, spec := range specs {
		res, err := Resolve(spec, detail.Fields)
		if err != nil {
			return nil, err
		}
		if !res.Encoded {
			u.logger.Warn("custom field skipped",
				slog.String("task_id", taskID),
				slog.String("field_name", spec.Name),
				slog.String("reason", res.SkipReason),
			)
			continue
		}
		encoded = append(encoded, encodedField{fieldID: res.FieldID, value: res.Value})
	}

	if len(encoded) == 0 {
		return &UpdateReport{
			Success: true,
			Message: "No matching custom fields found to update",
			Task:    detail.Raw,
			Results: []model.FieldUpdateResult{},
			Errors:  []model.FieldUpdateError{},
		}, nil
	}

	report := &UpdateReport{
		Results: []model.FieldUpdateResult{},
		Errors:  []model.FieldUpdateError{},
	}

	for _, f := range encoded {
		if err := u.api.SetCustomField(ctx, accessToken, taskID, f.fieldID, f.value); err != nil {
			u.logger.Error("custom field update failed",
				slog.String("task_id", taskID),
				slog.String("field_id", f.fieldID),
				slog.String("error", err.Error()),
			)
			report.Errors = append(report.Errors, model.FieldUpdateError{
				FieldID: f.fieldID,
				Error:   updateErrorDetail(err),
			})
			continue
		}
		report.Results = append(report.Results, model.FieldUpdateResult{
			FieldID: f.fieldID,
			Success: true,
		})
	}

	report.Success = len(report.Errors) == 0
	report.UpdatedFields = len(report.Results)
	return report, nil
}

// updateErrorDetail はフィールド更新エラーから呼び出し元向けの
// エラーテキストを取り出す。upstreamエラーはプロバイダーの
// テキストを優先する。
func updateErrorDetail(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Details != "" {
		return apiErr.Details
	}
	return err.Error()
}
