package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/clickup"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

// ClickUpService はタスクハンドラーが必要とするClickUp APIインターフェース。
type ClickUpService interface {
	ListWorkspaces(ctx context.Context, accessToken string) ([]model.Workspace, error)
	ListSpaces(ctx context.Context, accessToken, teamID string) (json.RawMessage, error)
	ListTasks(ctx context.Context, accessToken, teamID, spaceID, listID string) ([]model.Task, error)
	UpdateTaskStatus(ctx context.Context, accessToken, taskID, status string) (json.RawMessage, error)
}

// FieldUpdateService はカスタムフィールド一括更新のインターフェース。
type FieldUpdateService interface {
	ApplyUpdates(ctx context.Context, accessToken, taskID string, specs []model.FieldSpec) (*clickup.UpdateReport, error)
}

// TaskHandler はClickUpタスク関連のHTTPハンドラー。
type TaskHandler struct {
	service ClickUpService
	updater FieldUpdateService
	logger  *slog.Logger
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service ClickUpService, updater FieldUpdateService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		updater: updater,
		logger:  logger,
	}
}

// Workspaces はワークスペース一覧をスペース付きで返す。
// POST /api/clickup/workspaces body: {accessToken}
func (h *TaskHandler) Workspaces(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if body.AccessToken == "" {
		writeError(w, h.logger, model.NewMissingFieldError("access token"))
		return
	}

	workspaces, err := h.service.ListWorkspaces(r.Context(), body.AccessToken)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"workspaces": workspaces,
	})
}

// Spaces はチーム内のスペース一覧を返す。
// POST /api/clickup/spaces body: {accessToken, teamId}
func (h *TaskHandler) Spaces(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccessToken string `json:"accessToken"`
		TeamID      string `json:"teamId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if body.AccessToken == "" {
		writeError(w, h.logger, model.NewMissingFieldError("access token"))
		return
	}
	if body.TeamID == "" {
		writeError(w, h.logger, model.NewMissingFieldError("team ID"))
		return
	}

	spaces, err := h.service.ListSpaces(r.Context(), body.AccessToken, body.TeamID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"spaces":  spaces,
	})
}

// Tasks はタスク一覧を返す。listId指定で単一リスト、spaceId指定で
// スペース内全リストの並行取得、どちらも無ければチーム全体を対象にする。
// POST /api/clickup/tasks body: {accessToken, teamId, spaceId?, listId?}
func (h *TaskHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccessToken string `json:"accessToken"`
		TeamID      string `json:"teamId"`
		SpaceID     string `json:"spaceId"`
		ListID      string `json:"listId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if body.AccessToken == "" {
		writeError(w, h.logger, model.NewMissingFieldError("access token"))
		return
	}
	if body.TeamID == "" {
		writeError(w, h.logger, model.NewMissingFieldError("team ID"))
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), body.AccessToken, body.TeamID, body.SpaceID, body.ListID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tasks":   tasks,
		"count":   len(tasks),
	})
}

// UpdateStatus はタスクのステータスを変更する。
// POST /api/clickup/update-status body: {accessToken, taskId, status}
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccessToken string `json:"accessToken"`
		TaskID      string `json:"taskId"`
		Status      string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if body.AccessToken == "" {
		writeError(w, h.logger, model.NewMissingFieldError("access token"))
		return
	}
	if body.TaskID == "" {
		writeError(w, h.logger, model.NewMissingFieldError("task ID"))
		return
	}
	if body.Status == "" {
		writeError(w, h.logger, model.NewMissingFieldError("status"))
		return
	}

	task, err := h.service.UpdateTaskStatus(r.Context(), body.AccessToken, body.TaskID, body.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"task":    task,
	})
}

// UpdateCustomFields はタスクのカスタムフィールドを名前指定で一括更新する。
// フィールド単位の失敗は兄弟の更新を中断せず、全結果を返した上で
// 1件でも失敗があれば400で応答する。
// POST /api/clickup/update-custom-fields body: {accessToken, taskId, customFields}
func (h *TaskHandler) UpdateCustomFields(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccessToken  string            `json:"accessToken"`
		TaskID       string            `json:"taskId"`
		CustomFields []model.FieldSpec `json:"customFields"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if body.AccessToken == "" {
		writeError(w, h.logger, model.NewMissingFieldError("access token"))
		return
	}
	if body.TaskID == "" {
		writeError(w, h.logger, model.NewMissingFieldError("task ID"))
		return
	}
	if body.CustomFields == nil {
		writeError(w, h.logger, model.NewInvalidArgumentError("Missing or invalid custom fields"))
		return
	}

	report, err := h.updater.ApplyUpdates(r.Context(), body.AccessToken, body.TaskID, body.CustomFields)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if !report.Success {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Failed to update some custom fields",
			"results": report.Results,
			"errors":  report.Errors,
		})
		return
	}

	// 更新対象が1件も見つからなかった場合は診断用にタスクを添えて返す
	if report.Message != "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": report.Message,
			"task":    report.Task,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"updatedFields": report.UpdatedFields,
		"results":       report.Results,
	})
}
