package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

const (
	// defaultBaseURL はClickUp REST APIのベースURL。
	defaultBaseURL = "https://api.clickup.com/api/v2"
	// serviceName はメトリクスのserviceラベル値。
	serviceName = "clickup"
)

// Metrics は上流リクエストの計測フック。nilの場合は記録しない。
type Metrics interface {
	RecordUpstreamRequest(service string)
	RecordUpstreamFailure(service string)
	RecordUpstreamLatency(service string, duration time.Duration)
}

// Client はClickUp REST APIのクライアント。
// アクセストークンはリクエストごとに呼び出し元から渡される。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    Metrics
	baseURL    string // テスト用にオーバーライド可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, metrics Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics,
		baseURL:    defaultBaseURL,
	}
}

// TaskDetail はタスク詳細レスポンスとそのカスタムフィールド定義。
// フィールド定義はタスクごと・リクエストごとに取得され、キャッシュされない。
type TaskDetail struct {
	Raw    json.RawMessage
	Fields []FieldDefinition
}

// GetTask はタスク詳細を取得する。
// カスタムフィールド定義の解決に使うため、生のレスポンスも保持する。
func (c *Client) GetTask(ctx context.Context, accessToken, taskID string) (*TaskDetail, error) {
	body, err := c.get(ctx, accessToken, "/task/"+taskID, "Failed to fetch task details")
	if err != nil {
		return nil, err
	}

	var payload struct {
		CustomFields []FieldDefinition `json:"custom_fields"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse task response: %w", err)
	}

	return &TaskDetail{Raw: body, Fields: payload.CustomFields}, nil
}

// SetCustomField は1つのカスタムフィールドの値を更新する。
func (c *Client) SetCustomField(ctx context.Context, accessToken, taskID, fieldID string, value any) error {
	payload, err := json.Marshal(map[string]any{"value": value})
	if err != nil {
		return fmt.Errorf("failed to encode field value: %w", err)
	}

	path := fmt.Sprintf("/task/%s/field/%s", taskID, fieldID)
	_, err = c.do(ctx, http.MethodPost, accessToken, path, payload, "Failed to update custom field")
	return err
}

// UpdateTaskStatus はタスクのステータスを更新し、更新後のタスクを返す。
func (c *Client) UpdateTaskStatus(ctx context.Context, accessToken, taskID, status string) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return nil, fmt.Errorf("failed to encode status: %w", err)
	}
	return c.do(ctx, http.MethodPut, accessToken, "/task/"+taskID, payload, "Failed to update task status")
}

// teamsPayload は/teamレスポンスのボディ。
type teamsPayload struct {
	Teams []struct {
		ID     string  `json:"id"`
		Name   string  `json:"name"`
		Color  string  `json:"color"`
		Avatar *string `json:"avatar"`
	} `json:"teams"`
}

// ListWorkspaces は認可済みワークスペース一覧を取得し、各ワークスペースの
// スペース一覧を並行に取得して合流する。スペース取得の失敗はそのワーク
// スペースのspacesを空にするだけで、全体の結果を失敗させない。
func (c *Client) ListWorkspaces(ctx context.Context, accessToken string) ([]model.Workspace, error) {
	body, err := c.get(ctx, accessToken, "/team", "Failed to fetch workspaces")
	if err != nil {
		return nil, err
	}

	var payload teamsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse teams response: %w", err)
	}

	workspaces := make([]model.Workspace, len(payload.Teams))
	var wg sync.WaitGroup

	for i, team := range payload.Teams {
		ws := model.Workspace{
			ID:     team.ID,
			Name:   team.Name,
			Color:  team.Color,
			Avatar: team.Avatar,
			Spaces: json.RawMessage("[]"),
		}
		if ws.Color == "" {
			ws.Color = "#7B68EE"
		}
		workspaces[i] = ws

		wg.Add(1)
		go func(i int, teamID string) {
			defer wg.Done()
			spaces, err := c.ListSpaces(ctx, accessToken, teamID)
			if err != nil {
				c.logger.Error("failed to fetch spaces for team",
					slog.String("team_id", teamID),
					slog.String("error", err.Error()),
				)
				return
			}
			workspaces[i].Spaces = spaces
		}(i, team.ID)
	}
	wg.Wait()

	return workspaces, nil
}

// ListSpaces はチームのスペース一覧を生のJSON配列として返す。
func (c *Client) ListSpaces(ctx context.Context, accessToken, teamID string) (json.RawMessage, error) {
	body, err := c.get(ctx, accessToken, "/team/"+teamID+"/space?archived=false", "Failed to fetch spaces")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Spaces json.RawMessage `json:"spaces"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse spaces response: %w", err)
	}
	if payload.Spaces == nil {
		payload.Spaces = json.RawMessage("[]")
	}
	return payload.Spaces, nil
}

// rawTask はClickUpタスクのワイヤ表現のうち射影に使う部分。
type rawTask struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      *struct {
		Status string `json:"status"`
	} `json:"status"`
	URL       string           `json:"url"`
	List      *model.TaskRef   `json:"list"`
	Folder    *model.TaskRef   `json:"folder"`
	Space     *model.TaskRef   `json:"space"`
	Assignees []model.Assignee `json:"assignees"`
	Priority  json.RawMessage  `json:"priority"`
	DueDate   *string          `json:"due_date"`
	Tags      json.RawMessage  `json:"tags"`
}

// tasksPayload はタスク一覧レスポンスのボディ。
type tasksPayload struct {
	Tasks []rawTask `json:"tasks"`
}

// ListTasks は指定スコープのタスク一覧を取得する。
// listIDがあればそのリスト、なければspaceIDがあればスペース内の全リストを
// 並行に取得して合流、どちらも無ければチーム全体から取得する。
// スペース内の1リストの取得失敗はその枝を空にするだけで全体は失敗しない。
func (c *Client) ListTasks(ctx context.Context, accessToken, teamID, spaceID, listID string) ([]model.Task, error) {
	switch {
	case listID != "":
		raw, err := c.fetchListTasks(ctx, accessToken, listID)
		if err != nil {
			return nil, err
		}
		return projectTasks(raw), nil

	case spaceID != "":
		raw, err := c.fetchSpaceTasks(ctx, accessToken, spaceID)
		if err != nil {
			return nil, err
		}
		return projectTasks(raw), nil

	default:
		body, err := c.get(ctx, accessToken,
			"/team/"+teamID+"/task?archived=false&include_closed=false",
			"Failed to fetch tasks")
		if err != nil {
			return nil, err
		}
		var payload tasksPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to parse tasks response: %w", err)
		}
		return projectTasks(payload.Tasks), nil
	}
}

// fetchListTasks は1リストのタスクを取得する。
func (c *Client) fetchListTasks(ctx context.Context, accessToken, listID string) ([]rawTask, error) {
	body, err := c.get(ctx, accessToken,
		"/list/"+listID+"/task?archived=false&include_closed=false",
		"Failed to fetch tasks")
	if err != nil {
		return nil, err
	}
	var payload tasksPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse tasks response: %w", err)
	}
	return payload.Tasks, nil
}

// fetchSpaceTasks はスペース内の全リストのタスクを並行に取得して合流する。
func (c *Client) fetchSpaceTasks(ctx context.Context, accessToken, spaceID string) ([]rawTask, error) {
	body, err := c.get(ctx, accessToken, "/space/"+spaceID+"/list?archived=false", "Failed to fetch lists")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Lists []struct {
			ID string `json:"id"`
		} `json:"lists"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse lists response: %w", err)
	}

	results := make([][]rawTask, len(payload.Lists))
	var wg sync.WaitGroup

	for i, list := range payload.Lists {
		wg.Add(1)
		go func(i int, listID string) {
			defer wg.Done()
			tasks, err := c.fetchListTasks(ctx, accessToken, listID)
			if err != nil {
				c.logger.Error("failed to fetch tasks for list",
					slog.String("list_id", listID),
					slog.String("error", err.Error()),
				)
				return
			}
			results[i] = tasks
		}(i, list.ID)
	}
	wg.Wait()

	var all []rawTask
	for _, tasks := range results {
		all = append(all, tasks...)
	}
	return all, nil
}

// projectTasks はワイヤ表現をフラット化されたタスク射影に変換する。
func projectTasks(raw []rawTask) []model.Task {
	tasks := make([]model.Task, 0, len(raw))
	for _, rt := range raw {
		task := model.Task{
			ID:          rt.ID,
			Name:        rt.Name,
			Description: rt.Description,
			Status:      "No Status",
			URL:         rt.URL,
			Assignees:   rt.Assignees,
			Priority:    rt.Priority,
			DueDate:     rt.DueDate,
			Tags:        rt.Tags,
		}
		if rt.Status != nil && rt.Status.Status != "" {
			task.Status = rt.Status.Status
		}
		if rt.List != nil {
			task.List = *rt.List
		}
		if rt.Folder != nil {
			task.Folder = *rt.Folder
		}
		if rt.Space != nil {
			task.Space = *rt.Space
		}
		if task.Assignees == nil {
			task.Assignees = []model.Assignee{}
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// get はGETリクエストを実行し、成功時のボディを返す。
func (c *Client) get(ctx context.Context, accessToken, path, failMessage string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, accessToken, path, nil, failMessage)
}

// do はClickUp APIへのリクエストを実行する。
// 非成功ステータスの場合はプロバイダーのエラーテキストを伝搬する
// upstreamエラーを返す。
func (c *Client) do(ctx context.Context, method, accessToken, path string, payload []byte, failMessage string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", accessToken)
	req.Header.Set("Content-Type", "application/json")

	if c.metrics != nil {
		c.metrics.RecordUpstreamRequest(serviceName)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordUpstreamLatency(serviceName, time.Since(start))
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordUpstreamFailure(serviceName)
		}
		return nil, fmt.Errorf("clickup request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read clickup response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.metrics != nil {
			c.metrics.RecordUpstreamFailure(serviceName)
		}
		c.logger.Error("clickup api returned error status",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		status := http.StatusBadRequest
		if resp.StatusCode >= 500 {
			status = http.StatusBadGateway
		}
		return nil, model.NewUpstreamError(failMessage, upstreamErrorDetail(body), status)
	}

	return body, nil
}
