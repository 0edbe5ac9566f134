package clickup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

func TestGetTask_ParsesCustomFieldDefinitions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/task/task-1" {
			t.Errorf("path = %s, want /task/task-1", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "pk_token" {
			t.Errorf("Authorization = %s, want pk_token", got)
		}
		w.Write([]byte(`{
			"id": "task-1",
			"custom_fields": [
				{"id": "f-1", "name": "Priority", "type": "drop_down",
				 "type_config": {"options": [{"name": "Low", "orderindex": 0}]}},
				{"id": "f-2", "name": "Due Date", "type": "date"}
			]
		}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), newTestLogger(), nil)
	c.baseURL = server.URL

	detail, err := c.GetTask(context.Background(), "pk_token", "task-1")
	if err != nil {
		t.Fatalf("GetTask がエラーを返した: %v", err)
	}

	if len(detail.Fields) != 2 {
		t.Fatalf("フィールド定義数 = %d, want 2", len(detail.Fields))
	}
	if detail.Fields[0].ID != "f-1" || detail.Fields[0].Type != "drop_down" {
		t.Errorf("Fields[0] = %+v", detail.Fields[0])
	}
	if len(detail.Fields[0].TypeConfig.Options) != 1 {
		t.Errorf("選択肢数 = %d, want 1", len(detail.Fields[0].TypeConfig.Options))
	}
	if len(detail.Raw) == 0 {
		t.Error("Raw スナップショットが空")
	}
}

func TestGetTask_UpstreamErrorPropagatesDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"err": "Task not found"})
	}))
	defer server.Close()

	c := NewClient(server.Client(), newTestLogger(), nil)
	c.baseURL = server.URL

	_, err := c.GetTask(context.Background(), "pk_token", "missing")
	if err == nil {
		t.Fatal("非成功ステータスでエラーを返さなければならない")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Details != "Task not found" {
		t.Errorf("Details = %s, want Task not found", apiErr.Details)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", apiErr.Status)
	}
}

func TestSetCustomField_SendsValuePayload(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("HTTPメソッド = %s, want POST", r.Method)
		}
		if r.URL.Path != "/task/task-1/field/f-1" {
			t.Errorf("path = %s, want /task/task-1/field/f-1", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("ボディのデコードに失敗: %v", err)
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), newTestLogger(), nil)
	c.baseURL = server.URL

	if err := c.SetCustomField(context.Background(), "pk_token", "task-1", "f-1", 1); err != nil {
		t.Fatalf("SetCustomField がエラーを返した: %v", err)
	}
	if gotBody["value"] != float64(1) {
		t.Errorf("value = %v, want 1", gotBody["value"])
	}
}

func TestUpdateTaskStatus_UsesPut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("HTTPメソッド = %s, want PUT", r.Method)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["status"] != "in review" {
			t.Errorf("status = %s, want in review", body["status"])
		}
		w.Write([]byte(`{"id":"task-1","status":{"status":"in review"}}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), newTestLogger(), nil)
	c.baseURL = server.URL

	raw, err := c.UpdateTaskStatus(context.Background(), "pk_token", "task-1", "in review")
	if err != nil {
		t.Fatalf("UpdateTaskStatus がエラーを返した: %v", err)
	}
	if !strings.Contains(string(raw), "in review") {
		t.Errorf("レスポンス = %s", raw)
	}
}

func TestListWorkspaces_SpaceFailureDegradesToEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/team":
			w.Write([]byte(`{"teams":[
				{"id":"1","name":"Alpha","color":"#112233"},
				{"id":"2","name":"Beta"}
			]}`))
		case r.URL.Path == "/team/1/space":
			w.Write([]byte(`{"spaces":[{"id":"s-1","name":"Design"}]}`))
		case r.URL.Path == "/team/2/space":
			// 片方のスペース取得は失敗させる
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"err":"boom"}`))
		default:
			t.Errorf("予期しないpath: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := NewClient(server.Client(), newTestLogger(), nil)
	c.baseURL = server.URL

	workspaces, err := c.ListWorkspaces(context.Background(), "pk_token")
	if err != nil {
		t.Fatalf("ListWorkspaces がエラーを返した: %v", err)
	}

	if len(workspaces) != 2 {
		t.Fatalf("ワークスペース数 = %d, want 2", len(workspaces))
	}
	if !strings.Contains(string(workspaces[0].Spaces), "s-1") {
		t.Errorf("Alpha.Spaces = %s, want s-1を含む", workspaces[0].Spaces)
	}
	// 失敗した枝は空のスペース一覧に縮退し、全体は失敗しない
	if string(workspaces[1].Spaces) != "[]" {
		t.Errorf("Beta.Spaces = %s, want []", workspaces[1].Spaces)
	}
	// colorが無いチームはデフォルト色で補完される
	if workspaces[1].Color != "#7B68EE" {
		t.Errorf("Beta.Color = %s, want #7B68EE", workspaces[1].Color)
	}
}

func TestListTasks_ByListID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list/list-1/task" {
			t.Errorf("path = %s, want /list/list-1/task", r.URL.Path)
		}
		w.Write([]byte(`{"tasks":[
			{"id":"t-1","name":"Review mock","status":{"status":"open"},
			 "list":{"id":"list-1","name":"Sprint"},
			 "assignees":[{"id":7,"username":"lead","email":"lead@example.com"}]}
		]}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), newTestLogger(), nil)
	c.baseURL = server.URL

	tasks, err := c.ListTasks(context.Background(), "pk_token", "team-1", "", "list-1")
	if err != nil {
		t.Fatalf("ListTasks がエラーを返した: %v", err)
	}

	if len(tasks) != 1 {
		t.Fatalf("タスク数 = %d, want 1", len(tasks))
	}
	if tasks[0].Status != "open" {
		t.Errorf("Status = %s, want open", tasks[0].Status)
	}
	if tasks[0].List.Name != "Sprint" {
		t.Errorf("List.Name = %s, want Sprint", tasks[0].List.Name)
	}
	if len(tasks[0].Assignees) != 1 || tasks[0].Assignees[0].ID != 7 {
		t.Errorf("Assignees = %+v", tasks[0].Assignees)
	}
}

func TestListTasks_SpaceFanOutJoinsAllLists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/space/space-1/list":
			w.Write([]byte(`{"lists":[{"id":"l-1"},{"id":"l-2"},{"id":"l-3"}]}`))
		case r.URL.Path == "/list/l-1/task":
			w.Write([]byte(`{"tasks":[{"id":"t-1","name":"a"}]}`))
		case r.URL.Path == "/list/l-2/task":
			// 1リストの失敗はその枝の縮退のみ
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"err":"boom"}`))
		case r.URL.Path == "/list/l-3/task":
			w.Write([]byte(`{"tasks":[{"id":"t-3","name":"c"}]}`))
		default:
			t.Errorf("予期しないpath: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := NewClient(server.Client(), newTestLogger(), nil)
	c.baseURL = server.URL

	tasks, err := c.ListTasks(context.Background(), "pk_token", "team-1", "space-1", "")
	if err != nil {
		t.Fatalf("ListTasks がエラーを返した: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("タスク数 = %d, want 2", len(tasks))
	}
}

func TestListTasks_TaskWithoutStatusGetsDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tasks":[{"id":"t-1","name":"no status"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), newTestLogger(), nil)
	c.baseURL = server.URL

	tasks, err := c.ListTasks(context.Background(), "pk_token", "team-1", "", "")
	if err != nil {
		t.Fatalf("ListTasks がエラーを返した: %v", err)
	}
	if tasks[0].Status != "No Status" {
		t.Errorf("Status = %s, want No Status", tasks[0].Status)
	}
}

// recordingMetrics は計測フックの呼び出しを記録するフェイク。
type recordingMetrics struct {
	service   string
	requests  int
	failures  int
	latencies int
}

func (m *recordingMetrics) RecordUpstreamRequest(service string) {
	m.service = service
	m.requests++
}

func (m *recordingMetrics) RecordUpstreamFailure(service string) { m.failures++ }

func (m *recordingMetrics) RecordUpstreamLatency(service string, _ time.Duration) {
	m.latencies++
}

// TestDo_RecordsUpstreamMetrics は成功した上流呼び出しがリクエスト数と
// レイテンシを記録することを検証する。
func TestDo_RecordsUpstreamMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"spaces":[]}`))
	}))
	defer server.Close()

	m := &recordingMetrics{}
	c := NewClient(server.Client(), newTestLogger(), m)
	c.baseURL = server.URL

	if _, err := c.ListSpaces(context.Background(), "pk_token", "team-1"); err != nil {
		t.Fatalf("ListSpaces がエラーを返した: %v", err)
	}
	if m.requests != 1 || m.latencies != 1 {
		t.Errorf("requests = %d, latencies = %d, want 1/1", m.requests, m.latencies)
	}
	if m.failures != 0 {
		t.Errorf("failures = %d, want 0", m.failures)
	}
	if m.service != "clickup" {
		t.Errorf("service = %s, want clickup", m.service)
	}
}

// TestDo_RecordsUpstreamFailure は非成功ステータスが失敗として
// 記録されることを検証する。
func TestDo_RecordsUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"err":"Internal error"}`))
	}))
	defer server.Close()

	m := &recordingMetrics{}
	c := NewClient(server.Client(), newTestLogger(), m)
	c.baseURL = server.URL

	if _, err := c.GetTask(context.Background(), "pk_token", "task-1"); err == nil {
		t.Fatal("エラーが返るべき")
	}
	if m.requests != 1 || m.failures != 1 || m.latencies != 1 {
		t.Errorf("requests = %d, failures = %d, latencies = %d, want 1/1/1",
			m.requests, m.failures, m.latencies)
	}
}
