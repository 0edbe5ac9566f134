package model

import "encoding/json"

// FieldSpec は呼び出し元が指定するカスタムフィールドの名前と値のペア。
// 名前はプロバイダーが宣言したフィールド名と大文字小文字を無視して照合される。
type FieldSpec struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// FieldUpdateResult は1フィールドの更新成功を表す。
type FieldUpdateResult struct {
	FieldID string `json:"fieldId"`
	Success bool   `json:"success"`
}

// FieldUpdateError は1フィールドの更新失敗を表す。
// 他フィールドの更新はこの失敗に影響されない。
type FieldUpdateError struct {
	FieldID string `json:"fieldId"`
	Error   string `json:"error"`
}

// TaskRef はタスクが属するリスト・フォルダ・スペースへの参照。
type TaskRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Assignee はタスク担当者の射影。
type Assignee struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Task はClickUpタスクのフラット化された射影。
// priorityとtagsはプロバイダーのレスポンスをそのまま通す。
type Task struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	URL         string          `json:"url"`
	List        TaskRef         `json:"list"`
	Folder      TaskRef         `json:"folder"`
	Space       TaskRef         `json:"space"`
	Assignees   []Assignee      `json:"assignees"`
	Priority    json.RawMessage `json:"priority"`
	DueDate     *string         `json:"dueDate"`
	Tags        json.RawMessage `json:"tags"`
}

// Workspace はClickUpワークスペース（チーム）とそのスペース一覧。
// スペースはプロバイダーのレスポンスをそのまま通す。
type Workspace struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Color  string          `json:"color"`
	Avatar *string         `json:"avatar"`
	Spaces json.RawMessage `json:"spaces"`
}
