package model

import "time"

// UserSummary はClickUpユーザーオブジェクトのパススルー射影。
// プロバイダーのレスポンスに存在しないフィールドは省略され、捏造されない。
type UserSummary struct {
	ID             int64  `json:"id,omitempty"`
	Username       string `json:"username,omitempty"`
	Email          string `json:"email,omitempty"`
	Color          string `json:"color,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// PendingCredential はリレーストアに一時保管される認可結果。
// コールバックが生成し、プラグインのポーリングが一度だけ消費する。
type PendingCredential struct {
	AccessToken string
	User        *UserSummary
	CreatedAt   time.Time
}
