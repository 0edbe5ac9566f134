package model

// Channel はSlackチャンネルの射影。
// アーカイブ済みチャンネルは一覧から除外される。
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPrivate  bool   `json:"is_private"`
	IsChannel  bool   `json:"is_channel"`
	IsGroup    bool   `json:"is_group"`
	IsIM       bool   `json:"is_im"`
	NumMembers int    `json:"num_members"`
}

// SlackUser はSlackユーザーの射影。
// 削除済みユーザー・ボット・slackbotは一覧から除外される。
type SlackUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}
