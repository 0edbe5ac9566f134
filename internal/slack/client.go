// Package slack はSlack Web APIのクライアントを提供する。
// チャンネル/ユーザーディレクトリのページネーション付きミラーリングと
// Incoming Webhookへの転送を含む。
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

const (
	// defaultBaseURL はSlack Web APIのベースURL。
	defaultBaseURL = "https://slack.com/api"
	// pageSize は1ページあたりの取得件数。
	pageSize = 200
	// serviceName はメトリクスのserviceラベル値。
	serviceName = "slack"
)

// Metrics は上流リクエストの計測フック。nilの場合は記録しない。
type Metrics interface {
	RecordUpstreamRequest(service string)
	RecordUpstreamFailure(service string)
	RecordUpstreamLatency(service string, duration time.Duration)
}

// Client はSlack Web APIのクライアント。
// ボットトークンはリクエストごとに呼び出し元から渡される。
// ページ間はレートリミッターで間隔を空け、Slackのレート制限を避ける。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     Metrics
	baseURL     string // テスト用にオーバーライド可能
	pageLimiter *rate.Limiter
}

// NewClient はClientの新しいインスタンスを生成する。
// pageIntervalはページネーションの連続リクエスト間の最小間隔。
func NewClient(httpClient *http.Client, logger *slog.Logger, pageInterval rate.Limit, metrics Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		metrics:     metrics,
		baseURL:     defaultBaseURL,
		pageLimiter: rate.NewLimiter(pageInterval, 1),
	}
}

// rawChannel はconversations.listのチャンネル表現。
type rawChannel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPrivate  bool   `json:"is_private"`
	IsChannel  bool   `json:"is_channel"`
	IsGroup    bool   `json:"is_group"`
	IsIM       bool   `json:"is_im"`
	IsArchived bool   `json:"is_archived"`
	NumMembers int    `json:"num_members"`
}

// rawMember はusers.listのユーザー表現。
type rawMember struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Deleted  bool   `json:"deleted"`
	IsBot    bool   `json:"is_bot"`
	RealName string `json:"real_name"`
	Profile  struct {
		Email string `json:"email"`
		Title string `json:"title"`
	} `json:"profile"`
}

// slackEnvelope は全Slack APIレスポンスの共通部分。
type slackEnvelope struct {
	OK               bool   `json:"ok"`
	Error            string `json:"error"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// ListChannels は公開・非公開チャンネルの全ページを取得し、
// アーカイブ済みを除外して名前順で返す。
func (c *Client) ListChannels(ctx context.Context, token string) ([]model.Channel, error) {
	var all []rawChannel

	cursor := ""
	for {
		params := url.Values{
			"types":            {"public_channel,private_channel"},
			"exclude_archived": {"true"},
			"limit":            {fmt.Sprint(pageSize)},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		body, err := c.getPage(ctx, token, "/conversations.list", params)
		if err != nil {
			return nil, err
		}

		var page struct {
			slackEnvelope
			Channels []rawChannel `json:"channels"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to parse conversations.list response: %w", err)
		}
		if !page.OK {
			return nil, slackAPIError(page.Error)
		}

		all = append(all, page.Channels...)
		cursor = page.ResponseMetadata.NextCursor
		if cursor == "" {
			break
		}
	}

	channels := make([]model.Channel, 0, len(all))
	for _, ch := range all {
		if ch.IsArchived {
			continue
		}
		channels = append(channels, model.Channel{
			ID:         ch.ID,
			Name:       ch.Name,
			IsPrivate:  ch.IsPrivate,
			IsChannel:  ch.IsChannel,
			IsGroup:    ch.IsGroup,
			IsIM:       ch.IsIM,
			NumMembers: ch.NumMembers,
		})
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })

	return channels, nil
}

// ListUsers は全ユーザーのページを取得し、削除済みユーザー・ボット・
// slackbotを除外して名前順で返す。
func (c *Client) ListUsers(ctx context.Context, token string) ([]model.SlackUser, error) {
	var all []rawMember

	cursor := ""
	for {
		params := url.Values{
			"limit": {fmt.Sprint(pageSize)},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		body, err := c.getPage(ctx, token, "/users.list", params)
		if err != nil {
			return nil, err
		}

		var page struct {
			slackEnvelope
			Members []rawMember `json:"members"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to parse users.list response: %w", err)
		}
		if !page.OK {
			return nil, slackAPIError(page.Error)
		}

		all = append(all, page.Members...)
		cursor = page.ResponseMetadata.NextCursor
		if cursor == "" {
			break
		}
	}

	users := make([]model.SlackUser, 0, len(all))
	for _, m := range all {
		if m.Deleted || m.IsBot || m.ID == "USLACKBOT" {
			continue
		}
		name := m.RealName
		if name == "" {
			name = m.Name
		}
		role := m.Profile.Title
		if role == "" {
			role = "Team Member"
		}
		users = append(users, model.SlackUser{
			ID:       m.ID,
			Name:     name,
			Username: m.Name,
			Email:    m.Profile.Email,
			Role:     role,
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })

	return users, nil
}

// getPage は1ページ分のSlack APIリクエストを実行し、ボディを返す。
// ページ間の最小間隔はレートリミッターで保証される。
func (c *Client) getPage(ctx context.Context, token, path string, params url.Values) ([]byte, error) {
	if err := c.pageLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("page interval wait canceled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
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
		return nil, fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read slack response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if c.metrics != nil {
			c.metrics.RecordUpstreamFailure(serviceName)
		}
		c.logger.Error("slack api returned error status",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewUpstreamError("Slack API error",
			fmt.Sprintf("unexpected status %d", resp.StatusCode),
			http.StatusBadGateway,
		)
	}

	return body, nil
}

// slackAPIError はSlackのok:falseレスポンスをupstreamエラーに変換する。
func slackAPIError(detail string) error {
	return model.NewUpstreamError("Slack API error", detail, http.StatusBadRequest)
}
