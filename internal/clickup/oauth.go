// Package clickup はClickUp APIのクライアントを提供する。
// OAuthのトークン交換、タスク取得、カスタムフィールド更新、
// ワークスペース/スペース/タスクの一覧取得を含む。
package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

const (
	defaultAuthorizeURL = "https://app.clickup.com/api"
	defaultTokenURL     = "https://api.clickup.com/api/v2/oauth/token"
	defaultUserURL      = "https://api.clickup.com/api/v2/user"
)

// OAuthConfig はClickUp OAuthプロバイダーの設定。
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// テスト用にオーバーライド可能なURL
	AuthorizeURL string
	TokenURL     string
	UserURL      string
}

// OAuthProvider はClickUp OAuth 2.0のトークン交換とユーザー取得を提供する。
type OAuthProvider struct {
	config     OAuthConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOAuthProvider はOAuthProviderを生成する。
func NewOAuthProvider(config OAuthConfig, httpClient *http.Client, logger *slog.Logger) *OAuthProvider {
	if config.AuthorizeURL == "" {
		config.AuthorizeURL = defaultAuthorizeURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	if config.UserURL == "" {
		config.UserURL = defaultUserURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuthProvider{config: config, httpClient: httpClient, logger: logger}
}

// AuthorizationURL はClickUpの認可URLを生成する。
// stateには認可試行ごとの相関キーを渡す（CSRF対策を兼ねる）。
func (p *OAuthProvider) AuthorizationURL(state string) string {
	params := url.Values{
		"client_id":    {p.config.ClientID},
		"redirect_uri": {p.config.RedirectURI},
		"state":        {state},
	}
	return p.config.AuthorizeURL + "?" + params.Encode()
}

// tokenResponse はClickUpトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// userResponse はClickUpユーザーエンドポイントのレスポンス。
type userResponse struct {
	User *model.UserSummary `json:"user"`
}

// ExchangeCode は認可コードをアクセストークンに交換する。
// プロバイダーが非成功ステータスを返した場合はそのエラーテキストを
// 伝搬するupstreamエラーを返す。
func (p *OAuthProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":     p.config.ClientID,
		"client_secret": p.config.ClientSecret,
		"code":          code,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Error("clickup token exchange failed",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", model.NewUpstreamError(
			"Failed to exchange authorization code",
			upstreamErrorDetail(body),
			http.StatusBadRequest,
		)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	return tokenResp.AccessToken, nil
}

// FetchUser はアクセストークンで認証済みユーザーを取得する。
// 呼び出し元にとってこの失敗は致命的ではない（トークンの有用性が
// プロフィール補完より優先される）。
func (p *OAuthProvider) FetchUser(ctx context.Context, accessToken string) (*model.UserSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	req.Header.Set("Authorization", accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewUpstreamError(
			"Failed to fetch user",
			upstreamErrorDetail(body),
			http.StatusBadGateway,
		)
	}

	var userResp userResponse
	if err := json.Unmarshal(body, &userResp); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}

	return userResp.User, nil
}

// upstreamErrorBody はClickUpのエラーレスポンスのボディ。
// エンドポイントによって err / error のどちらかが使われる。
type upstreamErrorBody struct {
	Err   string `json:"err"`
	Error string `json:"error"`
}

// upstreamErrorDetail はClickUpのエラーボディからエラーテキストを取り出す。
// どちらのフィールドも無い場合は空文字列を返す。
func upstreamErrorDetail(body []byte) string {
	var e upstreamErrorBody
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	if e.Err != "" {
		return e.Err
	}
	return e.Error
}
