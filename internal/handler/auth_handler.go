package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/relay"
)

// OAuthService は認可ハンドラーが必要とするOAuthプロバイダーインターフェース。
type OAuthService interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchUser(ctx context.Context, accessToken string) (*model.UserSummary, error)
}

// RelayStore は資格情報の一時保管インターフェース。
type RelayStore interface {
	Put(key string, cred model.PendingCredential) error
	TakeOnce(key string) (model.PendingCredential, bool)
}

// AuthHandlerConfig は認可ハンドラーの設定。
type AuthHandlerConfig struct {
	HasOAuthClient bool // client idとredirect uriが設定済みか
	HasOAuthSecret bool // client idとclient secretが設定済みか
}

// AuthHandler はClickUp OAuth認可フローと資格情報中継のHTTPハンドラー。
type AuthHandler struct {
	provider OAuthService
	store    RelayStore
	keygen   relay.KeyGenerator
	config   AuthHandlerConfig
	logger   *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(provider OAuthService, store RelayStore, keygen relay.KeyGenerator, config AuthHandlerConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		store:    store,
		keygen:   keygen,
		config:   config,
		logger:   logger,
	}
}

// Authorize は認可URLとCSRF対策のstateを発行する。
// この時点では中継ストアへの書き込みは行わない。資格情報が
// 存在して初めてstateがキーとして登録される。
// GET /api/clickup/authorize
func (h *AuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	if !h.config.HasOAuthClient {
		writeError(w, h.logger, model.NewConfigurationError("ClickUp OAuth credentials not configured"))
		return
	}

	state, err := h.keygen.NewKey()
	if err != nil {
		h.logger.Error("failed to generate state", slog.String("error", err.Error()))
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"authUrl": h.provider.AuthorizationURL(state),
		"state":   state,
	})
}

// Callback はプロバイダーからのリダイレクトを処理する。
// コード交換とユーザー取得の後、資格情報をstateキーで中継ストアに
// 公開し、ポップアップ用のHTMLページを返す。ユーザー取得の失敗は
// 致命的ではなく、user=nullのまま続行する。
// GET /api/clickup/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, h.logger, model.NewMissingFieldError("authorization code"))
		return
	}
	if !h.config.HasOAuthSecret {
		writeError(w, h.logger, model.NewConfigurationError("ClickUp OAuth credentials not configured"))
		return
	}

	state := r.URL.Query().Get("state")

	token, user, err := h.reconcile(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth callback failed", slog.String("error", err.Error()))
		renderErrorPage(w, http.StatusBadRequest, callbackErrorDetail(err))
		return
	}

	// ポップアップが閉じられてもプラグインがポーリングで取得できるよう、
	// 先に中継ストアへ公開する。失敗してもページ表示は続行する。
	if state != "" {
		if err := h.store.Put(state, model.PendingCredential{
			AccessToken: token,
			User:        user,
		}); err != nil {
			h.logger.Error("failed to store credential",
				slog.String("error", err.Error()),
			)
		}
	} else {
		h.logger.Warn("callback without state, credential not relayed")
	}

	if err := renderSuccessPage(w, callbackPayload{
		AccessToken: token,
		User:        user,
		State:       state,
	}); err != nil {
		h.logger.Error("failed to render success page", slog.String("error", err.Error()))
	}
}

// CallbackDirect は手動で貼り付けられたコードを交換する。
// 中継ストアには触れず、資格情報をJSONで直接返す。
// POST /api/clickup/callback body: {code}
func (h *AuthHandler) CallbackDirect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if body.Code == "" {
		writeError(w, h.logger, model.NewMissingFieldError("authorization code"))
		return
	}
	if !h.config.HasOAuthSecret {
		writeError(w, h.logger, model.NewConfigurationError("ClickUp OAuth credentials not configured"))
		return
	}

	token, user, err := h.reconcile(r.Context(), body.Code)
	if err != nil {
		h.logger.Error("oauth callback failed", slog.String("error", err.Error()))
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"access_token": token,
		"user":         user,
	})
}

// reconcile はコードをトークンに交換し、ユーザー情報を付加する。
func (h *AuthHandler) reconcile(ctx context.Context, code string) (string, *model.UserSummary, error) {
	token, err := h.provider.ExchangeCode(ctx, code)
	if err != nil {
		return "", nil, err
	}

	user, err := h.provider.FetchUser(ctx, token)
	if err != nil {
		// トークンが使えることの方が重要なので続行する
		h.logger.Warn("user fetch failed", slog.String("error", err.Error()))
		user = nil
	}

	return token, user, nil
}

// RetrieveToken は中継ストアから資格情報を取り出す。取り出しは一度きりで、
// 見つからない場合は通常のポーリング結果として200で返す。
// GET /api/clickup/token-exchange?state=yyy
func (h *AuthHandler) RetrieveToken(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		writeError(w, h.logger, model.NewMissingFieldError("state parameter"))
		return
	}

	cred, ok := h.store.TakeOnce(state)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "Token not found or expired",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"access_token": cred.AccessToken,
		"user":         cred.User,
	})
}

// StoreToken は資格情報をstateキーで中継ストアに保存する。
// POST /api/clickup/token-exchange?state=yyy body: {access_token, user}
func (h *AuthHandler) StoreToken(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		writeError(w, h.logger, model.NewMissingFieldError("state parameter"))
		return
	}

	var body struct {
		AccessToken string             `json:"access_token"`
		User        *model.UserSummary `json:"user"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.store.Put(state, model.PendingCredential{
		AccessToken: body.AccessToken,
		User:        body.User,
	}); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// callbackErrorDetail はHTMLエラーページに表示する文言を決める。
func callbackErrorDetail(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Details != "" {
		return apiErr.Details
	}
	return "Authorization could not be completed."
}
