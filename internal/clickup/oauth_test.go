package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

func newTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil))
}

func TestAuthorizationURL_ContainsClientRedirectAndState(t *testing.T) {
	p := NewOAuthProvider(OAuthConfig{
		ClientID:    "client-123",
		RedirectURI: "https://bridge.example.com/api/clickup/callback",
	}, nil, newTestLogger())

	raw := p.AuthorizationURL("state-xyz")
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("認可URLのパースに失敗: %v", err)
	}

	q := parsed.Query()
	if q.Get("client_id") != "client-123" {
		t.Errorf("client_id = %s, want client-123", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "https://bridge.example.com/api/clickup/callback" {
		t.Errorf("redirect_uri = %s", q.Get("redirect_uri"))
	}
	if q.Get("state") != "state-xyz" {
		t.Errorf("state = %s, want state-xyz", q.Get("state"))
	}
}

func TestExchangeCode_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("HTTPメソッド = %s, want POST", r.Method)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("リクエストボディのデコードに失敗: %v", err)
		}
		if body["code"] != "auth-code" {
			t.Errorf("code = %s, want auth-code", body["code"])
		}
		if body["client_id"] != "client-123" {
			t.Errorf("client_id = %s, want client-123", body["client_id"])
		}
		if body["client_secret"] != "secret-456" {
			t.Errorf("client_secret = %s, want secret-456", body["client_secret"])
		}

		json.NewEncoder(w).Encode(map[string]string{"access_token": "pk_token"})
	}))
	defer server.Close()

	p := NewOAuthProvider(OAuthConfig{
		ClientID:     "client-123",
		ClientSecret: "secret-456",
		TokenURL:     server.URL,
	}, server.Client(), newTestLogger())

	token, err := p.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode がエラーを返した: %v", err)
	}
	if token != "pk_token" {
		t.Errorf("token = %s, want pk_token", token)
	}
}

func TestExchangeCode_UpstreamFailurePropagatesDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"err": "Code already used"})
	}))
	defer server.Close()

	p := NewOAuthProvider(OAuthConfig{TokenURL: server.URL}, server.Client(), newTestLogger())

	_, err := p.ExchangeCode(context.Background(), "stale-code")
	if err == nil {
		t.Fatal("非成功ステータスでエラーを返さなければならない")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Code != model.ErrCodeUpstream {
		t.Errorf("Code = %s, want %s", apiErr.Code, model.ErrCodeUpstream)
	}
	if apiErr.Details != "Code already used" {
		t.Errorf("Details = %s, want Code already used", apiErr.Details)
	}
}

func TestExchangeCode_EmptyTokenIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	p := NewOAuthProvider(OAuthConfig{TokenURL: server.URL}, server.Client(), newTestLogger())

	if _, err := p.ExchangeCode(context.Background(), "code"); err == nil {
		t.Error("空のaccess_tokenでエラーを返さなければならない")
	}
}

func TestFetchUser_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "pk_token" {
			t.Errorf("Authorization = %s, want pk_token", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{
				"id":       183,
				"username": "designer",
				"email":    "designer@example.com",
			},
		})
	}))
	defer server.Close()

	p := NewOAuthProvider(OAuthConfig{UserURL: server.URL}, server.Client(), newTestLogger())

	user, err := p.FetchUser(context.Background(), "pk_token")
	if err != nil {
		t.Fatalf("FetchUser がエラーを返した: %v", err)
	}
	if user == nil || user.ID != 183 {
		t.Fatalf("user = %+v, want ID 183", user)
	}
	if user.Username != "designer" {
		t.Errorf("Username = %s, want designer", user.Username)
	}
}

func TestFetchUser_FailureReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"err": "Token invalid"})
	}))
	defer server.Close()

	p := NewOAuthProvider(OAuthConfig{UserURL: server.URL}, server.Client(), newTestLogger())

	if _, err := p.FetchUser(context.Background(), "bad"); err == nil {
		t.Error("非成功ステータスでエラーを返さなければならない")
	}
}
