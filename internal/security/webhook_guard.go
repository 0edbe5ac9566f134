// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// WebhookGuardService はWebhook転送のSSRF防止機能のインターフェース。
// Webhook URLは呼び出し元（プラグイン）が自由に指定できるため、
// 内部ネットワークへの到達を防ぐ必要がある。
type WebhookGuardService interface {
	// ValidateURL はWebhook URLの安全性を事前に検証する。
	// httpsスキーム以外、空ホスト、IPアドレスリテラル、
	// ローカルホスト類のホスト名を拒否する。
	ValidateURL(rawURL string) error

	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// safeurlがnet.DialerレベルでDNS解決後のIPアドレスも検証するため、
	// DNS再バインディング攻撃にも対応する。
	NewSafeClient(timeout time.Duration) *http.Client
}

// blockedHostnames は静的検証で拒否するホスト名。
var blockedHostnames = []string{
	"localhost",
	"localhost.localdomain",
	"metadata.google.internal",
}

// webhookGuard はWebhookGuardServiceの実装。
type webhookGuard struct{}

// NewWebhookGuard はWebhookGuardServiceの新しいインスタンスを生成する。
func NewWebhookGuard() *webhookGuard {
	return &webhookGuard{}
}

// ValidateURL はWebhook URLの安全性を事前に検証する。
// DNS解決を伴わない静的チェックのみを行う。解決後のIPアドレス検証は
// NewSafeClientが生成するクライアント側のDialerで行われる。
func (g *webhookGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty webhook URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}

	// Webhook転送はhttpsのみ許可する
	if !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("disallowed scheme: %s (only https is allowed)", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in webhook URL")
	}

	// IPアドレスリテラルは拒否する（正規のWebhookはホスト名を持つ）
	if ip := net.ParseIP(host); ip != nil {
		return fmt.Errorf("IP address literal not allowed: %s", ip.String())
	}

	lower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if lower == blocked {
			return fmt.Errorf("blocked host: %s", host)
		}
	}
	if strings.HasSuffix(lower, ".localhost") || strings.HasSuffix(lower, ".local") {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlのデフォルト設定でプライベートIP、ループバック、リンクローカル、
// クラウドメタデータIPへのリクエストがブロックされる。
func (g *webhookGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return safeurl.Client(config).Client
}

// compile-time interface check
var _ WebhookGuardService = (*webhookGuard)(nil)
