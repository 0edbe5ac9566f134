// Package relay はブラウザリダイレクトで受け取った認可トークンを、
// リダイレクトを直接受信できないプラグインプロセスへ橋渡しする
// 一時ストアを提供する。
package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

// DefaultTTL はエントリの保持期間のデフォルト値。
const DefaultTTL = 5 * time.Minute

// Metrics はストアが発行するメトリクスのインターフェース。
// 計測が不要な場合はnilを渡せる。
type Metrics interface {
	RecordRelayStored()
	RecordRelayConsumed()
	RecordRelayExpired(count int)
	SetRelayEntries(count int)
}

// Store は相関キーごとに保留中のクレデンシャルを保持するインメモリストア。
// put/takeOnceはキー単位でアトミックに動作し、同一キーへの並行takeOnceは
// 正確に1つの呼び出しだけがクレデンシャルを観測する。
//
// 既知の制約: プロセスローカルなストアであり、複数インスタンス構成では
// 認可を開始したインスタンスと異なるインスタンスへの取得リクエストは
// 常にnot foundとなる。共有ストアが必要な場合はStoreを差し替えること。
type Store struct {
	mu      sync.Mutex
	entries map[string]model.PendingCredential

	ttl     time.Duration
	logger  *slog.Logger
	metrics Metrics

	// now はテストで時計を差し替えるためのフック。
	now func() time.Time
}

// NewStore は指定TTLのStoreを生成する。
// ttlが0以下の場合はDefaultTTLを使用する。metricsはnil可。
func NewStore(ttl time.Duration, logger *slog.Logger, metrics Metrics) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		entries: make(map[string]model.PendingCredential),
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Put は相関キーに対するクレデンシャルを無条件に上書き保存する。
// CreatedAtは保存時点のものに更新される。
// キーまたはアクセストークンが空の場合はストアを変更せずエラーを返す。
func (s *Store) Put(key string, cred model.PendingCredential) error {
	if key == "" {
		return model.NewMissingFieldError("state parameter")
	}
	if cred.AccessToken == "" {
		return model.NewMissingFieldError("access token")
	}

	cred.CreatedAt = s.now()

	s.mu.Lock()
	s.entries[key] = cred
	size := len(s.entries)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordRelayStored()
		s.metrics.SetRelayEntries(size)
	}
	return nil
}

// TakeOnce はキーに対応する未期限切れのエントリを削除して返す。
// 存在しない場合・TTL超過の場合はfalseを返す。削除と返却は単一の
// クリティカルセクションで行われ、並行呼び出しでは勝者は1つだけとなる。
func (s *Store) TakeOnce(key string) (model.PendingCredential, bool) {
	s.mu.Lock()
	cred, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	size := len(s.entries)
	s.mu.Unlock()

	if !ok {
		return model.PendingCredential{}, false
	}

	if s.metrics != nil {
		s.metrics.SetRelayEntries(size)
	}

	// 期限切れエントリはスイープ前でも取得不可
	if s.now().Sub(cred.CreatedAt) > s.ttl {
		if s.metrics != nil {
			s.metrics.RecordRelayExpired(1)
		}
		return model.PendingCredential{}, false
	}

	if s.metrics != nil {
		s.metrics.RecordRelayConsumed()
	}
	return cred, true
}

// Sweep はTTLを超過したエントリを削除し、削除件数を返す。
// 一度も取得されなかったエントリのメモリを進行中の認可数に抑える。
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for key, cred := range s.entries {
		if now.Sub(cred.CreatedAt) > s.ttl {
			delete(s.entries, key)
			removed++
		}
	}
	size := len(s.entries)
	s.mu.Unlock()

	if removed > 0 && s.metrics != nil {
		s.metrics.RecordRelayExpired(removed)
		s.metrics.SetRelayEntries(size)
	}
	return removed
}

// Len は現在のエントリ数を返す。テストおよびメトリクス用。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start は指定間隔でSweepを実行するループを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Store) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("relay sweep started",
		slog.Duration("interval", interval),
		slog.Duration("ttl", s.ttl),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("relay sweep stopped")
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.logger.Info("expired relay entries removed",
					slog.Int("removed", removed),
				)
			}
		}
	}
}
