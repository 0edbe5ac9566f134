package relay

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/model"
)

func newTestStore(ttl time.Duration) *Store {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewStore(ttl, logger, nil)
}

func TestStore_PutThenTakeOnce(t *testing.T) {
	s := newTestStore(5 * time.Minute)

	cred := model.PendingCredential{
		AccessToken: "token-abc",
		User:        &model.UserSummary{ID: 42, Username: "designer"},
	}
	if err := s.Put("key-1", cred); err != nil {
		t.Fatalf("Put がエラーを返した: %v", err)
	}

	got, ok := s.TakeOnce("key-1")
	if !ok {
		t.Fatal("TakeOnce = not found, want found")
	}
	if got.AccessToken != "token-abc" {
		t.Errorf("AccessToken = %s, want token-abc", got.AccessToken)
	}
	if got.User == nil || got.User.ID != 42 {
		t.Errorf("User = %+v, want ID 42", got.User)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt が設定されていない")
	}
}

func TestStore_SecondTakeReturnsNotFound(t *testing.T) {
	s := newTestStore(5 * time.Minute)

	if err := s.Put("key-1", model.PendingCredential{AccessToken: "t"}); err != nil {
		t.Fatalf("Put がエラーを返した: %v", err)
	}

	if _, ok := s.TakeOnce("key-1"); !ok {
		t.Fatal("1回目のTakeOnceが失敗した")
	}
	if _, ok := s.TakeOnce("key-1"); ok {
		t.Error("2回目のTakeOnceは not found を返さなければならない")
	}
}

func TestStore_TakeOnceUnknownKey(t *testing.T) {
	s := newTestStore(5 * time.Minute)

	if _, ok := s.TakeOnce("never-stored"); ok {
		t.Error("未登録キーのTakeOnceは not found を返さなければならない")
	}
}

func TestStore_PutOverwritesExistingEntry(t *testing.T) {
	s := newTestStore(5 * time.Minute)

	if err := s.Put("key-1", model.PendingCredential{AccessToken: "old"}); err != nil {
		t.Fatalf("Put がエラーを返した: %v", err)
	}
	if err := s.Put("key-1", model.PendingCredential{AccessToken: "new"}); err != nil {
		t.Fatalf("2回目のPut がエラーを返した: %v", err)
	}

	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1（上書きであり追記ではない）", s.Len())
	}

	got, ok := s.TakeOnce("key-1")
	if !ok {
		t.Fatal("TakeOnce = not found, want found")
	}
	if got.AccessToken != "new" {
		t.Errorf("AccessToken = %s, want new", got.AccessToken)
	}
}

func TestStore_PutValidation(t *testing.T) {
	s := newTestStore(5 * time.Minute)

	if err := s.Put("", model.PendingCredential{AccessToken: "t"}); err == nil {
		t.Error("空キーのPutはエラーを返さなければならない")
	}
	if err := s.Put("key-1", model.PendingCredential{}); err == nil {
		t.Error("空トークンのPutはエラーを返さなければならない")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0（エラー時はストアを変更しない）", s.Len())
	}
}

func TestStore_TakeOnceAfterTTLExpiry(t *testing.T) {
	s := newTestStore(5 * time.Minute)

	base := time.Now()
	s.now = func() time.Time { return base }

	if err := s.Put("key-1", model.PendingCredential{AccessToken: "t"}); err != nil {
		t.Fatalf("Put がエラーを返した: %v", err)
	}

	// TTL超過後はスイープが走っていなくても取得できない
	s.now = func() time.Time { return base.Add(5*time.Minute + time.Second) }

	if _, ok := s.TakeOnce("key-1"); ok {
		t.Error("TTL超過後のTakeOnceは not found を返さなければならない")
	}
}

func TestStore_SweepRemovesOnlyExpiredEntries(t *testing.T) {
	s := newTestStore(5 * time.Minute)

	base := time.Now()
	s.now = func() time.Time { return base }
	if err := s.Put("old", model.PendingCredential{AccessToken: "t1"}); err != nil {
		t.Fatalf("Put がエラーを返した: %v", err)
	}

	s.now = func() time.Time { return base.Add(4 * time.Minute) }
	if err := s.Put("fresh", model.PendingCredential{AccessToken: "t2"}); err != nil {
		t.Fatalf("Put がエラーを返した: %v", err)
	}

	s.now = func() time.Time { return base.Add(5*time.Minute + time.Second) }
	removed := s.Sweep()

	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := s.TakeOnce("fresh"); !ok {
		t.Error("未期限切れエントリがスイープで消えた")
	}
}

func TestStore_ConcurrentTakeOnceSingleWinner(t *testing.T) {
	s := newTestStore(5 * time.Minute)

	if err := s.Put("contested", model.PendingCredential{AccessToken: "t"}); err != nil {
		t.Fatalf("Put がエラーを返した: %v", err)
	}

	const goroutines = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := s.TakeOnce("contested"); ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners != 1 {
		t.Errorf("winners = %d, want 1（並行TakeOnceで勝者は1つだけ）", winners)
	}
}

func TestRandomKeyGenerator_UniqueAndNonEmpty(t *testing.T) {
	var gen RandomKeyGenerator

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := gen.NewKey()
		if err != nil {
			t.Fatalf("NewKey がエラーを返した: %v", err)
		}
		if len(key) != 32 {
			t.Fatalf("キー長 = %d, want 32（16バイトの16進表現）", len(key))
		}
		if seen[key] {
			t.Fatalf("キーが重複した: %s", key)
		}
		seen[key] = true
	}
}
