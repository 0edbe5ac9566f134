package relay

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// KeyGenerator は認可試行ごとの相関キーの生成戦略。
// 相関キーはOAuthのstateパラメータを兼ねるため、推測不可能で
// 試行間で再利用されないことが要求される。生成戦略はストアや
// 取得ロジックに触れずに差し替えられる。
type KeyGenerator interface {
	NewKey() (string, error)
}

// RandomKeyGenerator はcrypto/randによる128ビットの相関キーを生成する。
// デフォルトの生成戦略。
type RandomKeyGenerator struct{}

// NewKey はランダムな相関キーを16進文字列で返す。
func (RandomKeyGenerator) NewKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate correlation key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
