// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// レスポンスの error / details ペアと、推奨HTTPステータスを保持する。
type APIError struct {
	Code    string // エラーコード
	Message string // エラーメッセージ（レスポンスのerrorフィールド）
	Details string // 補足情報（プロバイダー由来のエラーテキストなど）
	Status  int    // 推奨HTTPステータスコード
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidArgument = "INVALID_ARGUMENT"
	ErrCodeConfiguration   = "CONFIGURATION_ERROR"
	ErrCodeUpstream        = "UPSTREAM_ERROR"
	ErrCodePartialFailure  = "PARTIAL_FAILURE"
)

// NewMissingFieldError は必須フィールド欠落のエラーを生成する。
// メッセージには欠落したフィールド名を含める。
func NewMissingFieldError(field string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidArgument,
		Message: "Missing " + field,
		Status:  400,
	}
}

// NewInvalidArgumentError は不正な入力のエラーを生成する。
func NewInvalidArgumentError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidArgument,
		Message: message,
		Status:  400,
	}
}

// NewConfigurationError はサーバー設定不備のエラーを生成する。
// detailsには欠落した設定の名前のみを含め、値は決して含めない。
func NewConfigurationError(details string) *APIError {
	return &APIError{
		Code:    ErrCodeConfiguration,
		Message: "Server configuration error",
		Details: details,
		Status:  500,
	}
}

// NewUpstreamError はプロバイダーAPIの失敗を表すエラーを生成する。
// プロバイダー自身のエラーテキストをdetailsとして伝搬する。
// statusにはプロバイダーがクライアント起因を示した場合は4xx、
// それ以外は5xxを渡す。
func NewUpstreamError(message, details string, status int) *APIError {
	if details == "" {
		details = "Unknown error"
	}
	return &APIError{
		Code:    ErrCodeUpstream,
		Message: message,
		Details: details,
		Status:  status,
	}
}
