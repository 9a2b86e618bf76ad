package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidKey   = "INVALID_KEY"
	ErrCodeInvalidBody  = "INVALID_BODY"
	ErrCodeUnauthorized = "UNAUTHORIZED"
)

// NewInvalidKeyError はアカウントキーの形式が不正な場合のエラーを生成する。
func NewInvalidKeyError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidKey,
		Message:  fmt.Sprintf("無効なアカウントキーです: %s", key),
		Category: "validation",
		Action:   "キーは \"domain/userid\" 形式で指定してください（既定ドメインは空文字列）。",
	}
}

// NewInvalidBodyError はリクエストボディの解析に失敗した場合のエラーを生成する。
func NewInvalidBodyError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidBody,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "JSON形式のリクエストボディを送信してください。",
	}
}

// NewUnauthorizedError は認可されていない呼び出しに対するエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "この操作にはサーバー管理者権限が必要です。",
		Category: "auth",
		Action:   "サーバー管理者としてログインし直してください。",
	}
}
