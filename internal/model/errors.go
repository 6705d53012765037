// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, schedule, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthentication     = "AUTHENTICATION_FAILED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeDuplicateName      = "DUPLICATE_NAME"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInvariantViolation = "INVARIANT_VIOLATION"
)

// NewAuthenticationError は認証失敗エラーを生成する。
// どの認証戦略で失敗したかは意図的に含めない（プロービング防止）。
func NewAuthenticationError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthentication,
		Message:  "authentication failed",
		Category: "auth",
		Action:   "Sign in again with valid credentials.",
	}
}

// NewForbiddenError は認可拒否エラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("operation not permitted: %s", reason),
		Category: "auth",
		Action:   "Contact an administrator if you need access to this resource.",
	}
}

// NewValidationError は入力値検証エラーを生成する。
// fieldには問題のあったフィールド名を指定する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("invalid %s: %s", field, reason),
		Category: "validation",
		Action:   "Correct the highlighted field and resubmit.",
	}
}

// NewDuplicateNameError は名称の重複エラーを生成する。
// 大文字小文字とダイアクリティカルマークを無視した照合で衝突した場合に使う。
func NewDuplicateNameError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateName,
		Message:  fmt.Sprintf("a record with an equivalent name already exists: %s", name),
		Category: "validation",
		Action:   "Choose a different name or reuse the existing record.",
	}
}

// NewConflictError は参照整合性の衝突エラーを生成する。
func NewConflictError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  fmt.Sprintf("conflicting state: %s", reason),
		Category: "schedule",
		Action:   "Remove the dependent records first, then retry.",
	}
}

// NewNotFoundError は対象未検出エラーを生成する。
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s not found: %s", resource, id),
		Category: "schedule",
		Action:   "Check the identifier and retry.",
	}
}

// NewInvariantViolationError は業務ルール違反エラーを生成する。
// 例: 最後の管理者の削除。
func NewInvariantViolationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvariantViolation,
		Message:  reason,
		Category: "schedule",
		Action:   "The operation would leave the system in an invalid state and was rejected.",
	}
}
