// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// バリデーションエラーの場合はFieldsにフィールド単位の詳細を持つ。
type APIError struct {
	Code     string           // エラーコード
	Message  string           // エラーメッセージ
	Category string           // カテゴリ: validation, user, system
	Action   string           // ユーザー向け対処方法
	Fields   []FieldViolation // フィールド単位のバリデーション詳細
}

// FieldViolation はバリデーション違反のフィールド単位の詳細を表す。
type FieldViolation struct {
	Field   string // 違反したフィールド名（JSONフィールド名）
	Message string // 違反内容の説明
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeEmailConflict    = "EMAIL_CONFLICT"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeInvalidQuery     = "INVALID_QUERY"
	ErrCodeEmptySearchTerm  = "EMPTY_SEARCH_TERM"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
)

// NewValidationError はフィールド単位の詳細付きバリデーションエラーを生成する。
func NewValidationError(fields []FieldViolation) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各フィールドのエラー内容を確認して修正してください。",
		Fields:   fields,
	}
}

// NewEmailConflictError はメールアドレス重複エラーを生成する。
func NewEmailConflictError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailConflict,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "user",
		Action:   "別のメールアドレスを指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %d", id),
		Category: "user",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewInvalidQueryError は無効なクエリパラメータエラーを生成する。
func NewInvalidQueryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  fmt.Sprintf("無効なクエリパラメータです: %s", reason),
		Category: "validation",
		Action:   "パラメータの形式と範囲を確認してください。",
	}
}

// NewEmptySearchTermError は空の検索語エラーを生成する。
func NewEmptySearchTermError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptySearchTerm,
		Message:  "検索語が空です。",
		Category: "validation",
		Action:   "1文字以上の検索語を指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}
