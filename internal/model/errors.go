package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, ledger, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingAuthCode      = "MISSING_AUTH_CODE"
	ErrCodeAuthorizationDenied  = "AUTHORIZATION_DENIED"
	ErrCodeMissingIDToken       = "MISSING_ID_TOKEN"
	ErrCodeInvalidIDToken       = "INVALID_ID_TOKEN"
	ErrCodeUpstreamExchange     = "UPSTREAM_EXCHANGE_FAILED"
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeInternal             = "INTERNAL_ERROR"
	ErrCodeValidation           = "VALIDATION_FAILED"
	ErrCodeInvalidQuery         = "INVALID_QUERY"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeCategoryNotFound     = "CATEGORY_NOT_FOUND"
	ErrCodeFinancePeriodMissing = "FINANCE_PERIOD_NOT_FOUND"
	ErrCodeReferenceNotFound    = "REFERENCE_NOT_FOUND"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeForbiddenOrigin      = "FORBIDDEN_ORIGIN"
)

// NewMissingAuthCodeError は認可コードが付与されていないコールバックのエラーを生成する。
func NewMissingAuthCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingAuthCode,
		Message:  "Missing authorization code.",
		Category: "validation",
		Action:   "ログインをやり直してください。",
	}
}

// NewAuthorizationDeniedError はIdPが認可を拒否した場合のエラーを生成する。
func NewAuthorizationDeniedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthorizationDenied,
		Message:  fmt.Sprintf("Authorization was not granted: %s", reason),
		Category: "validation",
		Action:   "Googleアカウントへのアクセスを許可してから再度ログインしてください。",
	}
}

// NewMissingIDTokenError はトークン交換レスポンスにid_tokenが含まれない場合のエラーを生成する。
func NewMissingIDTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingIDToken,
		Message:  "Missing id_token in response.",
		Category: "validation",
		Action:   "ログインをやり直してください。",
	}
}

// NewInvalidIDTokenError はid_tokenの検証に失敗した場合のエラーを生成する。
func NewInvalidIDTokenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidIDToken,
		Message:  fmt.Sprintf("Invalid id_token: %s", reason),
		Category: "validation",
		Action:   "ログインをやり直してください。",
	}
}

// NewUpstreamExchangeError はIdPのトークンエンドポイントとの通信に失敗した場合のエラーを生成する。
// 詳細はログのみに記録し、呼び出し元には返さない。
func NewUpstreamExchangeError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamExchange,
		Message:  "Internal Server Error",
		Category: "upstream",
		Action:   "しばらく待ってから再度ログインしてください。",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal Server Error",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewValidationError はリクエストボディの検証エラーを生成する。
func NewValidationError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("Invalid request: %s", detail),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidQueryError はクエリパラメータが不正な場合のエラーを生成する。
func NewInvalidQueryError(param string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  fmt.Sprintf("Invalid query parameter: %s", param),
		Category: "validation",
		Action:   "クエリパラメータを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewCategoryNotFoundError はカテゴリが存在しないか他ユーザーのものである場合のエラーを生成する。
func NewCategoryNotFoundError(categoryID int64) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("Transaction category not found: %d", categoryID),
		Category: "ledger",
		Action:   "カテゴリを確認してください。",
	}
}

// NewFinancePeriodNotFoundError は期間が存在しないか他ユーザーのものである場合のエラーを生成する。
func NewFinancePeriodNotFoundError(periodID int64) *APIError {
	return &APIError{
		Code:     ErrCodeFinancePeriodMissing,
		Message:  fmt.Sprintf("Finance period not found: %d", periodID),
		Category: "ledger",
		Action:   "期間を確認してください。",
	}
}

// NewReferenceNotFoundError は参照先（ウォレット、通貨、保管場所）が存在しない場合のエラーを生成する。
func NewReferenceNotFoundError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeReferenceNotFound,
		Message:  fmt.Sprintf("Referenced record not found: %s", field),
		Category: "ledger",
		Action:   "指定したIDを確認してください。",
	}
}

// NewRateLimitedError はレート制限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再試行してください。",
	}
}

// NewForbiddenOriginError は許可されていないオリジンからの状態変更リクエストのエラーを生成する。
func NewForbiddenOriginError() *APIError {
	return &APIError{
		Code:     ErrCodeForbiddenOrigin,
		Message:  "Request origin is not allowed.",
		Category: "auth",
		Action:   "許可されたフロントエンドから操作してください。",
	}
}
