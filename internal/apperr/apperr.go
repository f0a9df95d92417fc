package apperr

import (
	"errors"
	"fmt"
)

// Kind エラーの分類
type Kind int

const (
	// KindValidation クライアント側で検出した入力不正（通信前に返す）
	KindValidation Kind = iota
	// KindNotFound ローカル状態とリモート状態の不一致
	KindNotFound
	// KindRemoteFetch リモートからの取得失敗
	KindRemoteFetch
	// KindPersistence リモートへの保存・削除失敗
	KindPersistence
	// KindUnauthenticated 未ログイン、またはSDK未準備
	KindUnauthenticated
)

// String エラー分類の文字列表現
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindRemoteFetch:
		return "remote_fetch"
	case KindPersistence:
		return "persistence"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Error アプリケーション共通の構造化エラー
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]interface{}
}

// 分類判定用のセンチネル。errors.Is(err, apperr.ErrValidation) のように使う
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrRemoteFetch     = &Error{Kind: KindRemoteFetch}
	ErrPersistence     = &Error{Kind: KindPersistence}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
)

// ErrRemoteNotFound リモートが404を返したことを示す。削除済みIDの削除を成功扱いにしたい呼び出し側が判定に使う
var ErrRemoteNotFound = errors.New("remote resource not found")

// Error errorインターフェースの実装
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap 原因エラーを返す
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 分類が一致すればtrue
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// WithContext 付加情報を設定する
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Field 検証エラーの対象フィールド名
func (e *Error) Field() string {
	if v, ok := e.Context["field"].(string); ok {
		return v
	}
	return ""
}

// NewValidationError 検証エラーを作成
func NewValidationError(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
		Context: map[string]interface{}{"field": field},
	}
}

// NewNotFoundError 対象が見つからないエラーを作成
func NewNotFoundError(resource, identifier string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s が見つかりません: %s", resource, identifier),
		Context: map[string]interface{}{
			"resource":   resource,
			"identifier": identifier,
		},
	}
}

// NewRemoteFetchError 取得失敗エラーを作成
func NewRemoteFetchError(operation string, cause error) *Error {
	return &Error{
		Kind:    KindRemoteFetch,
		Message: fmt.Sprintf("%s の取得に失敗しました", operation),
		Cause:   cause,
		Context: map[string]interface{}{"operation": operation},
	}
}

// NewPersistenceError 保存失敗エラーを作成
func NewPersistenceError(operation string, cause error) *Error {
	return &Error{
		Kind:    KindPersistence,
		Message: fmt.Sprintf("%s に失敗しました", operation),
		Cause:   cause,
		Context: map[string]interface{}{"operation": operation},
	}
}

// NewUnauthenticatedError 未認証エラーを作成
func NewUnauthenticatedError(message string) *Error {
	return &Error{
		Kind:    KindUnauthenticated,
		Message: message,
	}
}

// KindOf errのチェーン内にある最初の*Errorの分類を返す
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
