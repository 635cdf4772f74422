package notification

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated は受信者の認証済みIDが解決できないことを表す。
	ErrUnauthenticated = errors.New("認証済みのユーザーを特定できません")
	// ErrStoreUnavailable は永続化層に到達できないことを表す。
	ErrStoreUnavailable = errors.New("通知ストアを利用できません")
)

// ValidationError は入力値の検証エラー。
// Fields は項目名から理由へのマップ。
type ValidationError struct {
	Fields map[string]string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "入力値が不正です: " + strings.Join(msgs, "; ")
}

// newValidationError は1項目だけの検証エラーを生成する。
func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// storeError は永続化層のエラーをErrStoreUnavailableでラップする。
func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
