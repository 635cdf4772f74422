package notification

import (
	"context"
	"time"
)

// Store は通知の永続化層。
// 挿入、条件付き一括更新、ソートと件数制限付きの検索、件数取得を提供する。
// 実装はinternal/store/sqliteとinternal/store/mongoにある。
type Store interface {
	// Insert は通知を1件挿入する。
	Insert(ctx context.Context, n *Notification) error
	// Find は条件に一致する通知を作成日時の新しい順（同時刻はIDの降順）で返す。
	Find(ctx context.Context, q Query) ([]Notification, error)
	// CountUnread は受信者の未読通知の件数を返す。
	CountUnread(ctx context.Context, recipient string) (int64, error)
	// MarkRead は条件に一致する未読通知を既読にし、更新件数を返す。
	MarkRead(ctx context.Context, f ReadFilter, at time.Time) (int64, error)
	// Ping は永続化層への疎通を確認する。
	Ping(ctx context.Context) error
}

// Query はStore.Findの検索条件。
type Query struct {
	// Recipient は受信者。必須。
	Recipient string
	// OnlyUnread がtrueの場合、未読のみを対象にする。
	OnlyUnread bool
	// After が指定された場合、created_at > After の通知のみを対象にする。
	After *time.Time
	// Before が指定された場合、created_at < Before の通知のみを対象にする。
	Before *time.Time
	// Limit は最大件数。
	Limit int
}

// ReadFilter はStore.MarkReadの対象条件。
// IDsとAllBeforeのどちらか一方を指定する。どちらもない場合は何も更新しない。
type ReadFilter struct {
	// Recipient は受信者。必須。他人の通知は常に対象外になる。
	Recipient string
	// IDs は対象の通知ID。
	IDs []string
	// AllBefore が指定された場合、created_at <= AllBefore の通知を対象にする。
	AllBefore *time.Time
}

// Empty は更新対象を絞り込む条件がないかどうかを返す。
func (f ReadFilter) Empty() bool {
	return len(f.IDs) == 0 && f.AllBefore == nil
}
