package notification

import (
	"time"

	"github.com/nao1215/gigboard/pkg/event"
)

const (
	// DefaultLimit はフィード1ページあたりのデフォルト件数。
	DefaultLimit = 20
	// MaxLimit はフィード1ページあたりの最大件数。
	MaxLimit = 50
	// MaxMarkReadIDs は1回の既読化で指定できるIDの最大数。
	MaxMarkReadIDs = 500
)

// Notification は受信者に届く1件の通知を表す。
// 作成後に変化するのは既読状態（IsRead, ReadAt, UpdatedAt）のみ。
type Notification struct {
	// ID は通知の一意識別子（UUIDv7）。
	ID string
	// Recipient は通知先ユーザーのメールアドレス。
	Recipient string
	// Kind は通知の種類。
	Kind event.Type
	// Title は通知の見出し。
	Title string
	// Body は通知の本文。
	Body string
	// RelatedEntityType は関連エンティティの種類。参照のみで存在確認はしない。
	RelatedEntityType string
	// RelatedEntityID は関連エンティティのID。
	RelatedEntityID string
	// Metadata は種類ごとの追加情報。
	Metadata map[string]any
	// IsRead は既読状態。falseからtrueにのみ遷移する。
	IsRead bool
	// ReadAt は既読になった日時。未読の場合はnil。
	ReadAt *time.Time
	// CreatedAt は作成日時。フィードの並び順とページングのキー。
	CreatedAt time.Time
	// UpdatedAt は最終更新日時。
	UpdatedAt time.Time
}

// Payload はKindとMetadataから種類ごとのペイロードを復元する。
func (n *Notification) Payload() (event.Payload, error) {
	return event.Decode(n.Kind, n.Metadata)
}

// CreateInput は通知作成の入力。
type CreateInput struct {
	Recipient         string         `json:"recipient" validate:"required,email"`
	Kind              event.Type     `json:"kind" validate:"required"`
	Title             string         `json:"title" validate:"required"`
	Body              string         `json:"body" validate:"required"`
	RelatedEntityType string         `json:"relatedEntityType,omitempty"`
	RelatedEntityID   string         `json:"relatedEntityId,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// FeedOptions はフィード取得の条件。
type FeedOptions struct {
	// OnlyUnread がtrueの場合、未読の通知のみを返す。
	OnlyUnread bool
	// After は作成日時の下限（この日時より後）。
	After *time.Time
	// Cursor は作成日時の上限（この日時より前）。古いページの取得に使う。
	Cursor *time.Time
	// Limit は取得件数。0以下はDefaultLimit、MaxLimitを超える値はMaxLimitになる。
	Limit int
}

// Feed はフィード1ページ分の取得結果。
type Feed struct {
	// Items は作成日時の新しい順に並んだ通知。
	Items []Notification
	// UnreadCount は受信者の未読通知の総数。絞り込み条件には影響されない。
	UnreadCount int64
	// Now はレスポンス生成時のサーバー時刻。
	Now time.Time
	// NextCursor は次の古いページを取得するためのカーソル。ページが空の場合はnil。
	NextCursor *time.Time
}

// MarkReadInput は既読化の条件。IDsが空でなければIDsが優先される。
type MarkReadInput struct {
	// IDs は既読にする通知のID。
	IDs []string
	// AllBefore はこの日時以前に作成された通知をすべて既読にする。
	AllBefore *time.Time
}

// MarkReadResult は既読化の結果。
type MarkReadResult struct {
	// Updated は今回の呼び出しで既読に変わった件数。
	Updated int64
	// UnreadCount は既読化後に再計算した未読通知の総数。
	UnreadCount int64
}

// ClampLimit はフィードの取得件数を有効な範囲に丸める。
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
