package httpclient

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// timeLayout はリクエストに付ける日時の書式。
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Notification はフィードに含まれる通知。
type Notification struct {
	ID                string         `json:"id"`
	Recipient         string         `json:"recipient"`
	Kind              string         `json:"kind"`
	Title             string         `json:"title"`
	Body              string         `json:"body"`
	RelatedEntityType string         `json:"relatedEntityType,omitempty"`
	RelatedEntityID   string         `json:"relatedEntityId,omitempty"`
	Metadata          map[string]any `json:"metadata"`
	IsRead            bool           `json:"isRead"`
	ReadAt            *time.Time     `json:"readAt"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Feed はフィード1ページ分のレスポンス。
type Feed struct {
	Items       []Notification `json:"items"`
	UnreadCount int64          `json:"unreadCount"`
	Now         time.Time      `json:"now"`
	NextCursor  *time.Time     `json:"nextCursor"`
}

// FeedParams はフィード取得の条件。ゼロ値の項目は送らない。
type FeedParams struct {
	OnlyUnread bool
	After      *time.Time
	Cursor     *time.Time
	Limit      int
}

// query はFeedParamsをクエリ文字列に変換する。
func (p FeedParams) query() string {
	v := url.Values{}
	if p.OnlyUnread {
		v.Set("unread", "1")
	}
	if p.After != nil {
		v.Set("after", p.After.UTC().Format(timeLayout))
	}
	if p.Cursor != nil {
		v.Set("cursor", p.Cursor.UTC().Format(timeLayout))
	}
	if p.Limit != 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// CreateRequest は通知作成のリクエスト。
type CreateRequest struct {
	Recipient         string         `json:"recipient"`
	Kind              string         `json:"kind"`
	Title             string         `json:"title"`
	Body              string         `json:"body"`
	RelatedEntityType string         `json:"relatedEntityType,omitempty"`
	RelatedEntityID   string         `json:"relatedEntityId,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// MarkReadRequest は既読化のリクエスト。
type MarkReadRequest struct {
	IDs       []string   `json:"ids,omitempty"`
	AllBefore *time.Time `json:"allBefore,omitempty"`
}

// ListFeed は認証済みユーザーのフィードを取得する。
func (c *Client) ListFeed(ctx context.Context, params FeedParams) (*Feed, error) {
	var feed Feed
	if err := c.GetJSON(ctx, "/api/v1/notifications"+params.query(), &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// UnreadCount は認証済みユーザーの未読件数を取得する。
func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var resp struct {
		UnreadCount int64 `json:"unreadCount"`
	}
	if err := c.GetJSON(ctx, "/api/v1/notifications/unread-count", &resp); err != nil {
		return 0, err
	}
	return resp.UnreadCount, nil
}

// MarkRead は通知を既読にし、既読化後の未読件数を返す。
func (c *Client) MarkRead(ctx context.Context, req MarkReadRequest) (int64, error) {
	var resp struct {
		UnreadCount int64 `json:"unreadCount"`
	}
	if err := c.PostJSON(ctx, "/api/v1/notifications/read", req, &resp); err != nil {
		return 0, err
	}
	return resp.UnreadCount, nil
}

// Create は内部APIで通知を1件作成し、IDを返す。
func (c *Client) Create(ctx context.Context, req CreateRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.PostJSON(ctx, "/api/v1/internal/notifications", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Health はサービスのヘルスチェックを行う。
func (c *Client) Health(ctx context.Context) error {
	return c.GetJSON(ctx, "/health", nil)
}
