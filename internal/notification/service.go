package notification

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nao1215/gigboard/pkg/event"
)

// Service は通知の書き込み、フィード取得、既読化を提供する。
// 状態はすべてStoreに保持し、Service自身はリクエスト間で状態を共有しない。
type Service struct {
	// store は通知の永続化層。
	store Store
	// validate は入力値の検証器。
	validate *validator.Validate
	// now は現在時刻を返す関数。テストで差し替える。
	now func() time.Time
	// newID は通知IDを生成する関数。
	newID func() (string, error)
}

// Option はServiceの設定を変更する関数。
type Option func(*Service)

// WithClock は現在時刻を返す関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator は通知IDの生成関数を差し替える。
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// NewService は新しいServiceを生成する。
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		validate: newValidator(),
		now:      time.Now,
		newID:    newUUIDv7,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newUUIDv7 は時刻順に並ぶUUIDv7を生成する。
// 同一ミリ秒内でも単調増加するため、作成日時が同じ通知の挿入順を表す。
func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// newValidator はJSONタグ名でエラー項目を報告する検証器を生成する。
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NormalizeRecipient は受信者のメールアドレスを比較可能な形に正規化する。
func NormalizeRecipient(recipient string) string {
	return strings.ToLower(strings.TrimSpace(recipient))
}

// timestamp はミリ秒に丸めたUTCの現在時刻を返す。
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Create は通知を1件作成し、そのIDを返す。
// 必須項目が欠けている場合は*ValidationErrorを返し、何も保存しない。
// 関連エンティティの存在は確認しない。
func (s *Service) Create(ctx context.Context, in CreateInput) (string, error) {
	in.Recipient = NormalizeRecipient(in.Recipient)
	in.Kind = event.Type(strings.TrimSpace(string(in.Kind)))
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)

	if err := s.validateInput(in); err != nil {
		return "", err
	}

	id, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("通知IDの生成に失敗: %w", err)
	}

	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	now := s.timestamp()
	n := &Notification{
		ID:                id,
		Recipient:         in.Recipient,
		Kind:              in.Kind,
		Title:             in.Title,
		Body:              in.Body,
		RelatedEntityType: strings.TrimSpace(in.RelatedEntityType),
		RelatedEntityID:   strings.TrimSpace(in.RelatedEntityID),
		Metadata:          metadata,
		IsRead:            false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return "", storeError("通知の作成に失敗", err)
	}
	return id, nil
}

// validateInput は作成入力を検証する。
// 既知の種類の場合はmetadataが種類ごとの形式を満たすことも確認する。
func (s *Service) validateInput(in CreateInput) error {
	fields := map[string]string{}

	if err := s.collectViolations(in, "", fields); err != nil {
		return err
	}

	if in.Kind.Known() {
		payload, err := event.Decode(in.Kind, in.Metadata)
		if err != nil {
			fields["metadata"] = fmt.Sprintf("%s の形式ではありません", in.Kind)
		} else if err := s.collectViolations(payload, "metadata.", fields); err != nil {
			return err
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// collectViolations は構造体を検証し、違反をfieldsに追加する。
// 検証そのものが実行できない場合のみエラーを返す。
func (s *Service) collectViolations(v any, prefix string, fields map[string]string) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("入力値の検証に失敗: %w", err)
	}
	for _, fe := range verrs {
		fields[prefix+fe.Field()] = violationReason(fe)
	}
	return nil
}

// violationReason は検証タグに対応する理由の文言を返す。
func violationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必須項目です"
	case "email":
		return "メールアドレスの形式ではありません"
	default:
		return fmt.Sprintf("%s の条件を満たしていません", fe.Tag())
	}
}

// ListFeed は受信者の通知を新しい順に1ページ分返す。
// recipientは認証済みのIDから解決した値であり、空の場合はErrUnauthenticatedを返す。
// UnreadCountは絞り込み条件やページングに関係なく受信者の未読総数になる。
func (s *Service) ListFeed(ctx context.Context, recipient string, opts FeedOptions) (*Feed, error) {
	recipient = NormalizeRecipient(recipient)
	if recipient == "" {
		return nil, ErrUnauthenticated
	}

	items, err := s.store.Find(ctx, Query{
		Recipient:  recipient,
		OnlyUnread: opts.OnlyUnread,
		After:      utcPtr(opts.After),
		Before:     ceilMilliPtr(opts.Cursor),
		Limit:      ClampLimit(opts.Limit),
	})
	if err != nil {
		return nil, storeError("通知一覧の取得に失敗", err)
	}

	unread, err := s.store.CountUnread(ctx, recipient)
	if err != nil {
		return nil, storeError("未読件数の取得に失敗", err)
	}

	if items == nil {
		items = []Notification{}
	}
	feed := &Feed{
		Items:       items,
		UnreadCount: unread,
		Now:         s.timestamp(),
	}
	if len(items) > 0 {
		oldest := items[len(items)-1].CreatedAt
		feed.NextCursor = &oldest
	}
	return feed, nil
}

// MarkRead は受信者の通知を既読にし、再計算した未読件数を返す。
// IDsが指定されていればIDsを、なければAllBeforeを条件にする。
// どちらもない場合は何も更新せずに現在の未読件数を返す。
// 既読の通知は更新対象にならないため、同じ呼び出しを繰り返しても追加の書き込みは発生しない。
func (s *Service) MarkRead(ctx context.Context, recipient string, in MarkReadInput) (*MarkReadResult, error) {
	recipient = NormalizeRecipient(recipient)
	if recipient == "" {
		return nil, ErrUnauthenticated
	}

	ids := uniqueIDs(in.IDs)
	if len(ids) > MaxMarkReadIDs {
		return nil, newValidationError("ids", fmt.Sprintf("一度に指定できるのは%d件までです", MaxMarkReadIDs))
	}

	filter := ReadFilter{Recipient: recipient}
	switch {
	case len(ids) > 0:
		filter.IDs = ids
	case in.AllBefore != nil:
		filter.AllBefore = utcPtr(in.AllBefore)
	}

	var updated int64
	if !filter.Empty() {
		n, err := s.store.MarkRead(ctx, filter, s.timestamp())
		if err != nil {
			return nil, storeError("通知の既読化に失敗", err)
		}
		updated = n
	}

	unread, err := s.store.CountUnread(ctx, recipient)
	if err != nil {
		return nil, storeError("未読件数の取得に失敗", err)
	}

	return &MarkReadResult{Updated: updated, UnreadCount: unread}, nil
}

// UnreadCount は受信者の未読通知の件数を返す。
func (s *Service) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	recipient = NormalizeRecipient(recipient)
	if recipient == "" {
		return 0, ErrUnauthenticated
	}

	unread, err := s.store.CountUnread(ctx, recipient)
	if err != nil {
		return 0, storeError("未読件数の取得に失敗", err)
	}
	return unread, nil
}

// Ping は永続化層への疎通を確認する。
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return storeError("疎通確認に失敗", err)
	}
	return nil
}

// uniqueIDs は空文字列と重複を取り除いたIDを返す。
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// utcPtr はUTCに変換した時刻のポインタを返す。
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// ceilMilliPtr はUTCに変換し、ミリ秒未満の端数があれば次のミリ秒に切り上げる。
// 保存される作成日時はミリ秒精度のため、「cursorより前」の上限は切り上げても
// 対象が変わらず、切り捨てるとcursor直前の通知が漏れる。
func ceilMilliPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	if r := u.Truncate(time.Millisecond); !r.Equal(u) {
		u = r.Add(time.Millisecond)
	}
	return &u
}
