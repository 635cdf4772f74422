// Package mongo はMongoDBに通知を保存するStoreを提供する。
// 1件の通知を1つのドキュメントとして扱う。
package mongo

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/nao1215/gigboard/internal/notification"
	"github.com/nao1215/gigboard/pkg/event"
)

// CollectionName は通知を保存するコレクション名。
const CollectionName = "notifications"

// Store はMongoDBに通知を保存する。
// 接続の所有者はOpenを呼んだ側であり、Closeで切断する。
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ notification.Store = (*Store)(nil)

// Open はMongoDBに接続し、インデックスを作成したStoreを返す。
// 失敗した場合は接続を切断してからエラーを返す。
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}))
	if err != nil {
		return nil, fmt.Errorf("MongoDBへの接続に失敗: %w", err)
	}

	s := &Store{
		client: client,
		coll:   client.Database(database).Collection(CollectionName),
	}
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("MongoDBへの疎通に失敗: %w", err)
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}
	return s, nil
}

// ensureIndexes はフィード取得と未読件数の集計に使うインデックスを作成する。
func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "recipient", Value: 1},
				{Key: "created_at", Value: -1},
				{Key: "_id", Value: -1},
			},
			Options: options.Index().SetName("recipient_created"),
		},
		{
			Keys: bson.D{
				{Key: "recipient", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().
				SetName("recipient_unread").
				SetPartialFilterExpression(bson.D{{Key: "is_read", Value: false}}),
		},
	})
	if err != nil {
		return fmt.Errorf("インデックスの作成に失敗: %w", err)
	}
	return nil
}

// Close は接続を切断する。
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// document はnotificationsコレクションのドキュメント。
type document struct {
	ID                string         `bson:"_id"`
	Recipient         string         `bson:"recipient"`
	Kind              string         `bson:"kind"`
	Title             string         `bson:"title"`
	Body              string         `bson:"body"`
	RelatedEntityType string         `bson:"related_entity_type,omitempty"`
	RelatedEntityID   string         `bson:"related_entity_id,omitempty"`
	Metadata          map[string]any `bson:"metadata"`
	IsRead            bool           `bson:"is_read"`
	ReadAt            *time.Time     `bson:"read_at,omitempty"`
	CreatedAt         time.Time      `bson:"created_at"`
	UpdatedAt         time.Time      `bson:"updated_at"`
}

// toDocument は通知をドキュメントに変換する。
func toDocument(n *notification.Notification) document {
	metadata := maps.Clone(n.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	return document{
		ID:                n.ID,
		Recipient:         n.Recipient,
		Kind:              string(n.Kind),
		Title:             n.Title,
		Body:              n.Body,
		RelatedEntityType: n.RelatedEntityType,
		RelatedEntityID:   n.RelatedEntityID,
		Metadata:          metadata,
		IsRead:            n.IsRead,
		ReadAt:            n.ReadAt,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
	}
}

// toNotification はドキュメントを通知に変換する。
func (d document) toNotification() notification.Notification {
	metadata := d.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	n := notification.Notification{
		ID:                d.ID,
		Recipient:         d.Recipient,
		Kind:              event.Type(d.Kind),
		Title:             d.Title,
		Body:              d.Body,
		RelatedEntityType: d.RelatedEntityType,
		RelatedEntityID:   d.RelatedEntityID,
		Metadata:          metadata,
		IsRead:            d.IsRead,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}
	if d.ReadAt != nil {
		readAt := d.ReadAt.UTC()
		n.ReadAt = &readAt
	}
	return n
}

// Insert は通知を1件挿入する。
func (s *Store) Insert(ctx context.Context, n *notification.Notification) error {
	if _, err := s.coll.InsertOne(ctx, toDocument(n)); err != nil {
		return fmt.Errorf("通知の挿入に失敗: %w", err)
	}
	return nil
}

// Find は条件に一致する通知を作成日時の新しい順で返す。
func (s *Store) Find(ctx context.Context, q notification.Query) ([]notification.Notification, error) {
	opts := options.Find().
		SetSort(feedSort()).
		SetLimit(int64(q.Limit))

	cur, err := s.coll.Find(ctx, feedFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("通知の検索に失敗: %w", err)
	}

	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("検索結果の読み込みに失敗: %w", err)
	}

	items := make([]notification.Notification, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.toNotification())
	}
	return items, nil
}

// CountUnread は受信者の未読通知の件数を返す。
func (s *Store) CountUnread(ctx context.Context, recipient string) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, unreadFilter(recipient))
	if err != nil {
		return 0, fmt.Errorf("未読件数の集計に失敗: %w", err)
	}
	return count, nil
}

// MarkRead は条件に一致する未読通知を既読にし、更新件数を返す。
func (s *Store) MarkRead(ctx context.Context, f notification.ReadFilter, at time.Time) (int64, error) {
	if f.Empty() {
		return 0, nil
	}

	res, err := s.coll.UpdateMany(ctx, readFilter(f), markReadUpdate(at))
	if err != nil {
		return 0, fmt.Errorf("通知の既読化に失敗: %w", err)
	}
	return res.ModifiedCount, nil
}

// Ping はMongoDBへの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// feedSort はフィードの並び順。作成日時が同じ場合はIDの降順。
func feedSort() bson.D {
	return bson.D{
		{Key: "created_at", Value: -1},
		{Key: "_id", Value: -1},
	}
}

// feedFilter はフィード取得の検索条件を組み立てる。
func feedFilter(q notification.Query) bson.D {
	filter := bson.D{{Key: "recipient", Value: q.Recipient}}
	if q.OnlyUnread {
		filter = append(filter, bson.E{Key: "is_read", Value: false})
	}

	created := bson.D{}
	if q.After != nil {
		created = append(created, bson.E{Key: "$gt", Value: *q.After})
	}
	if q.Before != nil {
		created = append(created, bson.E{Key: "$lt", Value: *q.Before})
	}
	if len(created) > 0 {
		filter = append(filter, bson.E{Key: "created_at", Value: created})
	}
	return filter
}

// unreadFilter は受信者の未読通知の検索条件を組み立てる。
func unreadFilter(recipient string) bson.D {
	return bson.D{
		{Key: "recipient", Value: recipient},
		{Key: "is_read", Value: false},
	}
}

// readFilter は既読化の対象条件を組み立てる。
// IDsがあればIDsを、なければAllBefore以前を対象にする。
func readFilter(f notification.ReadFilter) bson.D {
	filter := unreadFilter(f.Recipient)
	switch {
	case len(f.IDs) > 0:
		filter = append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$in", Value: f.IDs}}})
	case f.AllBefore != nil:
		filter = append(filter, bson.E{Key: "created_at", Value: bson.D{{Key: "$lte", Value: *f.AllBefore}}})
	}
	return filter
}

// markReadUpdate は既読化の更新内容を組み立てる。
func markReadUpdate(at time.Time) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_read", Value: true},
		{Key: "read_at", Value: at},
		{Key: "updated_at", Value: at},
	}}}
}
