// Package sqlite はSQLiteに通知を保存するStoreを提供する。
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLiteドライバ

	"github.com/nao1215/gigboard/internal/notification"
	"github.com/nao1215/gigboard/pkg/event"
	"github.com/nao1215/gigboard/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath はインメモリデータベースを表すパス。
const MemoryPath = ":memory:"

// Store はSQLiteに通知を保存する。
// 接続の所有者はStoreを生成した呼び出し元であり、Closeで解放する。
type Store struct {
	db *sqlx.DB
}

var _ notification.Store = (*Store)(nil)

// Open はSQLiteデータベースを開き、マイグレーションを適用したStoreを返す。
// 失敗した場合は開いた接続を閉じてからエラーを返す。
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	s, err := Connect(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx, logger); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Connect はSQLiteデータベースを開いて疎通を確認する。マイグレーションは適用しない。
func Connect(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("SQLiteのオープンに失敗: %w", err)
	}
	if path == MemoryPath {
		// インメモリDBは接続ごとに別のデータベースになる
		db.SetMaxOpenConns(1)
	}

	s := New(db)
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("SQLiteへの接続に失敗: %w", err)
	}
	return s, nil
}

// dsn はSQLiteの接続文字列を組み立てる。ファイルの場合はWALとビジータイムアウトを設定する。
func dsn(path string) string {
	if path == MemoryPath {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// New は開いた接続からStoreを生成する。
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate は未適用のマイグレーションを適用する。
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) error {
	if _, err := s.Migrator(logger).Up(ctx); err != nil {
		return fmt.Errorf("マイグレーションの適用に失敗: %w", err)
	}
	return nil
}

// Migrator は同梱のマイグレーションを扱うMigratorを返す。
func (s *Store) Migrator(logger *slog.Logger) *migration.Migrator {
	return migration.New(s.db, migrationsFS, "migrations", logger)
}

// Close は接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// row はnotificationsテーブルの1行。
type row struct {
	ID                string         `db:"id"`
	Recipient         string         `db:"recipient"`
	Kind              string         `db:"kind"`
	Title             string         `db:"title"`
	Body              string         `db:"body"`
	RelatedEntityType sql.NullString `db:"related_entity_type"`
	RelatedEntityID   sql.NullString `db:"related_entity_id"`
	Metadata          string         `db:"metadata"`
	IsRead            bool           `db:"is_read"`
	ReadAt            sql.NullInt64  `db:"read_at"`
	CreatedAt         int64          `db:"created_at"`
	UpdatedAt         int64          `db:"updated_at"`
}

const columns = `id, recipient, kind, title, body, related_entity_type, related_entity_id,
	metadata, is_read, read_at, created_at, updated_at`

// toRow は通知をテーブルの行に変換する。
func toRow(n *notification.Notification) (row, error) {
	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return row{}, fmt.Errorf("metadataのシリアライズに失敗: %w", err)
	}

	r := row{
		ID:                n.ID,
		Recipient:         n.Recipient,
		Kind:              string(n.Kind),
		Title:             n.Title,
		Body:              n.Body,
		RelatedEntityType: nullString(n.RelatedEntityType),
		RelatedEntityID:   nullString(n.RelatedEntityID),
		Metadata:          string(data),
		IsRead:            n.IsRead,
		CreatedAt:         n.CreatedAt.UnixMilli(),
		UpdatedAt:         n.UpdatedAt.UnixMilli(),
	}
	if n.ReadAt != nil {
		r.ReadAt = sql.NullInt64{Int64: n.ReadAt.UnixMilli(), Valid: true}
	}
	return r, nil
}

// toNotification はテーブルの行を通知に変換する。
func (r row) toNotification() (notification.Notification, error) {
	metadata := map[string]any{}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &metadata); err != nil {
			return notification.Notification{}, fmt.Errorf("通知 %s のmetadataが不正: %w", r.ID, err)
		}
	}

	n := notification.Notification{
		ID:                r.ID,
		Recipient:         r.Recipient,
		Kind:              event.Type(r.Kind),
		Title:             r.Title,
		Body:              r.Body,
		RelatedEntityType: r.RelatedEntityType.String,
		RelatedEntityID:   r.RelatedEntityID.String,
		Metadata:          metadata,
		IsRead:            r.IsRead,
		CreatedAt:         fromMillis(r.CreatedAt),
		UpdatedAt:         fromMillis(r.UpdatedAt),
	}
	if r.ReadAt.Valid {
		readAt := fromMillis(r.ReadAt.Int64)
		n.ReadAt = &readAt
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Insert は通知を1件挿入する。
func (s *Store) Insert(ctx context.Context, n *notification.Notification) error {
	r, err := toRow(n)
	if err != nil {
		return err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (`+columns+`)
		VALUES (:id, :recipient, :kind, :title, :body, :related_entity_type, :related_entity_id,
			:metadata, :is_read, :read_at, :created_at, :updated_at)
	`, r)
	if err != nil {
		return fmt.Errorf("通知の挿入に失敗: %w", err)
	}
	return nil
}

// Find は条件に一致する通知を作成日時の新しい順で返す。
func (s *Store) Find(ctx context.Context, q notification.Query) ([]notification.Notification, error) {
	where, args := feedConditions(q)
	query := "SELECT " + columns + " FROM notifications WHERE " + where +
		" ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, q.Limit)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("通知の検索に失敗: %w", err)
	}

	items := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toNotification()
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, nil
}

// feedConditions はフィード取得のWHERE句と引数を組み立てる。
func feedConditions(q notification.Query) (string, []any) {
	conds := []string{"recipient = ?"}
	args := []any{q.Recipient}

	if q.OnlyUnread {
		conds = append(conds, "is_read = 0")
	}
	if q.After != nil {
		conds = append(conds, "created_at > ?")
		args = append(args, q.After.UnixMilli())
	}
	if q.Before != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, q.Before.UnixMilli())
	}
	return strings.Join(conds, " AND "), args
}

// CountUnread は受信者の未読通知の件数を返す。
func (s *Store) CountUnread(ctx context.Context, recipient string) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE recipient = ? AND is_read = 0", recipient)
	if err != nil {
		return 0, fmt.Errorf("未読件数の集計に失敗: %w", err)
	}
	return count, nil
}

// MarkRead は条件に一致する未読通知を既読にし、更新件数を返す。
// 既読の通知は対象にしないため、同じ条件で繰り返しても0件になる。
func (s *Store) MarkRead(ctx context.Context, f notification.ReadFilter, at time.Time) (int64, error) {
	if f.Empty() {
		return 0, nil
	}

	query, args, err := markReadQuery(f, at)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("通知の既読化に失敗: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	return updated, nil
}

// markReadQuery は既読化のUPDATE文と引数を組み立てる。
// IDsが指定されている場合はIN句に展開する。
func markReadQuery(f notification.ReadFilter, at time.Time) (string, []any, error) {
	const base = `UPDATE notifications SET is_read = 1, read_at = ?, updated_at = ?
		WHERE recipient = ? AND is_read = 0`
	ms := at.UnixMilli()

	if len(f.IDs) > 0 {
		query, args, err := sqlx.In(base+" AND id IN (?)", ms, ms, f.Recipient, f.IDs)
		if err != nil {
			return "", nil, fmt.Errorf("既読化クエリの組み立てに失敗: %w", err)
		}
		return query, args, nil
	}
	return base + " AND created_at <= ?", []any{ms, ms, f.Recipient, f.AllBefore.UnixMilli()}, nil
}

// Ping はデータベースへの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
