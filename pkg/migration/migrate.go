// Package migration はSQLiteデータベースのスキーマを管理する。
// embed.FSに同梱したSQLファイルを番号順に適用し、適用済みの番号をschema_migrationsに記録する。
package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Migration は1つのマイグレーションファイルを表す。
// ファイル名は「000001_説明.up.sql」の形式。
type Migration struct {
	// Version はファイル名先頭の番号。
	Version int
	// Name はファイル名の説明部分。
	Name string
	// AppliedAt は適用日時。未適用の場合はnil。
	AppliedAt *time.Time

	path string
}

// Migrator はマイグレーションの適用と状態確認を行う。
type Migrator struct {
	db     *sqlx.DB
	fsys   fs.FS
	dir    string
	logger *slog.Logger
}

// New は新しいMigratorを生成する。loggerがnilの場合はslog.Defaultを使う。
func New(db *sqlx.DB, fsys fs.FS, dir string, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, fsys: fsys, dir: dir, logger: logger}
}

// Up は未適用のマイグレーションを番号順に適用し、適用した件数を返す。
// 各ファイルは記録の追加と同じトランザクションで実行する。
func (m *Migrator) Up(ctx context.Context) (int, error) {
	migrations, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range migrations {
		if mig.AppliedAt != nil {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return count, fmt.Errorf("マイグレーション %06d の適用に失敗: %w", mig.Version, err)
		}
		m.logger.InfoContext(ctx, "マイグレーションを適用しました",
			slog.Int("version", mig.Version),
			slog.String("name", mig.Name),
		)
		count++
	}
	return count, nil
}

// Status はすべてのマイグレーションを番号順に返す。適用済みのものにはAppliedAtが入る。
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("マイグレーション管理テーブルの作成に失敗: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("適用済みバージョンの取得に失敗: %w", err)
	}

	migrations, err := m.collect()
	if err != nil {
		return nil, fmt.Errorf("マイグレーションファイルの収集に失敗: %w", err)
	}
	for i := range migrations {
		if at, ok := applied[migrations[i].Version]; ok {
			migrations[i].AppliedAt = &at
		}
	}
	return migrations, nil
}

// ensureTable はバージョン管理テーブルを作成する。
func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`)
	return err
}

// appliedRow はschema_migrationsの1行。
type appliedRow struct {
	Version   int   `db:"version"`
	AppliedAt int64 `db:"applied_at"`
}

// appliedVersions は適用済みのバージョンと適用日時を取得する。
func (m *Migrator) appliedVersions(ctx context.Context) (map[int]time.Time, error) {
	var rows []appliedRow
	if err := m.db.SelectContext(ctx, &rows, "SELECT version, applied_at FROM schema_migrations ORDER BY version"); err != nil {
		return nil, err
	}

	applied := make(map[int]time.Time, len(rows))
	for _, r := range rows {
		applied[r.Version] = time.UnixMilli(r.AppliedAt).UTC()
	}
	return applied, nil
}

// collect はディレクトリからup.sqlファイルを収集して番号順に並べる。
// 番号で始まらないファイルは無視する。
func (m *Migrator) collect() ([]Migration, error) {
	entries, err := fs.ReadDir(m.fsys, m.dir)
	if err != nil {
		return nil, err
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}

		prefix, rest, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(rest, ".up.sql"),
			path:    path.Join(m.dir, entry.Name()),
		})
	}

	slices.SortFunc(migrations, func(a, b Migration) int {
		return a.Version - b.Version
	})
	return migrations, nil
}

// apply は1つのマイグレーションをトランザクション内で適用する。
func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	content, err := fs.ReadFile(m.fsys, mig.path)
	if err != nil {
		return fmt.Errorf("ファイル読み込みに失敗: %w", err)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("SQL実行に失敗: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		mig.Version, time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("バージョン記録に失敗: %w", err)
	}

	return tx.Commit()
}
