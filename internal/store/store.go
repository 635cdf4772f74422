// Package store は設定に従って通知の永続化層を開く。
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/gigboard/internal/config"
	"github.com/nao1215/gigboard/internal/notification"
	"github.com/nao1215/gigboard/internal/store/mongo"
	"github.com/nao1215/gigboard/internal/store/sqlite"
)

// CloseFunc は開いた永続化層を閉じる関数。
type CloseFunc func(ctx context.Context) error

// Open は設定されたドライバでStoreを開く。
// 呼び出し元は返されたCloseFuncで接続を閉じる責任を持つ。
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (notification.Store, CloseFunc, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.InfoContext(ctx, "SQLiteの通知ストアを開きました", slog.String("path", cfg.SQLitePath))
		return s, func(context.Context) error { return s.Close() }, nil
	case config.DriverMongo:
		s, err := mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		logger.InfoContext(ctx, "MongoDBの通知ストアに接続しました", slog.String("database", cfg.MongoDatabase))
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("未対応のストア: %q", cfg.Driver)
	}
}
