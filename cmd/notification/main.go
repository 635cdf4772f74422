// 通知サービスのエントリポイント。
// 状態変更イベントから通知を作成し、受信者ごとのフィードと既読管理のAPIを提供する。
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/gigboard/internal/config"
	"github.com/nao1215/gigboard/internal/logger"
	"github.com/nao1215/gigboard/internal/mailer"
	"github.com/nao1215/gigboard/internal/notification"
	"github.com/nao1215/gigboard/internal/store"
)

// storeCheckInterval は永続化層の疎通を確認する間隔。
const storeCheckInterval = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "notification",
		Short:         "通知フィードと既読管理のAPIサーバー",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = os.Getenv("NOTIFICATION_CONFIG")
			}
			err := run(cmd.Context(), configPath)
			if err != nil {
				slog.Error("通知サービスが異常終了しました", slog.Any("error", err))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "設定ファイルのパス（YAML）")
	return cmd
}

// run は設定を読み込み、永続化層を開いてサーバーを起動する。
// SIGINTまたはSIGTERMを受け取るとグレースフルシャットダウンする。
func run(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}

	log, err := logger.Setup(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == config.DefaultJWTSecret {
		log.Warn("開発用のJWT秘密鍵を使用しています。本番ではJWT_SECRETを設定してください")
	}

	st, closeStore, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			log.Error("通知ストアのクローズに失敗", slog.Any("error", err))
		}
	}()

	service := notification.NewService(st)

	notifierOpts := []notification.NotifierOption{notification.WithLogger(log)}
	if cfg.SMTP.Enabled() {
		notifierOpts = append(notifierOpts, notification.WithMailer(mailer.New(mailer.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})))
		log.Info("通知メールの送信を有効にしました", slog.String("smtp_host", cfg.SMTP.Host))
	}
	notifier := notification.NewNotifier(service, notifierOpts...)

	server := notification.NewServer(notification.ServerConfig{
		Port:            cfg.Port,
		JWTSecret:       cfg.JWTSecret,
		CORSOrigins:     cfg.CORSOrigins,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, service, notifier, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		watchStore(gctx, service, log, storeCheckInterval)
		return nil
	})
	return g.Wait()
}

// watchStore は永続化層の疎通を定期的に確認し、失敗と回復をログに記録する。
func watchStore(ctx context.Context, service *notification.Service, log *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := service.Ping(pingCtx)
		cancel()

		switch {
		case err != nil && healthy:
			log.Error("通知ストアに到達できません", slog.Any("error", err))
		case err == nil && !healthy:
			log.Info("通知ストアへの接続が回復しました")
		}
		healthy = err == nil
	}
}
