// Package cli はnotifyctlのCobraコマンドを提供する。
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/gigboard/pkg/httpclient"
)

// NewRoot はnotifyctlのルートコマンドを生成する。
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "notifyctl",
		Short:         "通知サービスの運用CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("url", envOr("NOTIFICATION_URL", "http://localhost:8086"), "通知サービスのベースURL")
	root.PersistentFlags().String("token", os.Getenv("NOTIFICATION_TOKEN"), "Bearerトークン（JWT）")
	root.PersistentFlags().Duration("timeout", httpclient.DefaultTimeout, "リクエストのタイムアウト")

	root.AddCommand(
		newFeedCommand(),
		newUnreadCommand(),
		newReadCommand(),
		newSendCommand(),
		newTokenCommand(),
		newMigrateCommand(),
	)
	return root
}

// newClient は共通フラグからAPIクライアントを生成する。
func newClient(cmd *cobra.Command) *httpclient.Client {
	baseURL, _ := cmd.Flags().GetString("url")
	token, _ := cmd.Flags().GetString("token")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return httpclient.New(baseURL, httpclient.WithToken(token), httpclient.WithTimeout(timeout))
}

// parseTime はRFC 3339の日時を解析する。空文字列はnilを返す。
func parseTime(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, &flagError{flag: flag, value: value}
	}
	return &t, nil
}

// flagError はフラグの値が不正であることを表す。
type flagError struct {
	flag, value string
}

func (e *flagError) Error() string {
	return "--" + e.flag + " の値が不正です（RFC 3339形式で指定してください）: " + e.value
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
