// notifyctl は通知サービスの運用CLI。
// フィードの確認、既読化、通知の送信、SQLiteのマイグレーションを行う。
package main

import (
	"fmt"
	"os"

	"github.com/nao1215/gigboard/internal/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "エラー:", err)
		os.Exit(1)
	}
}
