package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/gigboard/internal/notification"
	"github.com/nao1215/gigboard/internal/store/sqlite"
)

const testSecret = "cli-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// startTestServer はインメモリSQLiteを使う通知サーバーを起動する。
func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.Open(t.Context(), sqlite.MemoryPath, logger)
	if err != nil {
		t.Fatalf("ストアのオープンに失敗: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	service := notification.NewService(store)
	server := notification.NewServer(notification.ServerConfig{JWTSecret: testSecret}, service, notification.NewNotifier(service, notification.WithLogger(logger)), logger)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// execute はコマンドを実行し、標準出力の内容を返す。
func execute(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	root := NewRoot()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestCommands(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t)
	ctx := t.Context()

	issue := func(t *testing.T, email, role string) string {
		t.Helper()
		token, err := execute(ctx, "token", "--secret", testSecret, "--email", email, "--account-id", "acc-1", "--role", role)
		if err != nil {
			t.Fatalf("tokenコマンドが失敗: %v", err)
		}
		return strings.TrimSpace(token)
	}
	common := []string{"--url", ts.URL, "--token", issue(t, "a@x.com", "individual")}
	service := []string{"--url", ts.URL, "--token", issue(t, "system@gigboard.local", "service")}

	t.Run("sendで作成した通知がfeedに表示される", func(t *testing.T) {
		out, err := execute(ctx, append(service, "send",
			"--recipient", "a@x.com", "--kind", "SYSTEM", "--title", "メンテナンス", "--body", "深夜に実施します")...)
		if err != nil {
			t.Fatalf("sendコマンドが失敗: %v", err)
		}
		id := strings.TrimSpace(out)
		if id == "" {
			t.Fatal("IDが出力されていない")
		}

		out, err = execute(ctx, append(common, "feed", "--limit", "10")...)
		if err != nil {
			t.Fatalf("feedコマンドが失敗: %v", err)
		}
		if !strings.Contains(out, id) || !strings.Contains(out, "メンテナンス") {
			t.Errorf("通知が表示されていない: %s", out)
		}
		if !strings.Contains(out, "未読: 1件") {
			t.Errorf("未読件数が表示されていない: %s", out)
		}

		out, err = execute(ctx, append(common, "read", id)...)
		if err != nil {
			t.Fatalf("readコマンドが失敗: %v", err)
		}
		if !strings.Contains(out, "未読: 0件") {
			t.Errorf("既読化後の未読件数が不正: %s", out)
		}

		out, err = execute(ctx, append(common, "unread")...)
		if err != nil {
			t.Fatalf("unreadコマンドが失敗: %v", err)
		}
		if strings.TrimSpace(out) != "0" {
			t.Errorf("未読件数: got %q", out)
		}
	})

	t.Run("検証エラーはサーバーのメッセージを返す", func(t *testing.T) {
		_, err := execute(ctx, append(service, "send", "--recipient", "a@x.com", "--kind", "SYSTEM")...)
		if err == nil || !strings.Contains(err.Error(), "title") {
			t.Errorf("titleの検証エラーを期待: got %v", err)
		}
	})

	t.Run("不正な引数はエラー", func(t *testing.T) {
		if _, err := execute(ctx, append(common, "read")...); err == nil {
			t.Error("条件なしのreadでエラーにならない")
		}
		if _, err := execute(ctx, append(common, "feed", "--cursor", "yesterday")...); err == nil {
			t.Error("不正なcursorでエラーにならない")
		}
		if _, err := execute(ctx, append(service, "send", "--recipient", "a@x.com", "--kind", "SYSTEM", "--title", "t", "--body", "b", "--metadata", "[1]")...); err == nil {
			t.Error("配列のmetadataでエラーにならない")
		}
	})

	t.Run("利用者のトークンではsendできない", func(t *testing.T) {
		_, err := execute(ctx, append(common, "send",
			"--recipient", "b@x.com", "--kind", "SYSTEM", "--title", "t", "--body", "b")...)
		if err == nil || !strings.Contains(err.Error(), "403") {
			t.Errorf("403のエラーを期待: got %v", err)
		}
	})

	t.Run("トークンがない場合は401", func(t *testing.T) {
		_, err := execute(ctx, "--url", ts.URL, "--token", "", "unread")
		if err == nil || !strings.Contains(err.Error(), "401") {
			t.Errorf("401のエラーを期待: got %v", err)
		}
	})
}

func TestMigrateCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "notification.db")
	configPath := filepath.Join(dir, "notification.yaml")
	content := "store:\n  driver: sqlite\n  sqlite_path: " + dbPath + "\n"
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("設定ファイルの作成に失敗: %v", err)
	}

	out, err := execute(t.Context(), "migrate", "--config", configPath, "--status")
	if err != nil {
		t.Fatalf("migrate --statusが失敗: %v", err)
	}
	if !strings.Contains(out, "create_notifications") || !strings.Contains(out, "未適用") {
		t.Errorf("未適用のマイグレーションが表示されていない: %s", out)
	}

	out, err = execute(t.Context(), "migrate", "--config", configPath)
	if err != nil {
		t.Fatalf("migrateが失敗: %v", err)
	}
	if !strings.Contains(out, "1件のマイグレーションを適用しました") {
		t.Errorf("適用件数が表示されていない: %s", out)
	}

	out, err = execute(t.Context(), "migrate", "--config", configPath)
	if err != nil {
		t.Fatalf("2回目のmigrateが失敗: %v", err)
	}
	if !strings.Contains(out, "0件のマイグレーションを適用しました") {
		t.Errorf("2回目に適用されている: %s", out)
	}
}
