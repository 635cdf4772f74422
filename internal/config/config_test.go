package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// 環境変数を書き換えるテストはt.Parallelを使わない。

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if cfg.Port != "8086" {
		t.Errorf("Port: got %q, want %q", cfg.Port, "8086")
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("Store.Driver: got %q", cfg.Store.Driver)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout: got %v", cfg.ShutdownTimeout)
	}
	if cfg.SMTP.Enabled() {
		t.Error("デフォルトではメール送信は無効であるべき")
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Errorf("CORSOrigins: got %v", cfg.CORSOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("デフォルト設定の検証に失敗: %v", err)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("MONGO_DATABASE", "notifications")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_FROM", "noreply@example.com")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if cfg.Port != "9000" || cfg.JWTSecret != "prod-secret" {
		t.Errorf("環境変数が反映されていない: %+v", cfg)
	}
	if cfg.Store.Driver != DriverMongo || cfg.Store.MongoDatabase != "notifications" {
		t.Errorf("Store: got %+v", cfg.Store)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if strings.Join(cfg.CORSOrigins, "|") != strings.Join(want, "|") {
		t.Errorf("CORSOrigins: got %v, want %v", cfg.CORSOrigins, want)
	}
	if !cfg.SMTP.Enabled() || cfg.SMTP.Port != 2525 {
		t.Errorf("SMTP: got %+v", cfg.SMTP)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("検証に失敗: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notification.yaml")
	content := `
port: "8100"
cors_origins:
  - https://app.example.com
store:
  driver: sqlite
  sqlite_path: /var/lib/gigboard/notification.db
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("設定ファイルの作成に失敗: %v", err)
	}
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if cfg.Port != "8100" {
		t.Errorf("Port: got %q", cfg.Port)
	}
	if cfg.Store.SQLitePath != "/var/lib/gigboard/notification.db" {
		t.Errorf("SQLitePath: got %q", cfg.Store.SQLitePath)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://app.example.com" {
		t.Errorf("CORSOrigins: got %v", cfg.CORSOrigins)
	}
	// 環境変数が設定ファイルより優先される
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level: got %q, want warn", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("存在しない設定ファイルでエラーにならない")
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Port:      "8086",
			JWTSecret: "secret",
			Store:     StoreConfig{Driver: DriverSQLite, SQLitePath: ":memory:"},
			Log:       LogConfig{Format: "text", Level: "info"},
		}
	}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{name: "正しい設定", modify: func(*Config) {}},
		{name: "ポートが数値でない", modify: func(c *Config) { c.Port = "http" }, wantErr: "port"},
		{name: "秘密鍵が空", modify: func(c *Config) { c.JWTSecret = "" }, wantErr: "jwt_secret"},
		{name: "未知のドライバ", modify: func(c *Config) { c.Store.Driver = "redis" }, wantErr: "store.driver"},
		{
			name:    "MongoのURIがない",
			modify:  func(c *Config) { c.Store = StoreConfig{Driver: DriverMongo, MongoDatabase: "db"} },
			wantErr: "store.mongo_uri",
		},
		{
			name:    "SMTPの送信元がない",
			modify:  func(c *Config) { c.SMTP = SMTPConfig{Host: "smtp.example.com", Port: 587} },
			wantErr: "smtp.from",
		},
		{name: "未知のログ形式", modify: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "未知のログレベル", modify: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("予期しないエラー: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("%s を含むエラーを期待: got %v", tt.wantErr, err)
			}
		})
	}
}
