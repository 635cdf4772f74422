// Package config は通知サービスの設定を読み込む。
// 設定ファイル（YAML、省略可）、環境変数、デフォルト値の順に優先度が低くなる。
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DriverSQLite はSQLiteのStoreを使う。
	DriverSQLite = "sqlite"
	// DriverMongo はMongoDBのStoreを使う。
	DriverMongo = "mongo"

	// DefaultJWTSecret は開発用のJWT秘密鍵。本番では必ずJWT_SECRETで上書きする。
	DefaultJWTSecret = "dev-secret-key"
)

// Config は通知サービスの設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `mapstructure:"port"`
	// JWTSecret はJWT検証用の秘密鍵。
	JWTSecret string `mapstructure:"jwt_secret"`
	// CORSOrigins はクロスオリジンリクエストを許可するオリジン。空の場合はCORSを無効にする。
	CORSOrigins []string `mapstructure:"cors_origins"`
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// Store は永続化層の設定。
	Store StoreConfig `mapstructure:"store"`
	// SMTP はメール送信の設定。Hostが空の場合はメールを送らない。
	SMTP SMTPConfig `mapstructure:"smtp"`
	// Log はログ出力の設定。
	Log LogConfig `mapstructure:"log"`
}

// StoreConfig は永続化層の設定。
type StoreConfig struct {
	// Driver は "sqlite" または "mongo"。
	Driver string `mapstructure:"driver"`
	// SQLitePath はSQLiteのファイルパス。":memory:" でインメモリ。
	SQLitePath string `mapstructure:"sqlite_path"`
	// MongoURI はMongoDBの接続URI。
	MongoURI string `mapstructure:"mongo_uri"`
	// MongoDatabase はMongoDBのデータベース名。
	MongoDatabase string `mapstructure:"mongo_database"`
}

// SMTPConfig はメール送信の設定。
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Enabled はメール送信が設定されているかどうかを返す。
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// LogConfig はログ出力の設定。
type LogConfig struct {
	// Format は "text" または "json"。
	Format string `mapstructure:"format"`
	// Level は "debug", "info", "warn", "error" のいずれか。
	Level string `mapstructure:"level"`
}

// envBindings は設定キーと環境変数の対応。
var envBindings = map[string]string{
	"port":                 "PORT",
	"jwt_secret":           "JWT_SECRET",
	"cors_origins":         "CORS_ORIGINS",
	"shutdown_timeout":     "SHUTDOWN_TIMEOUT",
	"store.driver":         "STORE_DRIVER",
	"store.sqlite_path":    "SQLITE_PATH",
	"store.mongo_uri":      "MONGO_URI",
	"store.mongo_database": "MONGO_DATABASE",
	"smtp.host":            "SMTP_HOST",
	"smtp.port":            "SMTP_PORT",
	"smtp.username":        "SMTP_USERNAME",
	"smtp.password":        "SMTP_PASSWORD",
	"smtp.from":            "SMTP_FROM",
	"log.format":           "LOG_FORMAT",
	"log.level":            "LOG_LEVEL",
}

// setDefaults はデフォルト値を設定する。
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8086")
	v.SetDefault("jwt_secret", DefaultJWTSecret)
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "notification.db")
	v.SetDefault("store.mongo_database", "gigboard")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
}

// Load は設定を読み込む。pathが空の場合は設定ファイルを読まない。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("環境変数 %s の設定に失敗: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("設定の解析に失敗: %w", err)
	}
	cfg.CORSOrigins = splitOrigins(cfg.CORSOrigins)
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))

	return cfg, nil
}

// splitOrigins はカンマ区切りのオリジンを分割し、空の要素を取り除く。
func splitOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		for part := range strings.SplitSeq(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate は設定値を検証し、すべての問題をまとめて返す。
func (c *Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("portが不正です: %q", c.Port))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secretは必須です"))
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_pathは必須です"))
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("store.mongo_uriは必須です"))
		}
		if c.Store.MongoDatabase == "" {
			errs = append(errs, errors.New("store.mongo_databaseは必須です"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driverは %s か %s を指定してください: %q", DriverSQLite, DriverMongo, c.Store.Driver))
	}

	if c.SMTP.Enabled() {
		if c.SMTP.Port <= 0 {
			errs = append(errs, fmt.Errorf("smtp.portが不正です: %d", c.SMTP.Port))
		}
		if c.SMTP.From == "" {
			errs = append(errs, errors.New("smtp.hostを指定する場合はsmtp.fromも必須です"))
		}
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.formatは text か json を指定してください: %q", c.Log.Format))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.levelが不正です: %q", c.Log.Level))
	}

	return errors.Join(errs...)
}
