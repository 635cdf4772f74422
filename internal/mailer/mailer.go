// Package mailer は通知をメールでも届けるためのSMTP送信者を提供する。
package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Config はSMTPの接続設定。
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer はSMTPでプレーンテキストのメールを送る。
type Mailer struct {
	from   string
	dialer *gomail.Dialer
}

// New は新しいMailerを生成する。接続は送信のたびに行う。
func New(cfg Config) *Mailer {
	return &Mailer{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// compose は送信するメッセージを組み立てる。
func (m *Mailer) compose(to, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}

// Send はメールを1通送る。ctxが既にキャンセルされている場合は送らない。
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(m.compose(to, subject, body)); err != nil {
		return fmt.Errorf("メールの送信に失敗 (to=%s): %w", to, err)
	}
	return nil
}
