package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/gigboard/pkg/event"
)

// Writer は通知を1件作成する。*Serviceが実装する。
type Writer interface {
	Create(ctx context.Context, in CreateInput) (string, error)
}

// Mailer は通知をメールでも届ける送信者。
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Notifier は状態変更などを起こした側が通知を送るための窓口。
//
// 通知の書き込みに失敗しても呼び出し元の処理を失敗させないよう、
// エラーはログに記録するだけで返さない。
type Notifier struct {
	// writer は通知の書き込み先。
	writer Writer
	// mailer はメール送信者。nilの場合はメールを送らない。
	mailer Mailer
	// logger は失敗を記録するロガー。
	logger *slog.Logger
}

// NotifierOption はNotifierの設定を変更する関数。
type NotifierOption func(*Notifier)

// WithMailer はメール送信者を設定する。
func WithMailer(m Mailer) NotifierOption {
	return func(n *Notifier) {
		n.mailer = m
	}
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = l
	}
}

// NewNotifier は新しいNotifierを生成する。
func NewNotifier(w Writer, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		writer: w,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify は通知を書き込み、作成されたIDを返す。
// 失敗した場合はログに記録して空文字列を返す。
func (n *Notifier) Notify(ctx context.Context, in CreateInput) (id string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.ErrorContext(ctx, "通知の書き込み中にパニックが発生",
				slog.String("recipient", in.Recipient),
				slog.String("kind", string(in.Kind)),
				slog.Any("panic", r),
			)
			id = ""
		}
	}()

	id, err := n.writer.Create(ctx, in)
	if err != nil {
		n.logger.ErrorContext(ctx, "通知の書き込みに失敗",
			slog.String("recipient", in.Recipient),
			slog.String("kind", string(in.Kind)),
			slog.Any("error", err),
		)
		return ""
	}

	if n.mailer != nil {
		if err := n.mailer.Send(ctx, NormalizeRecipient(in.Recipient), in.Title, in.Body); err != nil {
			n.logger.WarnContext(ctx, "通知メールの送信に失敗",
				slog.String("notification_id", id),
				slog.Any("error", err),
			)
		}
	}
	return id
}

// AccountStatusChanged はアカウントの審査状態の変更を通知する。
func (n *Notifier) AccountStatusChanged(ctx context.Context, recipient, accountID string, data event.AccountStatusData) string {
	return n.notifyEvent(ctx, recipient, data, "account", accountID)
}

// GigApplicationStatusChanged はギグ応募の状態の変更を通知する。
func (n *Notifier) GigApplicationStatusChanged(ctx context.Context, recipient string, data event.GigStatusData) string {
	return n.notifyEvent(ctx, recipient, data, "gig_application", data.ApplicationID)
}

// notifyEvent はペイロードから作成入力を組み立ててNotifyを呼ぶ。
func (n *Notifier) notifyEvent(ctx context.Context, recipient string, p event.Payload, relatedType, relatedID string) string {
	in, err := NewEventInput(recipient, p, relatedType, relatedID)
	if err != nil {
		n.logger.ErrorContext(ctx, "通知内容の組み立てに失敗",
			slog.String("recipient", recipient),
			slog.String("kind", string(p.EventType())),
			slog.Any("error", err),
		)
		return ""
	}
	return n.Notify(ctx, in)
}

// NewEventInput はペイロードから通知の作成入力を組み立てる。
// 見出しと本文は種類ごとのテンプレートで生成する。
func NewEventInput(recipient string, p event.Payload, relatedType, relatedID string) (CreateInput, error) {
	metadata, err := event.Encode(p)
	if err != nil {
		return CreateInput{}, fmt.Errorf("metadataの生成に失敗: %w", err)
	}

	title, body := render(p)
	in := CreateInput{
		Recipient: recipient,
		Kind:      p.EventType(),
		Title:     title,
		Body:      body,
		Metadata:  metadata,
	}
	if relatedID != "" {
		in.RelatedEntityType = relatedType
		in.RelatedEntityID = relatedID
	}
	return in, nil
}
