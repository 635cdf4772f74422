package mailer

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestMailer_Compose(t *testing.T) {
	t.Parallel()

	m := New(Config{Host: "smtp.example.com", Port: 587, From: "noreply@gigboard.example"})
	msg := m.compose("a@x.com", "応募状況が更新されました", "「倉庫の棚卸し」への応募が「採用」になりました。")

	if got := msg.GetHeader("To"); len(got) != 1 || got[0] != "a@x.com" {
		t.Errorf("To: got %v", got)
	}
	if got := msg.GetHeader("From"); len(got) != 1 || got[0] != "noreply@gigboard.example" {
		t.Errorf("From: got %v", got)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("メッセージの書き出しに失敗: %v", err)
	}
	if !strings.Contains(buf.String(), "Content-Type: text/plain") {
		t.Errorf("本文がプレーンテキストではない: %s", buf.String())
	}
}

func TestMailer_SendCanceled(t *testing.T) {
	t.Parallel()

	m := New(Config{Host: "127.0.0.1", Port: 1, From: "noreply@gigboard.example"})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if err := m.Send(ctx, "a@x.com", "件名", "本文"); err == nil {
		t.Error("キャンセル済みのコンテキストでエラーにならない")
	}
}

func TestMailer_SendUnreachable(t *testing.T) {
	t.Parallel()

	m := New(Config{Host: "127.0.0.1", Port: 1, From: "noreply@gigboard.example"})
	err := m.Send(t.Context(), "a@x.com", "件名", "本文")
	if err == nil {
		t.Fatal("接続できないSMTPでエラーにならない")
	}
	if !strings.Contains(err.Error(), "a@x.com") {
		t.Errorf("宛先がエラーに含まれていない: %v", err)
	}
}
