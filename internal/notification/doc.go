// Package notification は通知フィードと既読状態の管理を提供する。
//
// 状態変更などのイベントを受けて通知を1件書き込み（Writer）、
// 受信者ごとのフィードを新しい順にページングして返し（Feed）、
// 指定した通知または指定日時以前の通知を既読にする（Read-State Mutator）。
// 受信者は認証済みのメールアドレスで識別する。
package notification
