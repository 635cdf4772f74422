// Package httpclient は通知サービスのAPIを呼び出すクライアントを提供する。
//
// 他のサービスから通知を作成する場合や、運用CLIからフィードを確認・既読化する場合に使用する。
// 認証にはBearerトークン（JWT）を使う。
package httpclient
