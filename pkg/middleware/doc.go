// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWTによる受信者の特定、パニックリカバリ、CORS設定を含む。
// 受信者のメールアドレスは常にトークンから取り出し、リクエストの
// パラメータからは受け取らない。
package middleware
