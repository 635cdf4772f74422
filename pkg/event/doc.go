// Package event は通知のきっかけとなるイベントの種類とデータを定義する。
//
// 通知のkindとmetadataは文字列と自由形式のオブジェクトとして保存されるが、
// 既知の種類（ACCOUNT_STATUS, GIG_STATUS）は種類ごとの構造体として扱う。
// 列挙は呼び出し元から判明しているものに限られ、今後増える可能性がある。
package event
