// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュであり、APIレスポンスには含めない。
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity はセッショントークンから復元されたユーザー識別情報を表す。
// サーバー側には永続化されない。
type Identity struct {
	UserID   string
	Username string
}
