// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Passwordはargon2idでエンコードされたハッシュ文字列を保持し、
// 平文パスワードは一切保存しない。
type User struct {
	ID        string
	Username  string
	Email     string
	Password  string // argon2id PHC形式のハッシュ
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile はユーザーの公開プロフィールを表す。
// 登録時にデフォルト値付きでユーザーと同一トランザクションで作成される。
type Profile struct {
	ID        string
	UserID    string
	Photo     string
	Bio       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
