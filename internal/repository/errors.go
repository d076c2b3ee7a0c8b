package repository

import "errors"

// 一意制約違反を示すsentinelエラー。
// サービス層はこれらを対応するAPIエラーに変換する。
var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
)
