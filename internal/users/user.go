// Package users は利用者テーブル（資格情報ストア）へのアクセスを提供します。
package users

import (
	"errors"
	"time"
)

var (
	// ErrNotFound は該当する利用者が存在しないことを表します。
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate はユーザー名またはメールアドレスの一意制約違反を表します。
	ErrDuplicate = errors.New("username or email already exists")
)

// User は登録済みの利用者です。PasswordHash は画面へ出力しません。
type User struct {
	ID           string
	Username     string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Summary は一覧表示用の利用者情報です。
type Summary struct {
	ID        string
	Username  string
	Name      string
	Email     string
	CreatedAt time.Time
}
