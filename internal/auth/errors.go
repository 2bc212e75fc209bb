package auth

import "errors"

// 画面に表示するメッセージです。
const (
	MsgRegistered         = "登録が完了しました。ログインしてください。"
	MsgLoggedIn           = "ログインしました。"
	MsgLoggedOut          = "ログアウトしました。"
	MsgInvalidCredentials = "ユーザー名またはパスワードが正しくありません"
	MsgTooManyAttempts    = "ログイン試行回数が上限に達しました。一定時間後に再度お試しください。"
	MsgLoginRequired      = "このページを表示するにはログインしてください。"
	MsgCSRF               = "フォームの有効期限が切れました。もう一度送信してください。"
	MsgGenericError       = "エラーが発生しました。しばらくしてから再度お試しください。"

	MsgMissingFields    = "ユーザー名とメールアドレスを入力してください。"
	MsgPasswordTooShort = "パスワードは8文字以上で入力してください。"
	MsgPasswordTooLong  = "パスワードが長すぎます。"
	MsgAlreadyTaken     = "ユーザー名またはメールアドレスは既に使用されています。"
	MsgInvalidInput     = "入力内容を確認してください。"
)

var (
	// ErrInvalidCredentials はユーザー名が存在しない場合とパスワード不一致の両方を表します。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTooManyAttempts はログイン試行のロック中であることを表します。
	ErrTooManyAttempts = errors.New("too many login attempts")
)

// ValidationError は入力内容による拒否です。状態は変更されません。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
