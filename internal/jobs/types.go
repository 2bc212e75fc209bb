// Package jobs はお問い合わせメッセージの非同期配送を扱います。
package jobs

import "time"

// Status は配送の状態を表します。
type Status string

const (
	StatusQueued     Status = "queued"
	StatusDelivering Status = "delivering"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
)

// ErrorInfo は配送失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Record はお問い合わせ1件の配送状況です。本文は保持しません。
type Record struct {
	MessageID string     `json:"messageId"`
	Status    Status     `json:"status"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Attempts  int        `json:"attempts"`
	Error     *ErrorInfo `json:"error,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}
