package auth

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/member-portal/internal/flash"
)

const (
	sessionKeyCSRF = "csrf_token"

	// CSRFFormField はフォームに埋め込む hidden フィールド名です。
	CSRFFormField = "csrf_token"
	csrfHeader    = "X-CSRF-Token"
)

// Gate は token Cookie から利用者を復元するミドルウェアです。
// 検証に失敗した場合は Cookie を削除して匿名として続行し、リクエストを止めません。
func (m *Manager) Gate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(TokenCookieName)
		if err != nil || raw == "" {
			c.Next()
			return
		}

		id, err := m.tokens.Verify(raw)
		if err != nil {
			m.clearTokenCookie(c)
			c.Next()
			return
		}

		c.Set(ContextUserKey, id)
		c.Next()
	}
}

// RequireLogin はログイン済みでなければ /login へ誘導するミドルウェアです。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); ok {
			c.Next()
			return
		}
		flash.Add(c, flash.Error, MsgLoginRequired)
		c.Redirect(http.StatusFound, LoginPath)
		c.Abort()
	}
}

// VerifyCSRF はフォームの csrf_token（または X-CSRF-Token ヘッダー）を検証するミドルウェアです。
func (m *Manager) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		session := sessions.Default(c)
		expected, _ := session.Get(sessionKeyCSRF).(string)

		received := c.PostForm(CSRFFormField)
		if received == "" {
			received = c.GetHeader(csrfHeader)
		}

		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			flash.Add(c, flash.Error, MsgCSRF)
			c.Redirect(http.StatusSeeOther, c.Request.URL.Path)
			c.Abort()
			return
		}

		c.Next()
	}
}

// CSRFToken はセッションの CSRF トークンを返します。無ければ発行して保存します。
func CSRFToken(c *gin.Context) string {
	session := sessions.Default(c)
	if token, ok := session.Get(sessionKeyCSRF).(string); ok && token != "" {
		return token
	}

	token, err := generateToken()
	if err != nil {
		log.Printf("csrf: failed to generate token: %v", err)
		return ""
	}
	session.Set(sessionKeyCSRF, token)
	if err := session.Save(); err != nil {
		log.Printf("csrf: failed to save session: %v", err)
	}
	return token
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
