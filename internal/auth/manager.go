// Package auth は利用者登録・ログイン・認証トークンによるアクセス制御を提供します。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/member-portal/internal/config"
	"github.com/yourusername/member-portal/internal/flash"
	"github.com/yourusername/member-portal/internal/users"
)

// 画面遷移先のパスです。
const (
	HomePath     = "/"
	LoginPath    = "/login"
	RegisterPath = "/register"
)

// TokenCookieName は認証トークンを保持する Cookie 名です。
const TokenCookieName = "token"

var (
	loginWindow  = 15 * time.Minute
	lockDuration = 10 * time.Minute
)

// UserStore は資格情報ストアから接続を借りるためのインターフェースです。
type UserStore interface {
	Acquire(ctx context.Context) (*users.Conn, error)
}

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	store        UserStore
	hasher       *Hasher
	tokens       *TokenIssuer
	logger       *log.Logger
	secureCookie bool
	maxAttempts  int

	lock     sync.Mutex
	attempts map[string]*attemptState
	now      func() time.Time
}

// NewManager は認証マネージャーを作成します。
func NewManager(cfg *config.Config, store UserStore, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	tokens, err := NewTokenIssuer([]byte(cfg.JWTSecret), time.Duration(cfg.TokenTTLHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	maxAttempts := cfg.LoginMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Manager{
		store:        store,
		hasher:       NewHasher(cfg.BcryptCost),
		tokens:       tokens,
		logger:       logger,
		secureCookie: cfg.SecureCookies(),
		maxAttempts:  maxAttempts,
		attempts:     make(map[string]*attemptState),
		now:          time.Now,
	}, nil
}

// outcome は処理結果をレスポンスへ変換するための遷移先です。
type outcome struct {
	op        string
	success   string
	successTo string
	failTo    string
}

// finish は処理結果を1か所でフラッシュメッセージとリダイレクトに変換します。
func (m *Manager) finish(c *gin.Context, err error, o outcome) {
	if err == nil {
		flash.Add(c, flash.Success, o.success)
		c.Redirect(http.StatusSeeOther, o.successTo)
		return
	}

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		flash.Add(c, flash.Error, verr.Message)
	case errors.Is(err, ErrInvalidCredentials):
		flash.Add(c, flash.Error, MsgInvalidCredentials)
	case errors.Is(err, ErrTooManyAttempts):
		flash.Add(c, flash.Error, MsgTooManyAttempts)
	default:
		m.logger.Printf("%s failed: %v", o.op, err)
		flash.Add(c, flash.Error, MsgGenericError)
	}
	c.Redirect(http.StatusSeeOther, o.failTo)
}

func (m *Manager) setTokenCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearTokenCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) checkLock(ip string) time.Duration {
	m.lock.Lock()
	defer m.lock.Unlock()

	state, ok := m.attempts[ip]
	if !ok {
		return 0
	}
	now := m.now()
	if now.After(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

func (m *Manager) recordFailure(ip string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	state, ok := m.attempts[ip]
	if !ok || now.Sub(state.firstAttempt) > loginWindow {
		state = &attemptState{firstAttempt: now}
		m.attempts[ip] = state
	}

	state.count++
	if state.count >= m.maxAttempts {
		state.lockedUntil = now.Add(lockDuration)
		state.count = m.maxAttempts
	}
}

func (m *Manager) resetAttempts(ip string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.attempts, ip)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
