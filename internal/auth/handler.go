package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/member-portal/internal/flash"
	"github.com/yourusername/member-portal/internal/users"
)

const minPasswordLength = 8

type registerRequest struct {
	Username string `form:"username"`
	Name     string `form:"name"`
	Email    string `form:"email"`
	Password string `form:"password"`
}

type loginRequest struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// Register は POST /register のハンドラーです。
func (m *Manager) Register(c *gin.Context) {
	var req registerRequest
	err := c.ShouldBind(&req)
	if err != nil {
		err = invalid(MsgInvalidInput)
	} else {
		err = m.register(c.Request.Context(), req)
	}
	m.finish(c, err, outcome{
		op:        "register",
		success:   MsgRegistered,
		successTo: LoginPath,
		failTo:    RegisterPath,
	})
}

func (m *Manager) register(ctx context.Context, req registerRequest) error {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	name := strings.TrimSpace(req.Name)
	if username == "" || email == "" {
		return invalid(MsgMissingFields)
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return invalid(MsgPasswordTooShort)
	}
	if name == "" {
		name = username
	}

	conn, err := m.store.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	taken, err := conn.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return err
	}
	if taken {
		return invalid(MsgAlreadyTaken)
	}

	hash, err := m.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return invalid(MsgPasswordTooLong)
		}
		return err
	}

	err = conn.Create(ctx, &users.User{
		Username:     username,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	})
	if errors.Is(err, users.ErrDuplicate) {
		return invalid(MsgAlreadyTaken)
	}
	return err
}

// Login は POST /login のハンドラーです。
func (m *Manager) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		m.finish(c, invalid(MsgInvalidInput), outcome{op: "login", failTo: LoginPath})
		return
	}

	user, err := m.login(c.Request.Context(), c.ClientIP(), req)
	if err == nil {
		var token string
		token, err = m.tokens.Issue(Identity{ID: user.ID, Username: user.Username, Email: user.Email})
		if err == nil {
			m.setTokenCookie(c, token)
		}
	}
	m.finish(c, err, outcome{
		op:        "login",
		success:   MsgLoggedIn,
		successTo: HomePath,
		failTo:    LoginPath,
	})
}

func (m *Manager) login(ctx context.Context, ip string, req loginRequest) (*users.User, error) {
	if m.checkLock(ip) > 0 {
		return nil, ErrTooManyAttempts
	}

	conn, err := m.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	user, err := conn.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			m.recordFailure(ip)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !m.hasher.Verify(user.PasswordHash, req.Password) {
		m.recordFailure(ip)
		return nil, ErrInvalidCredentials
	}

	m.resetAttempts(ip)
	return user, nil
}

// Logout は GET /logout のハンドラーです。トークンが無くても同じ結果になります。
func (m *Manager) Logout(c *gin.Context) {
	m.clearTokenCookie(c)
	flash.Add(c, flash.Success, MsgLoggedOut)
	c.Redirect(http.StatusFound, LoginPath)
}
