package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Conn はリクエストの間だけ保持される接続です。
type Conn struct {
	conn  *sql.Conn
	now   func() time.Time
	newID func() string
}

// Release は接続をプールへ返却します。複数回呼んでも安全です。
func (c *Conn) Release() {
	if c == nil || c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
}

// ExistsByUsernameOrEmail はユーザー名またはメールアドレスが既に使われているかを返します。
func (c *Conn) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	query :=
		`SELECT id FROM users
		 WHERE username = $1 OR email = $2
		 LIMIT 1`

	var id string
	err := c.conn.QueryRowContext(ctx, query, username, email).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

// FindByUsername はユーザー名で利用者を取得します。
func (c *Conn) FindByUsername(ctx context.Context, username string) (*User, error) {
	query :=
		`SELECT id, username, name, email, password_hash, created_at FROM users
		 WHERE username = $1`

	u := &User{}
	err := c.conn.QueryRowContext(ctx, query, username).
		Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// Create は利用者を登録します。ID と CreatedAt はここで採番されます。
func (c *Conn) Create(ctx context.Context, u *User) error {
	query :=
		`INSERT INTO users (id, username, name, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	id := c.newID()
	createdAt := c.now()
	_, err := c.conn.ExecContext(ctx, query, id, u.Username, u.Name, u.Email, u.PasswordHash, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("db error: %w", err)
	}

	u.ID = id
	u.CreatedAt = createdAt
	return nil
}

// List は全利用者を登録順に返します。
func (c *Conn) List(ctx context.Context) ([]Summary, error) {
	query :=
		`SELECT id, username, name, email, created_at FROM users
		 ORDER BY created_at, id`

	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Username, &s.Name, &s.Email, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
