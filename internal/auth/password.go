package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost は保存用ハッシュのコストです。
const DefaultBcryptCost = 12

// Hasher はパスワードの一方向ハッシュを扱います。
type Hasher struct {
	cost int
}

// NewHasher は Hasher を作成します。範囲外のコストはデフォルト値になります。
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &Hasher{cost: cost}
}

// Hash はパスワードをハッシュ化します。72バイトを超える場合は bcrypt.ErrPasswordTooLong を返します。
func (h *Hasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify はハッシュとパスワードが一致するかを返します。
func (h *Hasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
