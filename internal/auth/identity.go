package auth

import "github.com/gin-gonic/gin"

// ContextUserKey は、ハンドラー間でログイン済み利用者を共有するためのキーです。
const ContextUserKey = "auth.user"

// Identity はトークンから復元した利用者情報です。
type Identity struct {
	ID       string
	Username string
	Email    string
}

// CurrentUser は Gate が設定した利用者を返します。匿名の場合は false です。
func CurrentUser(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
