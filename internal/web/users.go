package web

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/member-portal/internal/auth"
	"github.com/yourusername/member-portal/internal/flash"
	"github.com/yourusername/member-portal/internal/users"
)

// MsgUsersUnavailable は一覧の取得に失敗したときの通知です。
const MsgUsersUnavailable = "ユーザー一覧を取得できませんでした"

// UsersHandler は GET /users のハンドラーを返します。RequireLogin の後ろに置きます。
func UsersHandler(store auth.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := listUsers(c.Request.Context(), store)
		if err != nil {
			log.Printf("users: failed to list users: %v", err)
			flash.Add(c, flash.Error, MsgUsersUnavailable)
			c.Redirect(http.StatusFound, auth.HomePath)
			return
		}
		Render(c, http.StatusOK, "users", "ユーザー一覧", gin.H{"Users": list})
	}
}

func listUsers(ctx context.Context, store auth.UserStore) ([]users.Summary, error) {
	conn, err := store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	return conn.List(ctx)
}
