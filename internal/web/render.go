// Package web はサーバーサイドで描画する画面とその静的アセットを提供します。
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/member-portal/internal/auth"
	"github.com/yourusername/member-portal/internal/flash"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page は全テンプレートへ渡す共通データです。
type Page struct {
	Title     string
	User      *auth.Identity
	Flash     flash.Messages
	CSRFToken string
	Data      gin.H
}

// Templates は埋め込みテンプレートを読み込みます。
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"formatTime": formatTime,
	}).ParseFS(templateFS, "templates/*.html")
}

// Static は /static 配下で配信するファイルシステムを返します。
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// Render はフラッシュメッセージ・ログイン中の利用者・CSRFトークンを添えてページを描画します。
// フラッシュはここで取り出され、次のページには残りません。
func Render(c *gin.Context, status int, name, title string, data gin.H) {
	page := Page{
		Title:     title,
		Flash:     flash.Pop(c),
		CSRFToken: auth.CSRFToken(c),
		Data:      data,
	}
	if id, ok := auth.CurrentUser(c); ok {
		page.User = &id
	}
	c.HTML(status, name, page)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
