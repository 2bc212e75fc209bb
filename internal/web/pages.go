package web

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
)

//go:embed content/about.md
var aboutSource []byte

var (
	aboutOnce sync.Once
	aboutHTML template.HTML
	aboutErr  error
)

// Index は GET / のハンドラーです。
func Index(c *gin.Context) {
	Render(c, http.StatusOK, "index", "ホーム", gin.H{
		"Message": "Member Portal へようこそ",
	})
}

// About は GET /about のハンドラーです。本文は Markdown から一度だけ変換します。
func About(c *gin.Context) {
	body, err := renderAbout()
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}
	Render(c, http.StatusOK, "about", "このサイトについて", gin.H{"Body": body})
}

func renderAbout() (template.HTML, error) {
	aboutOnce.Do(func() {
		var buf bytes.Buffer
		if aboutErr = goldmark.Convert(aboutSource, &buf); aboutErr == nil {
			// 埋め込みの固定文書のみを変換する
			aboutHTML = template.HTML(buf.String())
		}
	})
	return aboutHTML, aboutErr
}

// RegisterForm は GET /register のハンドラーです。
func RegisterForm(c *gin.Context) {
	Render(c, http.StatusOK, "register", "ユーザー登録", nil)
}

// LoginForm は GET /login のハンドラーです。
func LoginForm(c *gin.Context) {
	Render(c, http.StatusOK, "login", "ログイン", nil)
}
