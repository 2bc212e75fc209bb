// Package flash はセッションに保存する一度きりの通知メッセージを扱います。
package flash

import (
	"log"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Kind はメッセージの種類で、セッション上のキーを兼ねます。
type Kind string

const (
	Success Kind = "success_msg"
	Error   Kind = "error_msg"
)

// Messages は次に描画されるページへ渡すメッセージです。
type Messages struct {
	Success []string
	Error   []string
}

// Empty はメッセージが1件も無いかを返します。
func (m Messages) Empty() bool {
	return len(m.Success) == 0 && len(m.Error) == 0
}

// Add はメッセージを現在のセッションへ積みます。
func Add(c *gin.Context, kind Kind, message string) {
	session := sessions.Default(c)
	session.AddFlash(message, string(kind))
	if err := session.Save(); err != nil {
		log.Printf("flash: failed to save session: %v", err)
	}
}

// Pop は積まれているメッセージを取り出し、セッションから削除します。
func Pop(c *gin.Context) Messages {
	session := sessions.Default(c)
	msgs := Messages{
		Success: toStrings(session.Flashes(string(Success))),
		Error:   toStrings(session.Flashes(string(Error))),
	}
	if msgs.Empty() {
		return msgs
	}
	if err := session.Save(); err != nil {
		log.Printf("flash: failed to save session: %v", err)
	}
	return msgs
}

func toStrings(values []interface{}) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
