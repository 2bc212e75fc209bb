package web

import (
	"context"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/member-portal/internal/flash"
)

const (
	contactPath      = "/contact"
	maxContactLength = 2000
)

// お問い合わせフォームの通知です。
const (
	MsgContactSent    = "お問い合わせを受け付けました"
	MsgContactMissing = "お名前・メールアドレス・内容は必須です"
	MsgContactEmail   = "メールアドレスの形式が正しくありません"
	MsgContactTooLong = "お問い合わせ内容は2000文字以内で入力してください"
	MsgContactFailed  = "お問い合わせの送信に失敗しました。時間をおいて再度お試しください"
)

// ContactMessage はフォームから受け付けたお問い合わせです。
type ContactMessage struct {
	Name    string
	Email   string
	Message string
}

// ContactScheduler はお問い合わせの配送を予約します。
type ContactScheduler interface {
	ScheduleContact(ctx context.Context, msg ContactMessage) (string, error)
}

type contactRequest struct {
	Name    string `form:"name"`
	Email   string `form:"email"`
	Message string `form:"message"`
}

// ContactForm は GET /contact のハンドラーです。
func ContactForm(c *gin.Context) {
	Render(c, http.StatusOK, "contact", "お問い合わせ", nil)
}

// ContactSubmit は POST /contact のハンドラーを返します。
// scheduler が nil の場合は配送せずログに残すだけです。
func ContactSubmit(scheduler ContactScheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req contactRequest
		if err := c.ShouldBind(&req); err != nil {
			contactResult(c, flash.Error, MsgContactMissing)
			return
		}

		msg := ContactMessage{
			Name:    strings.TrimSpace(req.Name),
			Email:   strings.TrimSpace(req.Email),
			Message: strings.TrimSpace(req.Message),
		}
		if text := validateContact(msg); text != "" {
			contactResult(c, flash.Error, text)
			return
		}

		if scheduler == nil {
			log.Printf("contact: queue disabled, received message from %s <%s>", msg.Name, msg.Email)
			contactResult(c, flash.Success, MsgContactSent)
			return
		}

		id, err := scheduler.ScheduleContact(c.Request.Context(), msg)
		if err != nil {
			log.Printf("contact: failed to schedule delivery: %v", err)
			contactResult(c, flash.Error, MsgContactFailed)
			return
		}
		log.Printf("contact: scheduled message %s", id)
		contactResult(c, flash.Success, MsgContactSent)
	}
}

func validateContact(msg ContactMessage) string {
	if msg.Name == "" || msg.Email == "" || msg.Message == "" {
		return MsgContactMissing
	}
	if _, err := mail.ParseAddress(msg.Email); err != nil {
		return MsgContactEmail
	}
	if utf8.RuneCountInString(msg.Message) > maxContactLength {
		return MsgContactTooLong
	}
	return ""
}

func contactResult(c *gin.Context, kind flash.Kind, text string) {
	flash.Add(c, kind, text)
	c.Redirect(http.StatusSeeOther, contactPath)
}
