// Package main は会員ポータルの Web サーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/member-portal/internal/auth"
	"github.com/yourusername/member-portal/internal/config"
	"github.com/yourusername/member-portal/internal/users"
	"github.com/yourusername/member-portal/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("%v", err)
	}
}

// run は依存を組み立ててサーバーを動かします。
// 戻る前に defer で DB・セッション・キューを必ず閉じます。
func run() error {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 資格情報ストアへの接続とテーブル作成
	store, err := users.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare schema: %w", err)
	}

	sessionStore, closeSessions, err := setupSessions(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up session store: %w", err)
	}
	defer closeSessions()

	// お問い合わせ配送キュー（QUEUE_REDIS_URL が空なら無効）
	var scheduler web.ContactScheduler
	if cfg.QueueRedisURL != "" {
		manager, closeRecords, err := setupJobs(cfg)
		if err != nil {
			return fmt.Errorf("failed to set up contact queue: %w", err)
		}
		manager.StartWorkers()
		defer func() {
			if err := manager.Shutdown(); err != nil {
				log.Printf("Failed to shut down contact queue: %v", err)
			}
			closeRecords()
		}()
		scheduler = &contactScheduler{manager: manager}
	} else {
		log.Printf("QUEUE_REDIS_URL is not set; contact messages are only logged")
	}

	router, err := newRouter(cfg, store, sessionStore, scheduler)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("Starting server on %s (mode: %s, db: %s)", srv.Addr, cfg.GinMode, cfg.DBDriver)
	return serve(ctx, srv)
}

// serve は ctx が終わるまでサーバーを動かし、終了時は猶予付きで停止します。
// 起動・待受に失敗した場合もそのエラーを呼び出し元へ返します。
func serve(ctx context.Context, srv *http.Server) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutting down server")
	case err := <-serveErr:
		return fmt.Errorf("server stopped: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "member-portal",
	})
}

// newRouter はミドルウェアとルーティングを組み立てます。
func newRouter(cfg *config.Config, store *users.Store, sessionStore sessions.Store, scheduler web.ContactScheduler) (*gin.Engine, error) {
	authManager, err := auth.NewManager(cfg, store, log.Default())
	if err != nil {
		return nil, err
	}

	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()
	router.SetHTMLTemplate(tmpl)

	// 信頼するプロキシ以外の X-Forwarded-For は無視し、接続元IPでログイン試行を数える
	if err := router.SetTrustedProxies(cfg.TrustedProxyList()); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	// CORSミドルウェアの設定（許可オリジンがある場合のみ）
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
		corsConfig.AllowHeaders = []string{
			"Origin",
			"Content-Type",
			"Accept",
			"X-CSRF-Token", // CSRF保護用ヘッダー
		}
		router.Use(cors.New(corsConfig))
	}

	// まずは誰でも叩けるヘルスチェックと静的ファイルを登録
	router.GET("/health", handleHealth)
	router.StaticFS("/static", web.Static())

	pages := router.Group("")
	pages.Use(sessions.Sessions(cfg.SessionCookieName, sessionStore), authManager.Gate())
	{
		pages.GET("/", web.Index)
		pages.GET("/about", web.About)
		pages.GET("/contact", web.ContactForm)
		pages.POST("/contact", authManager.VerifyCSRF(), web.ContactSubmit(scheduler))

		pages.GET(auth.RegisterPath, web.RegisterForm)
		pages.POST(auth.RegisterPath, authManager.VerifyCSRF(), authManager.Register)
		pages.GET(auth.LoginPath, web.LoginForm)
		pages.POST(auth.LoginPath, authManager.VerifyCSRF(), authManager.Login)
		pages.GET("/logout", authManager.Logout)

		pages.GET("/users", authManager.RequireLogin(), web.UsersHandler(store))
	}

	return router, nil
}
