package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/member-portal/internal/config"
	"github.com/yourusername/member-portal/internal/jobs"
	"github.com/yourusername/member-portal/internal/sessionstore"
	"github.com/yourusername/member-portal/internal/web"
)

const redisPingTimeout = 5 * time.Second

type contactScheduler struct {
	manager *jobs.Manager
}

func (s *contactScheduler) ScheduleContact(ctx context.Context, msg web.ContactMessage) (string, error) {
	return s.manager.Enqueue(ctx, &jobs.TaskPayload{
		Name:    msg.Name,
		Email:   msg.Email,
		Message: msg.Message,
	})
}

func setupJobs(cfg *config.Config) (*jobs.Manager, func(), error) {
	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		return nil, nil, err
	}

	redisClient := redis.NewClient(opt)
	ttlMinutes := cfg.ContactExpireMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 24 * 60
	}
	store := jobs.NewStore(redisClient, time.Duration(ttlMinutes)*time.Minute)
	manager, err := jobs.NewManager(cfg, store, jobs.LogDeliverer{Logger: log.Default()}, log.Default())
	if err != nil {
		_ = redisClient.Close()
		return nil, nil, err
	}
	return manager, func() { _ = redisClient.Close() }, nil
}

// setupSessions はセッションストアを作成します。SESSION_REDIS_URL が空ならプロセス内に保存します。
func setupSessions(ctx context.Context, cfg *config.Config) (sessions.Store, func(), error) {
	var (
		backend sessionstore.Backend
		closer  = func() {}
	)
	if cfg.SessionRedisURL != "" {
		opt, err := redis.ParseURL(cfg.SessionRedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse SESSION_REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("ping session redis: %w", err)
		}
		backend = sessionstore.NewRedisBackend(rdb)
		closer = func() { _ = rdb.Close() }
	} else {
		backend = sessionstore.NewMemoryBackend()
	}

	store := sessionstore.New(backend, []byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAgeSeconds,
		HttpOnly: true,
		Secure:   cfg.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
	return store, closer, nil
}
