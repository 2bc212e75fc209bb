package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/yourusername/member-portal/internal/config"
)

const (
	// TaskTypeContact はお問い合わせ配送タスクの種類です。
	TaskTypeContact = "contact:deliver"

	queueName   = "contact"
	maxRetry    = 3
	taskTimeout = 30 * time.Second
	errCodeSend = "DELIVERY_FAILED"
)

// RecordStore は配送記録の保存先です。
type RecordStore interface {
	Create(ctx context.Context, record *Record) error
	MarkDelivering(ctx context.Context, messageID string) error
	MarkDelivered(ctx context.Context, messageID string) error
	MarkFailed(ctx context.Context, messageID string, errInfo *ErrorInfo) error
}

// Deliverer はお問い合わせを宛先へ届けます。
type Deliverer interface {
	Deliver(ctx context.Context, payload *TaskPayload) error
}

// LogDeliverer はお問い合わせをログへ出力するだけの Deliverer です。
type LogDeliverer struct {
	Logger *log.Logger
}

// Deliver はお問い合わせをログに書き出します。
func (d LogDeliverer) Deliver(ctx context.Context, payload *TaskPayload) error {
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("contact %s from %s <%s>: %s", payload.MessageID, payload.Name, payload.Email, payload.Message)
	return nil
}

// TaskPayload はお問い合わせ配送タスクのペイロードです。
type TaskPayload struct {
	MessageID string `json:"messageId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
}

// Manager はタスクの投入とワーカーの実行を担います。
type Manager struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	store     RecordStore
	deliverer Deliverer
	logger    *log.Logger
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, store RecordStore, deliverer Deliverer, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if deliverer == nil {
		return nil, errors.New("deliverer is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)

	manager := newManager(store, deliverer, logger)
	manager.client = client
	manager.server = server
	return manager, nil
}

func newManager(store RecordStore, deliverer Deliverer, logger *log.Logger) *Manager {
	m := &Manager{
		mux:       asynq.NewServeMux(),
		store:     store,
		deliverer: deliverer,
		logger:    logger,
	}
	m.mux.HandleFunc(TaskTypeContact, m.handleContactTask)
	return m
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			m.logger.Printf("asynq server stopped with error: %v", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown() error {
	m.server.Shutdown()
	return m.client.Close()
}

// Enqueue は配送記録を作成してからタスクを投入し、メッセージIDを返します。
func (m *Manager) Enqueue(ctx context.Context, payload *TaskPayload) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("payload is nil")
	}
	if payload.MessageID == "" {
		payload.MessageID = uuid.NewString()
	}

	record := &Record{
		MessageID: payload.MessageID,
		Status:    StatusQueued,
		Name:      payload.Name,
		Email:     payload.Email,
	}
	if err := m.store.Create(ctx, record); err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(TaskTypeContact, body, asynq.Queue(queueName))
	if _, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(maxRetry), asynq.Timeout(taskTimeout)); err != nil {
		return "", err
	}
	return payload.MessageID, nil
}

func (m *Manager) handleContactTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.MessageID == "" {
		return fmt.Errorf("missing messageId in payload: %w", asynq.SkipRetry)
	}

	if err := m.store.MarkDelivering(ctx, payload.MessageID); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			// 記録の期限切れ後に届いたタスクは破棄する
			m.logger.Printf("contact %s: record expired, dropping task", payload.MessageID)
			return nil
		}
		return err
	}

	if err := m.deliverer.Deliver(ctx, &payload); err != nil {
		if markErr := m.store.MarkFailed(ctx, payload.MessageID, &ErrorInfo{
			Code:    errCodeSend,
			Message: err.Error(),
		}); markErr != nil {
			m.logger.Printf("contact %s: failed to mark failure: %v", payload.MessageID, markErr)
		}
		return err
	}

	return m.store.MarkDelivered(ctx, payload.MessageID)
}
