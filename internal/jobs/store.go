package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recordKeyPrefix = "contact:"
	maxUpdateRetry  = 5
)

// ErrRecordNotFound は記録が存在しない（期限切れを含む）ことを表します。
var ErrRecordNotFound = errors.New("contact record not found")

// Store は配送記録を Redis に保存します。
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Get は配送記録を取得します。
func (s *Store) Get(ctx context.Context, messageID string) (*Record, error) {
	if messageID == "" {
		return nil, fmt.Errorf("messageID is required")
	}
	data, err := s.rdb.Get(ctx, recordKey(messageID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Create は新しい配送記録を保存します。
func (s *Store) Create(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.ExpiresAt.IsZero() && s.ttl > 0 {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, recordKey(record.MessageID), payload, s.ttl).Err()
}

// MarkDelivering は配送開始を記録し、試行回数を進めます。
func (s *Store) MarkDelivering(ctx context.Context, messageID string) error {
	return s.update(ctx, messageID, func(record *Record) {
		record.Status = StatusDelivering
		record.Attempts++
	})
}

// MarkDelivered は配送完了を記録します。
func (s *Store) MarkDelivered(ctx context.Context, messageID string) error {
	return s.update(ctx, messageID, func(record *Record) {
		record.Status = StatusDelivered
		record.Error = nil
	})
}

// MarkFailed は配送失敗を記録します。
func (s *Store) MarkFailed(ctx context.Context, messageID string, errInfo *ErrorInfo) error {
	return s.update(ctx, messageID, func(record *Record) {
		record.Status = StatusFailed
		record.Error = errInfo
	})
}

// update は WATCH でキーを監視しながら記録を書き換えます。
func (s *Store) update(ctx context.Context, messageID string, mutate func(*Record)) error {
	key := recordKey(messageID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrRecordNotFound
			}
			return err
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		mutate(&record)
		record.UpdatedAt = s.now()
		payload, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetry; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update contact record %s: %w", messageID, redis.TxFailedErr)
}

func recordKey(id string) string {
	return recordKeyPrefix + id
}
