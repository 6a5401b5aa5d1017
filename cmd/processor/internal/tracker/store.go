package tracker

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/FAbreu6/TP3-IS/pkg/models"
)

const pendingKey = "pending_deliveries"

// PendingStore persists pending deliveries so a restart can rebuild the
// in-memory map instead of silently forgetting in-flight work.
type PendingStore interface {
	Save(ctx context.Context, pd models.PendingDelivery) error
	Remove(ctx context.Context, correlationID string) error
	LoadAll(ctx context.Context) ([]models.PendingDelivery, error)
}

var _ PendingStore = (*RedisPendingStore)(nil)

// RedisPendingStore keeps entries in a Redis hash keyed by correlation id.
type RedisPendingStore struct {
	client *redis.Client
}

func NewRedisPendingStore(client *redis.Client) *RedisPendingStore {
	return &RedisPendingStore{client: client}
}

func (s *RedisPendingStore) Save(ctx context.Context, pd models.PendingDelivery) error {
	raw, err := json.Marshal(pd)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, pendingKey, pd.CorrelationID, raw).Err()
}

func (s *RedisPendingStore) Remove(ctx context.Context, correlationID string) error {
	return s.client.HDel(ctx, pendingKey, correlationID).Err()
}

func (s *RedisPendingStore) LoadAll(ctx context.Context) ([]models.PendingDelivery, error) {
	entries, err := s.client.HGetAll(ctx, pendingKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.PendingDelivery, 0, len(entries))
	for _, raw := range entries {
		var pd models.PendingDelivery
		if err := json.Unmarshal([]byte(raw), &pd); err != nil {
			continue
		}
		out = append(out, pd)
	}
	return out, nil
}
