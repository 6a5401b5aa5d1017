package poller

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/FAbreu6/TP3-IS/pkg/models"
)

const cursorKey = "processor:cursor"

// CursorStore persists the single pointer to the last handled artifact.
type CursorStore interface {
	Load(ctx context.Context) (models.ProcessorCursor, error)
	Save(ctx context.Context, cursor models.ProcessorCursor) error
}

var _ CursorStore = (*RedisCursorStore)(nil)

// RedisCursorStore keeps the cursor as one JSON value, overwritten
// atomically per successful iteration.
type RedisCursorStore struct {
	client *redis.Client
}

func NewRedisCursorStore(client *redis.Client) *RedisCursorStore {
	return &RedisCursorStore{client: client}
}

func (s *RedisCursorStore) Load(ctx context.Context) (models.ProcessorCursor, error) {
	raw, err := s.client.Get(ctx, cursorKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.ProcessorCursor{}, nil
		}
		return models.ProcessorCursor{}, err
	}

	var cursor models.ProcessorCursor
	if err := json.Unmarshal([]byte(raw), &cursor); err != nil {
		return models.ProcessorCursor{}, err
	}
	return cursor, nil
}

func (s *RedisCursorStore) Save(ctx context.Context, cursor models.ProcessorCursor) error {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, cursorKey, raw, 0).Err()
}
