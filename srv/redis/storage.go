package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quoteflow/common"
	"quoteflow/srv"

	"github.com/redis/go-redis/v9"
)

var _ srv.Storage = (*Storage)(nil)

// Storage keeps records as JSON values. Key layout:
//
//	quote:<id>                  quote record
//	quote_seq                   quote id sequence
//	user:<userId>:quotes        set of the user's quote ids
//	quote:<id>:workflow         id of the quote's workflow
//	workflow:<id>               workflow record
//	workflow:<id>:steps         set of the workflow's step ids
//	workflow:<id>:step:<stepId> step record
type Storage struct {
	Client *redis.Client
}

func NewStorage() *Storage {
	return &Storage{Client: setupClient()}
}

func (s Storage) CheckConnection(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func (s Storage) getJSON(ctx context.Context, key string, value interface{}) error {
	record, err := s.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return common.ErrNotFound
		}
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(record), value); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func marshal(value interface{}) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}
	return string(data), nil
}
