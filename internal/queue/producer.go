package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Producer struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream, maxLen: 10000}
}

// Enqueue appends a task to the stream. payload may be nil.
func (p *Producer) Enqueue(ctx context.Context, taskType string, payload any) (string, error) {
	values := map[string]any{"type": taskType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encode %s payload: %w", taskType, err)
		}
		values["payload"] = string(raw)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return id, nil
}
