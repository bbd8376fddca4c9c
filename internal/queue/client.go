package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/keygate/keygate/internal/apikeys"
	"github.com/keygate/keygate/internal/config"
)

// Client enqueues background work. It implements apikeys.EventRecorder so
// key lifecycle latency never pays for audit writes.
type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) RecordKeyEvent(_ context.Context, evt apikeys.KeyEvent) error {
	payload := KeyEventPayload{
		APIKeyID: evt.KeyID.String(),
		UserID:   evt.OwnerID.String(),
		Action:   evt.Action,
		Detail:   evt.Detail,
	}
	return c.enqueue(TypeKeyEvent, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
}

func (c *Client) enqueue(taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.Enqueue(task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
