// Package messagequeue 定义领域事件的发布抽象，具体实现见 kafka 子包。
package messagequeue

import (
	"context"
	"time"
)

// Event 是发布到消息队列的事件信封。
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// EventPublisher 定义了领域事件发布的通用接口，key 决定分区。
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
	Close() error
}

// NopPublisher 丢弃所有事件，用于未启用消息队列时。
type NopPublisher struct{}

// Publish 实现 EventPublisher。
func (NopPublisher) Publish(context.Context, string, Event) error { return nil }

// Close 实现 EventPublisher。
func (NopPublisher) Close() error { return nil }
