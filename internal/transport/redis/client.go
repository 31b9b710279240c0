package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
)

var ErrSubscriptionsDisabled = errors.New("game events are disabled")

// Publisher - sends game events to a per-game Redis pub/sub channel.
type Publisher struct {
	logger *slog.Logger
	client *redis.Client
	prefix string
}

func NewPublisher(logger *slog.Logger, client *redis.Client, prefix string) *Publisher {
	return &Publisher{
		logger: logger.With("component", "events"),
		client: client,
		prefix: prefix,
	}
}

// Channel - returns the channel name events of the game are published on.
func (that *Publisher) Channel(gameID string) string {
	return that.prefix + ":" + gameID
}

func (that *Publisher) Publish(ctx context.Context, event *entity.GameEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not marshal event: %w", err)
	}

	if err = that.client.Publish(ctx, that.Channel(event.GameID), eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Subscribe - listens for events of a single game until the subscription is closed.
func (that *Publisher) Subscribe(ctx context.Context, gameID string) (*Subscription, error) {
	pubsub := that.client.Subscribe(ctx, that.Channel(gameID))

	// wait for the confirmation so no event published after Subscribe returns is lost
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to game %s: %w", gameID, err)
	}

	sub := &Subscription{
		pubsub: pubsub,
		events: make(chan *entity.GameEvent),
		done:   make(chan struct{}),
	}

	go sub.forward(that.logger.With("gameID", gameID))

	return sub, nil
}

type Subscription struct {
	pubsub *redis.PubSub
	events chan *entity.GameEvent

	closeOnce sync.Once
	done      chan struct{}
}

// Events - is closed once the subscription ends.
func (that *Subscription) Events() <-chan *entity.GameEvent {
	return that.events
}

func (that *Subscription) Close() error {
	var err error
	that.closeOnce.Do(func() {
		close(that.done)
		err = that.pubsub.Close()
	})

	if err != nil {
		return fmt.Errorf("failed to close subscription: %w", err)
	}

	return nil
}

func (that *Subscription) forward(log *slog.Logger) {
	defer close(that.events)

	for msg := range that.pubsub.Channel() {
		var event entity.GameEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Error("failed to unmarshal event", "error", err)
			continue
		}

		select {
		case that.events <- &event:
		case <-that.done:
			return
		}
	}
}

// Nop - is used when Redis is disabled; events are dropped.
type Nop struct{}

func (Nop) Publish(context.Context, *entity.GameEvent) error {
	return nil
}

func (Nop) Subscribe(context.Context, string) (*Subscription, error) {
	return nil, ErrSubscriptionsDisabled
}
