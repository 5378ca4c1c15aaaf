package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"holdem-service/internal/model"
	"holdem-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	EventStart  = "hand_start"
	EventAction = "action"
	EventStreet = "street"
	EventTick   = "tick"
)

// Event announces a committed change to a hand. Subscribers re-read the
// state; the event carries no hand data of its own.
type Event struct {
	HandID  int64       `json:"handId"`
	TableID int64       `json:"tableId"`
	Kind    string      `json:"kind"`
	Stage   model.Stage `json:"stage"`
}

type Notifier interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns a channel of events for one hand and a cancel
	// func that closes it.
	Subscribe(ctx context.Context, handID int64) (<-chan Event, func())
}

func (s *Service) publish(ctx context.Context, ev Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, ev); err != nil {
		logger.Log.Warn("hand event publish failed",
			zap.Int64("handID", ev.HandID),
			zap.String("kind", ev.Kind),
			zap.Error(err),
		)
	}
}

const subscriberBuffer = 8

// LocalNotifier fans events out inside one process.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[int64]map[chan Event]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[int64]map[chan Event]struct{})}
}

func (n *LocalNotifier) Publish(_ context.Context, ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[ev.HandID] {
		select {
		case ch <- ev:
		default:
			logger.Log.Warn("hand subscriber channel full", zap.Int64("handID", ev.HandID))
		}
	}
	return nil
}

func (n *LocalNotifier) Subscribe(_ context.Context, handID int64) (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if n.subs[handID] == nil {
		n.subs[handID] = make(map[chan Event]struct{})
	}
	n.subs[handID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[handID], ch)
			if len(n.subs[handID]) == 0 {
				delete(n.subs, handID)
			}
			close(ch)
		})
	}
}

// RedisNotifier publishes on a per-hand channel so every node serving
// a hand's stream sees changes made by any other node.
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// NewNotifier picks redis when a client is configured.
func NewNotifier(rdb *redis.Client) Notifier {
	if rdb == nil {
		return NewLocalNotifier()
	}
	return NewRedisNotifier(rdb)
}

func buildHandChannel(handID int64) string {
	return fmt.Sprintf("hand:events:%d", handID)
}

func (n *RedisNotifier) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, buildHandChannel(ev.HandID), payload).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, handID int64) (<-chan Event, func()) {
	pubsub := n.rdb.Subscribe(ctx, buildHandChannel(handID))
	// wait for the subscription to be live before handing out the channel
	if _, err := pubsub.Receive(ctx); err != nil {
		logger.Log.Warn("hand event subscribe failed", zap.Int64("handID", handID), zap.Error(err))
	}
	out := make(chan Event, subscriberBuffer)
	done := make(chan struct{})

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Log.Warn("bad hand event payload", zap.Int64("handID", handID), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				default:
					logger.Log.Warn("hand subscriber channel full", zap.Int64("handID", handID))
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				logger.Log.Debug("pubsub close", zap.Error(err))
			}
		})
	}
}
