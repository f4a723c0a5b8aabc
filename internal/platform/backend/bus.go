package backend

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventBus fans auth-state changes out to the listeners of a session id.
type EventBus interface {
	Publish(ctx context.Context, sid string, change StateChange) error
	Subscribe(sid string, fn func(StateChange)) (unsubscribe func())
}

// LocalBus delivers events in-process, on the publishing goroutine.
type LocalBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]func(StateChange)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string]map[int]func(StateChange))}
}

func (b *LocalBus) Publish(_ context.Context, sid string, change StateChange) error {
	b.deliver(sid, change)
	return nil
}

func (b *LocalBus) deliver(sid string, change StateChange) {
	b.mu.RLock()
	fns := make([]func(StateChange), 0, len(b.handlers[sid]))
	for _, fn := range b.handlers[sid] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	// Handlers run without the lock so they may unsubscribe themselves.
	for _, fn := range fns {
		fn(change)
	}
}

func (b *LocalBus) Subscribe(sid string, fn func(StateChange)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.handlers[sid] == nil {
		b.handlers[sid] = make(map[int]func(StateChange))
	}
	b.handlers[sid][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[sid], id)
			if len(b.handlers[sid]) == 0 {
				delete(b.handlers, sid)
			}
		})
	}
}

// Listeners returns the number of handlers registered for sid.
func (b *LocalBus) Listeners(sid string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[sid])
}

const authChannelPrefix = "portal:auth:"

func authChannel(sid string) string {
	return authChannelPrefix + sid
}

// RedisBus delivers events locally and relays them over Redis pub/sub so a
// sign-out handled by one replica reaches listeners held by another.
type RedisBus struct {
	*LocalBus
	client redis.UniversalClient
	origin string
	logger zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedisBus(client redis.UniversalClient, logger zerolog.Logger) *RedisBus {
	return &RedisBus{
		LocalBus: NewLocalBus(),
		client:   client,
		origin:   uuid.NewString(),
		logger:   logger.With().Str("component", "auth_bus").Logger(),
	}
}

func (b *RedisBus) Publish(ctx context.Context, sid string, change StateChange) error {
	b.deliver(sid, change)

	change.Origin = b.origin
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, authChannel(sid), data).Err()
}

// Start subscribes to every session channel and relays remote events until
// Close is called.
func (b *RedisBus) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)
	pubsub := b.client.PSubscribe(ctx, authChannelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		b.cancel()
		b.cancel = nil
		return err
	}

	b.done = make(chan struct{})
	go func() {
		defer close(b.done)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.relay(msg)
			}
		}
	}()
	return nil
}

func (b *RedisBus) relay(msg *redis.Message) {
	var change StateChange
	if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
		b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed auth event")
		return
	}
	if change.Origin == b.origin {
		return
	}
	sid := strings.TrimPrefix(msg.Channel, authChannelPrefix)
	change.Origin = ""
	b.deliver(sid, change)
}

func (b *RedisBus) Close() {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
}
