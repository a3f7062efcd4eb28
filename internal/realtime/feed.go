package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/onquest-api/internal/observability"
)

// MessagesTopic is notified whenever a message of the conversation changes.
func MessagesTopic(chatID string) string {
	return fmt.Sprintf("chat:%s:messages", chatID)
}

// MembersTopic is notified whenever the member mirror of the conversation changes.
func MembersTopic(chatID string) string {
	return fmt.Sprintf("chat:%s:members", chatID)
}

// ChatsTopic is notified whenever a conversation in the user's index changes.
func ChatsTopic(uid string) string {
	return fmt.Sprintf("user:%s:chats", uid)
}

type changeEvent struct {
	Source string    `json:"source"`
	Topics []string  `json:"topics"`
	SentAt time.Time `json:"sent_at"`
}

// Feed fans change notifications out to local watchers and, when configured,
// to other nodes over Redis pub/sub and NATS.
type Feed struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger

	mu       sync.RWMutex
	watchers map[string]map[uint64]chan struct{}
	nextID   uint64
}

// NewFeed builds a feed. Both transports are optional; an empty channel base
// keeps the feed node-local.
func NewFeed(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *Feed {
	feed := &Feed{
		redis:    redisClient,
		nats:     natsConn,
		nodeID:   uuid.NewString(),
		logger:   logger.With().Str("component", "realtime_feed").Logger(),
		watchers: make(map[string]map[uint64]chan struct{}),
	}
	if channelBase != "" {
		feed.redisChannel = channelBase + ":changes"
		feed.natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".changes"
	}
	return feed
}

// NodeID identifies this process in cross-node events.
func (f *Feed) NodeID() string {
	return f.nodeID
}

// Start consumes remote change events until ctx is done.
func (f *Feed) Start(ctx context.Context) {
	if f.redis != nil && f.redisChannel != "" {
		go f.consumeRedis(ctx)
	}
	if f.nats != nil && f.natsSubject != "" {
		go f.consumeNATS(ctx)
	}
}

// Publish notifies the watchers of every topic. Remote delivery failures are
// logged only; local watchers are always notified.
func (f *Feed) Publish(ctx context.Context, topics ...string) {
	if len(topics) == 0 {
		return
	}
	f.notify(topics)

	if (f.redis == nil || f.redisChannel == "") && (f.nats == nil || f.natsSubject == "") {
		return
	}

	payload, err := json.Marshal(changeEvent{Source: f.nodeID, Topics: topics, SentAt: time.Now().UTC()})
	if err != nil {
		f.logger.Warn().Err(err).Msg("failed to encode change event")
		return
	}

	if f.redis != nil && f.redisChannel != "" {
		if err := f.redis.Publish(ctx, f.redisChannel, payload).Err(); err != nil {
			f.logger.Warn().Err(err).Msg("failed to publish change event to redis")
		}
	}
	if f.nats != nil && f.natsSubject != "" {
		if err := f.nats.Publish(f.natsSubject, payload); err != nil {
			f.logger.Warn().Err(err).Msg("failed to publish change event to nats")
		}
	}
}

func (f *Feed) watch(topic string) (<-chan struct{}, func()) {
	signal := make(chan struct{}, 1)

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	if _, ok := f.watchers[topic]; !ok {
		f.watchers[topic] = make(map[uint64]chan struct{})
	}
	f.watchers[topic][id] = signal
	f.mu.Unlock()
	observability.RealtimeSubscriptions().Inc()

	var once sync.Once
	return signal, func() {
		once.Do(func() {
			f.mu.Lock()
			if watchers, ok := f.watchers[topic]; ok {
				delete(watchers, id)
				if len(watchers) == 0 {
					delete(f.watchers, topic)
				}
			}
			f.mu.Unlock()
			observability.RealtimeSubscriptions().Dec()
		})
	}
}

// notify marks each watcher dirty. A watcher that has not consumed its last
// signal keeps a single pending one, so bursts coalesce.
func (f *Feed) notify(topics []string) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, topic := range topics {
		for _, signal := range f.watchers[topic] {
			select {
			case signal <- struct{}{}:
			default:
			}
		}
	}
}

func (f *Feed) consumeRedis(ctx context.Context) {
	pubsub := f.redis.Subscribe(ctx, f.redisChannel)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			f.logger.Error().Err(err).Msg("realtime redis subscription closed")
			return
		}
		f.handleEvent([]byte(msg.Payload))
	}
}

func (f *Feed) consumeNATS(ctx context.Context) {
	sub, err := f.nats.Subscribe(f.natsSubject, func(msg *nats.Msg) {
		f.handleEvent(msg.Data)
	})
	if err != nil {
		f.logger.Error().Err(err).Msg("failed to subscribe to nats change subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			f.logger.Warn().Err(err).Msg("failed to drain change nats subscription")
		}
	}()
}

func (f *Feed) handleEvent(data []byte) {
	var event changeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		f.logger.Warn().Err(err).Msg("invalid change event")
		return
	}
	if event.Source == f.nodeID {
		return
	}
	f.notify(event.Topics)
}
