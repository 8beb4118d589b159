// ABOUTME: In-memory fan-out of shaped turn envelopes to a user's other sessions
// ABOUTME: Best-effort pub/sub replacing the original socket room emit

package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Broadcaster provides in-memory pub/sub of shaped turn envelopes keyed by
// user ID, so a user's other live sessions see new AI turns without
// polling. It implements Notifier; delivery is intentionally lossy.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *TurnEnvelope // userID -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan *TurnEnvelope),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a session for the user's envelope feed. Returns the
// receive channel and a subscription ID. The subscription cleans itself up
// when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, userID string) (<-chan *TurnEnvelope, string) {
	subID := uuid.New().String()
	ch := make(chan *TurnEnvelope, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[userID]; !ok {
		b.subscribers[userID] = make(map[string]chan *TurnEnvelope)
	}
	b.subscribers[userID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("session subscribed", "user_id", userID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(userID, subID)
	}()

	return ch, subID
}

// Publish sends an envelope to all of the user's subscribed sessions.
// Non-blocking: envelopes are dropped for sessions whose channels are full.
func (b *Broadcaster) Publish(userID string, env *TurnEnvelope) {
	b.mu.RLock()
	subs, ok := b.subscribers[userID]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy channels under the read lock to avoid holding it during sends
	targets := make([]chan *TurnEnvelope, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- env:
		default:
			b.logger.Debug("dropped envelope for slow session", "user_id", userID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(userID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[userID]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, userID)
	}

	b.logger.Debug("session unsubscribed", "user_id", userID, "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for userID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, userID)
	}

	b.logger.Debug("broadcaster closed")
}

// Ensure Broadcaster implements Notifier
var _ Notifier = (*Broadcaster)(nil)
