package dwn

import (
	"sync"

	"github.com/cuemby/dwn/pkg/metrics"
	"github.com/cuemby/dwn/pkg/types"
)

// Subscription is the handle Records/Subscribe returns: a channel of every
// record write the subscriber is authorized to see and whose fixed
// fields/tags satisfy the subscribe filter (spec.md §4.4). Record deletes are
// published too but never delivered, since the subscribe match predicate
// accepts only RecordsWrite descriptors. Close releases it.
type Subscription struct {
	Messages <-chan *types.Message

	ch        chan *types.Message
	b         *broker
	tenantDid string
}

// Close unregisters the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.b.unsubscribe(s.tenantDid, s.ch)
}

// broker fans out newly committed records to subscribers, filtered
// per-subscriber by a match predicate — the same map-of-channels-plus-stopCh
// shape as the teacher's events.Broker, adapted to carry a *types.Message
// directly instead of a string-keyed Event (a subscriber's match predicate
// needs the decoded descriptor, not a serialized metadata map).
type broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *types.Message]func(*types.Message) bool
}

func newBroker() *broker {
	return &broker{subscribers: map[string]map[chan *types.Message]func(*types.Message) bool{}}
}

// subscribe registers match against tenantDid's stream, returning a handle
// whose buffered channel receives every future publish for which match
// returns true.
func (b *broker) subscribe(tenantDid string, match func(*types.Message) bool) *Subscription {
	ch := make(chan *types.Message, 64)
	b.mu.Lock()
	if b.subscribers[tenantDid] == nil {
		b.subscribers[tenantDid] = map[chan *types.Message]func(*types.Message) bool{}
	}
	b.subscribers[tenantDid][ch] = match
	b.mu.Unlock()
	metrics.SubscriptionsActive.Inc()
	return &Subscription{Messages: ch, ch: ch, b: b, tenantDid: tenantDid}
}

func (b *broker) unsubscribe(tenantDid string, ch chan *types.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subscribers[tenantDid]
	if !ok {
		return
	}
	if _, ok := subs[ch]; ok {
		delete(subs, ch)
		close(ch)
		metrics.SubscriptionsActive.Dec()
	}
}

// publish fans msg out to every subscriber of tenantDid whose match
// predicate accepts it. A full subscriber channel drops the event rather
// than blocking the writer that triggered it — subscribers that fall behind
// should Records/Query to catch up, the same trade-off the teacher's
// events.Broker makes for a slow consumer.
func (b *broker) publish(tenantDid string, msg *types.Message) {
	metrics.EventsPublishedTotal.Inc()
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, match := range b.subscribers[tenantDid] {
		if match != nil && !match(msg) {
			continue
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

// stopAll closes every live subscription, for Dwn.Close.
func (b *broker) stopAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subscribers {
		for ch := range subs {
			close(ch)
			metrics.SubscriptionsActive.Dec()
		}
	}
	b.subscribers = map[string]map[chan *types.Message]func(*types.Message) bool{}
}
