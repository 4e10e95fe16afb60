package fantasy

import (
	"sync"

	"github.com/flit/fantasy-engine/internal/model"
)

// subscriberBuffer is how many draft updates a slow subscriber may lag
// before updates to it are dropped.
const subscriberBuffer = 16

// Broker fans draft state updates out to per-league subscribers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan model.DraftState]struct{}
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan model.DraftState]struct{})}
}

// Subscribe registers for a league's draft updates. The returned cancel
// closes the channel; calling it more than once is a no-op.
func (b *Broker) Subscribe(leagueID string) (<-chan model.DraftState, func()) {
	ch := make(chan model.DraftState, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if b.subs[leagueID] == nil {
		b.subs[leagueID] = make(map[chan model.DraftState]struct{})
	}
	b.subs[leagueID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[leagueID][ch]; !ok {
				return
			}
			delete(b.subs[leagueID], ch)
			if len(b.subs[leagueID]) == 0 {
				delete(b.subs, leagueID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish sends a copy of the draft state to every subscriber of its
// league. Never blocks: a full subscriber misses the update.
func (b *Broker) Publish(d *model.DraftState) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[d.LeagueID] {
		select {
		case ch <- d.Clone():
		default:
		}
	}
}

// Subscribers returns the number of subscribers for a league.
func (b *Broker) Subscribers(leagueID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[leagueID])
}

// Close closes every subscription. Later Subscribe calls get a closed channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for leagueID, chans := range b.subs {
		for ch := range chans {
			close(ch)
		}
		delete(b.subs, leagueID)
	}
}
