// Package notify delivers change notifications from the carrier store to
// registered observers. Consumers subscribe to a channel instead of polling
// the store.
package notify

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/superfly/carrierconf/safeguards"
)

// Channel names a notification stream.
type Channel string

const (
	// Carriers fires on every change to the carrier table.
	Carriers Channel = "content://telephony/carriers"

	// CarriersDM fires on changes to the device-management carrier table.
	CarriersDM Channel = "content://telephony/carriers_dm"

	// SimInfo fires on changes to the subscription table.
	SimInfo Channel = "content://telephony/siminfo"
)

// Change describes one committed mutation.
type Change struct {
	ID       ulid.ULID
	Channel  Channel
	Resource string
	Op       string
	Count    int64
	At       time.Time
}

// Observer receives changes. OnChange runs on the mutating caller's
// goroutine after the mutation has committed.
type Observer interface {
	OnChange(Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Change)

// OnChange calls f(c).
func (f ObserverFunc) OnChange(c Change) { f(c) }

// Hub is the observer registry.
type Hub struct {
	mu        sync.RWMutex
	observers map[Channel]map[uint64]Observer
	next      uint64
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewHub creates an empty hub.
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		observers: make(map[Channel]map[uint64]Observer),
		logger:    logger.WithField("component", "notify"),
		now:       time.Now,
	}
}

// Register adds o to ch and returns a function that removes it again.
func (h *Hub) Register(ch Channel, o Observer) (unregister func()) {
	h.mu.Lock()
	h.next++
	id := h.next
	if h.observers[ch] == nil {
		h.observers[ch] = make(map[uint64]Observer)
	}
	h.observers[ch][id] = o
	count := len(h.observers[ch])
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{"channel": ch, "observers": count}).Debug("observer registered")

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.observers[ch], id)
			h.mu.Unlock()
		})
	}
}

// Subscribe returns a buffered stream of changes on ch. When the buffer is
// full new changes are dropped for that subscriber and logged.
func (h *Hub) Subscribe(ch Channel, buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	out := make(chan Change, buffer)
	var mu sync.Mutex
	closed := false
	unregister := h.Register(ch, ObserverFunc(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- c:
		default:
			h.logger.WithFields(logrus.Fields{"channel": ch, "change_id": c.ID}).Warn("subscriber buffer full, change dropped")
		}
	}))
	return out, func() {
		unregister()
		mu.Lock()
		if !closed {
			closed = true
			close(out)
		}
		mu.Unlock()
	}
}

// Observers returns the number of observers on ch.
func (h *Hub) Observers(ch Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers[ch])
}

// Notify stamps c with an id, channel and time and delivers it to every
// observer of ch. A panicking observer is logged and skipped.
func (h *Hub) Notify(ch Channel, c Change) Change {
	c.ID = ulid.Make()
	c.Channel = ch
	c.At = h.now()

	h.mu.RLock()
	targets := make([]Observer, 0, len(h.observers[ch]))
	for _, o := range h.observers[ch] {
		targets = append(targets, o)
	}
	h.mu.RUnlock()

	h.logger.WithFields(logrus.Fields{
		"channel":   ch,
		"change_id": c.ID.String(),
		"op":        c.Op,
		"count":     c.Count,
		"observers": len(targets),
	}).Debug("dispatching change")

	for _, o := range targets {
		_ = safeguards.RecoverableOperation(h.logger, "notify "+string(ch), func() error {
			o.OnChange(c)
			return nil
		})
	}
	return c
}
