// Package broadcast fans committed game updates out to push subscribers.
package broadcast

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	EventConnected       = "connected"
	EventGameStateUpdate = "gameStateUpdate"
	EventError           = "error"
)

// DefaultMaxBacklog bounds how far a single subscriber may fall behind before
// it is disconnected.
const DefaultMaxBacklog = 1024

type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub keeps one subscriber set per game. Publish never blocks: each
// subscriber owns an unbounded FIFO drained by its own goroutine.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}

	maxBacklog int
	now        func() time.Time
	log        *zap.Logger
}

type Option func(*Hub)

func WithMaxBacklog(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxBacklog = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func NewHub(logger *zap.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		subs:       make(map[string]map[*Subscriber]struct{}),
		maxBacklog: DefaultMaxBacklog,
		now:        time.Now,
		log:        logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new subscriber for gameID. A connected event and then
// initial are queued ahead of anything published afterwards.
func (h *Hub) Subscribe(gameID string, initial ...Event) *Subscriber {
	s := &Subscriber{
		hub:    h,
		gameID: gameID,
		out:    make(chan Event),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.enqueue(h.stamp(Event{Type: EventConnected, Data: map[string]string{"gameId": gameID}}), 0)
	for _, ev := range initial {
		s.enqueue(h.stamp(ev), 0)
	}

	h.mu.Lock()
	set, ok := h.subs[gameID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[gameID] = set
	}
	set[s] = struct{}{}
	n := len(set)
	h.mu.Unlock()

	go s.drain()
	h.log.Debug("[Hub] subscriber added", zap.String("game", gameID), zap.Int("subscribers", n))
	return s
}

// Publish queues ev for every current subscriber of gameID. Callers that need
// a global order publish while holding the game's lock.
func (h *Hub) Publish(gameID string, ev Event) {
	ev = h.stamp(ev)

	h.mu.RLock()
	set := h.subs[gameID]
	targets := make([]*Subscriber, 0, len(set))
	for s := range set {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if !s.enqueue(ev, h.maxBacklog) {
			h.log.Warn("[Hub] subscriber backlog exceeded, dropping",
				zap.String("game", gameID), zap.Int("max_backlog", h.maxBacklog))
			h.remove(s)
		}
	}
}

// Subscribers reports how many subscribers gameID currently has.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[gameID])
}

// CloseGame disconnects every subscriber of gameID, e.g. when the game is
// evicted from the lobby.
func (h *Hub) CloseGame(gameID string) {
	h.mu.Lock()
	set := h.subs[gameID]
	delete(h.subs, gameID)
	h.mu.Unlock()
	for s := range set {
		s.finish()
	}
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[s.gameID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.gameID)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) stamp(ev Event) Event {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = h.now().UTC()
	}
	return ev
}

// Subscriber receives a game's events in publish order from C. The channel is
// closed after Close, or after the subscriber was dropped for falling behind.
type Subscriber struct {
	hub    *Hub
	gameID string

	mu      sync.Mutex
	queue   []Event
	closing bool

	out       chan Event
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Subscriber) C() <-chan Event { return s.out }

func (s *Subscriber) GameID() string { return s.gameID }

// Close unregisters the subscriber and stops delivery. Safe to call twice.
func (s *Subscriber) Close() {
	s.hub.remove(s)
	s.closeOnce.Do(func() { close(s.done) })
}

// enqueue appends ev. With limit > 0 a full backlog is replaced by a final
// error event and enqueue reports false.
func (s *Subscriber) enqueue(ev Event, limit int) bool {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return true
	}
	if limit > 0 && len(s.queue) >= limit {
		s.queue = append(s.queue[:0], Event{
			Type:      EventError,
			Data:      map[string]string{"error": "subscriber too slow, disconnected"},
			Timestamp: ev.Timestamp,
		})
		s.closing = true
		s.mu.Unlock()
		s.signal()
		return false
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.signal()
	return true
}

// finish lets the subscriber flush what is queued and then close C.
func (s *Subscriber) finish() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.signal()
}

func (s *Subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscriber) drain() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
