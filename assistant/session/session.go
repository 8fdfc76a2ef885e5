package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	contractx "github.com/campora/assistant/assistant/contract"
	enginex "github.com/campora/assistant/assistant/engine"
)

// DefaultHistoryLimit bounds the sliding window forwarded to generation:
// the five most recent exchanges.
const DefaultHistoryLimit = 10

// Session is one widget-lifetime conversation. The identity is resolved once
// before construction and never changes; history is conversational context
// only. Not persisted: closing the widget discards it.
type Session struct {
	mu       sync.Mutex
	identity *contractx.ResolvedIdentity
	engine   enginex.Exchanger
	history  []contractx.Message
	pending  bool
	limit    int
	now      func() time.Time
}

type Option func(*Session)

func WithHistoryLimit(limit int) Option {
	return func(s *Session) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func New(identity *contractx.ResolvedIdentity, exch enginex.Exchanger, opts ...Option) (*Session, error) {
	if identity == nil {
		return nil, errors.New("resolved identity is required")
	}
	if exch == nil {
		return nil, errors.New("exchanger is required")
	}

	s := &Session{
		identity: identity,
		engine:   exch,
		limit:    DefaultHistoryLimit,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Send runs one exchange. At most one exchange is in flight: a send while
// another is pending is rejected immediately, not queued, and leaves history
// untouched. Every completed exchange, failed or not, releases the session
// for the next message.
func (s *Session) Send(ctx context.Context, utterance string) (contractx.Message, error) {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return contractx.Message{}, fmt.Errorf("%w: an exchange is already in flight", contractx.ErrSessionBusy)
	}
	s.pending = true

	// History handed to the engine is the window before this turn. The
	// utterance travels in ExchangeInput and the engine appends it to the
	// history it forwards to generation, so it is never sent twice.
	window := s.snapshotLocked()
	s.append(contractx.Message{Sender: contractx.SenderUser, Text: utterance, At: s.now()})
	s.mu.Unlock()

	res, err := s.engine.Handle(ctx, enginex.ExchangeInput{
		Identity:  s.identity,
		Utterance: utterance,
		History:   window,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false

	if err != nil {
		return contractx.Message{}, err
	}

	bot := contractx.Message{Sender: contractx.SenderBot, Text: res.Reply, At: s.now()}
	s.append(bot)
	return bot, nil
}

// Pending reports whether an exchange is in flight.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) Identity() *contractx.ResolvedIdentity {
	return s.identity
}

// History returns a copy of the current window.
func (s *Session) History() []contractx.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() []contractx.Message {
	out := make([]contractx.Message, len(s.history))
	copy(out, s.history)
	return out
}

// append adds a message and trims the window to the most recent limit.
// Callers hold the mutex.
func (s *Session) append(msg contractx.Message) {
	s.history = append(s.history, msg)
	if len(s.history) > s.limit {
		s.history = s.history[len(s.history)-s.limit:]
	}
}
