// Package memory records the conversation between users and the assistant.
package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one appended message of a conversation.
type ChatTurn struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Appender persists chat turns.
type Appender interface {
	AppendChatTurn(ctx context.Context, turn ChatTurn) error
}

const (
	defaultSaveTimeout = 3 * time.Second
	defaultQueueSize   = 256
)

// Sink records turns on a best-effort basis. Save only enqueues; a single
// worker writes turns in order. Persistence failures and overflow are logged
// and never reach the caller.
type Sink struct {
	store   Appender
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan pendingTurn
	done   chan struct{}
}

type pendingTurn struct {
	ctx  context.Context
	turn ChatTurn
}

// SinkOption customizes a Sink.
type SinkOption func(*Sink)

// WithQueueSize sets how many turns may wait for the worker.
func WithQueueSize(n int) SinkOption {
	return func(s *Sink) {
		if n > 0 {
			s.queue = make(chan pendingTurn, n)
		}
	}
}

// WithSaveTimeout bounds a single write.
func WithSaveTimeout(d time.Duration) SinkOption {
	return func(s *Sink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewSink creates a sink and starts its worker. A nil store makes Save a
// no-op.
func NewSink(store Appender, logger *zap.Logger, opts ...SinkOption) *Sink {
	s := &Sink{
		store:   store,
		logger:  logger,
		timeout: defaultSaveTimeout,
		now:     time.Now,
		queue:   make(chan pendingTurn, defaultQueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if store == nil {
		close(s.done)
		return s
	}
	go s.run()
	return s
}

// Save enqueues one turn. The write outlives the caller's context so a
// client disconnect does not drop it.
func (s *Sink) Save(ctx context.Context, userID, role, content string) {
	if s == nil || s.store == nil {
		return
	}
	turn := ChatTurn{UserID: userID, Role: role, Content: content, Timestamp: s.now().UTC()}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("chat turn dropped, sink closed", zap.String("user", userID), zap.String("role", role))
		return
	}
	select {
	case s.queue <- pendingTurn{ctx: context.WithoutCancel(ctx), turn: turn}:
	default:
		s.logger.Warn("chat turn dropped, queue full", zap.String("user", userID), zap.String("role", role))
	}
}

// Close stops accepting turns and waits for queued ones to be written.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		if s.store != nil {
			close(s.queue)
		}
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)
	for p := range s.queue {
		s.write(p.ctx, p.turn)
	}
}

func (s *Sink) write(ctx context.Context, turn ChatTurn) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.AppendChatTurn(ctx, turn); err != nil {
		s.logger.Warn("save chat turn failed",
			zap.String("user", turn.UserID), zap.String("role", turn.Role), zap.Error(err))
	}
}
