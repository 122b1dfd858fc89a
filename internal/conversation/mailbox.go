package conversation

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ErrMailboxClosed is returned by Post after Close.
var ErrMailboxClosed = errors.New("mailbox closed")

// ErrMailboxFull is returned by Post when a conversation has too many pending
// events.
var ErrMailboxFull = errors.New("conversation mailbox full")

// Task is a unit of work for one conversation.
type Task func(ctx context.Context)

type lane struct {
	tasks []Task
}

// Mailbox runs tasks for the same key one at a time and in arrival order,
// while different keys progress in parallel. A lane's goroutine exits once
// its queue is empty.
type Mailbox struct {
	maxPending int
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
}

// NewMailbox creates a mailbox holding at most maxPending queued tasks per key.
func NewMailbox(maxPending int, logger *slog.Logger) *Mailbox {
	if maxPending <= 0 {
		maxPending = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Mailbox{
		maxPending: maxPending,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		lanes:      make(map[string]*lane),
	}
}

// Post queues task behind any pending work for key.
func (m *Mailbox) Post(key string, task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMailboxClosed
	}

	l, running := m.lanes[key]
	if !running {
		l = &lane{}
		m.lanes[key] = l
	}
	if len(l.tasks) >= m.maxPending {
		return ErrMailboxFull
	}
	l.tasks = append(l.tasks, task)

	if !running {
		m.wg.Add(1)
		go m.drain(key, l)
	}
	return nil
}

func (m *Mailbox) drain(key string, l *lane) {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		if len(l.tasks) == 0 {
			delete(m.lanes, key)
			m.mu.Unlock()
			return
		}
		task := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		m.mu.Unlock()

		m.run(key, task)
	}
}

func (m *Mailbox) run(key string, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("conversation task panicked",
				"identity_key", key,
				"panic", rec,
				"stack", string(debug.Stack()))
		}
	}()
	task(m.ctx)
}

// Active returns the number of keys with queued or running work.
func (m *Mailbox) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lanes)
}

// Close stops accepting tasks and waits for queued ones. If ctx expires
// first, running tasks see their context cancelled and Close waits for them
// to return.
func (m *Mailbox) Close(ctx context.Context) error {
	active := m.Active()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMailboxClosed
	}
	m.closed = true
	m.mu.Unlock()

	m.logger.Info("conversation mailbox closing", "active", active)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			m.logger.Warn("conversation tasks still running after shutdown timeout")
		}
		return ctx.Err()
	}
}
