// Package transcript writes an NDJSON log of state transitions, one file per
// conversation.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/autopodbor/intake-bot/internal/identity"
)

// ErrClosed is returned by Close when the logger was already closed.
var ErrClosed = errors.New("transcript logger closed")

// Entry is one line of a transcript.
type Entry struct {
	Time        time.Time `json:"ts"`
	IdentityKey string    `json:"identity_key"`
	Event       string    `json:"event"`
	From        string    `json:"from"`
	To          string    `json:"to"`
}

// Config configures a Logger.
type Config struct {
	Dir       string
	QueueSize int
}

// Logger appends entries from a single background goroutine. Log never
// blocks; entries are dropped when the queue is full.
type Logger struct {
	dir    string
	queue  chan Entry
	logger *slog.Logger
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewLogger creates the directory and starts the writer.
func NewLogger(cfg Config, logger *slog.Logger) (*Logger, error) {
	if cfg.Dir == "" {
		return nil, errors.New("transcript dir is empty")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	l := &Logger{
		dir:    cfg.Dir,
		queue:  make(chan Entry, cfg.QueueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Path returns the transcript file of one conversation.
func (l *Logger) Path(identityKey string) string {
	return filepath.Join(l.dir, identityKey+".ndjson")
}

// Log queues e. Entries with an invalid identity key are discarded.
func (l *Logger) Log(e Entry) {
	if !identity.IsValidKey(e.IdentityKey) {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- e:
	default:
		l.logger.Warn("transcript queue full, entry dropped", "identity_key", e.IdentityKey)
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for e := range l.queue {
		if err := l.write(e); err != nil {
			l.logger.Warn("failed to write transcript", "identity_key", e.IdentityKey, "error", err)
		}
	}
}

func (l *Logger) write(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(l.Path(e.IdentityKey), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Close flushes queued entries and stops the writer.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return nil
}
