package sheetsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/autopodbor/intake-bot/internal/domain"
)

const tracerName = "github.com/autopodbor/intake-bot/internal/sheetsync"

// ErrClosed is returned by Close when the client was already closed.
var ErrClosed = errors.New("sheet sync client closed")

// Recorder persists the outcome of each delivery attempt.
type Recorder interface {
	RecordDispatch(ctx context.Context, rec domain.DispatchRecord) error
}

// Options configures a Client.
type Options struct {
	Endpoint   string
	Timeout    time.Duration
	Workers    int
	QueueSize  int
	HTTPClient *http.Client
	Recorder   Recorder
	Logger     *slog.Logger
}

type job struct {
	id      string
	ctx     context.Context
	payload domain.Payload
}

// Client posts payloads to the spreadsheet endpoint from a fixed pool of
// workers. Each payload gets a single attempt; failures are logged and
// forgotten.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	recorder   Recorder
	logger     *slog.Logger
	tracer     trace.Tracer

	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	drops  sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewClient starts the worker pool.
func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		endpoint:   opts.Endpoint,
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
		tracer:     otel.Tracer(tracerName),
		jobs:       make(chan job, opts.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < opts.Workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}

	c.logger.Info("sheet sync client started",
		"workers", opts.Workers,
		"queue_size", opts.QueueSize,
		"timeout", opts.Timeout,
	)
	return c
}

// Dispatch queues p for delivery and returns immediately. The caller's
// cancellation does not reach the request, only its values do. When the
// queue is full the payload is dropped.
func (c *Client) Dispatch(ctx context.Context, p domain.Payload) {
	j := job{
		id:      uuid.NewString(),
		ctx:     context.WithoutCancel(ctx),
		payload: p,
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.dropped.Add(1)
		c.logger.WarnContext(ctx, "sheet sync dropped, client closed", "sync_id", j.id)
		// Close no longer waits for drops, so this one is journaled inline.
		c.journalDrop(j, "client closed")
		return
	}

	select {
	case c.jobs <- j:
		c.logger.DebugContext(ctx, "sheet sync queued",
			"sync_id", j.id,
			"queue_len", len(c.jobs),
		)
	default:
		c.dropped.Add(1)
		c.logger.WarnContext(ctx, "sheet sync queue full, payload dropped",
			"sync_id", j.id,
			"queue_len", len(c.jobs),
		)
		c.recordDrop(j, "queue full")
	}
}

// recordDrop journals a dropped payload without holding up the caller.
// It must be called with c.mu held for reading while the client is open.
func (c *Client) recordDrop(j job, reason string) {
	if c.recorder == nil {
		return
	}
	c.drops.Add(1)
	go func() {
		defer c.drops.Done()
		c.journalDrop(j, reason)
	}()
}

func (c *Client) journalDrop(j job, reason string) {
	if c.recorder == nil {
		return
	}
	body, _ := Encode(j.payload)
	rec := domain.DispatchRecord{
		ID:          j.id,
		IdentityKey: j.payload.IdentityKey,
		Phone:       j.payload.Phone,
		PayloadJSON: strings.TrimSpace(string(body)),
		Status:      domain.DispatchDropped,
		Error:       reason,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.recorder.RecordDispatch(j.ctx, rec); err != nil {
		c.logger.WarnContext(j.ctx, "failed to journal dropped sheet sync", "sync_id", j.id, "error", err)
	}
}

func (c *Client) worker() {
	defer c.wg.Done()
	for j := range c.jobs {
		c.deliver(j)
	}
}

func (c *Client) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, c.timeout)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	ctx, span := c.tracer.Start(ctx, "sheetsync.dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("sync.id", j.id)),
	)
	defer span.End()

	start := time.Now()
	body, status, err := c.post(ctx, j)
	elapsed := time.Since(start)

	rec := domain.DispatchRecord{
		ID:          j.id,
		IdentityKey: j.payload.IdentityKey,
		Phone:       j.payload.Phone,
		PayloadJSON: strings.TrimSpace(string(body)),
		Status:      domain.DispatchDelivered,
		HTTPStatus:  status,
		Duration:    elapsed,
		CreatedAt:   start.UTC(),
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	if err != nil {
		c.failed.Add(1)
		rec.Status = domain.DispatchFailed
		rec.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WarnContext(ctx, "sheet sync failed",
			"sync_id", j.id,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
	} else {
		c.delivered.Add(1)
		c.logger.InfoContext(ctx, "sheet sync delivered",
			"sync_id", j.id,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	if c.recorder != nil {
		if err := c.recorder.RecordDispatch(context.WithoutCancel(ctx), rec); err != nil {
			c.logger.WarnContext(ctx, "failed to journal sheet sync", "sync_id", j.id, "error", err)
		}
	}
}

// post sends one attempt and returns the encoded body along with the
// response status.
func (c *Client) post(ctx context.Context, j job) ([]byte, int, error) {
	body, err := Encode(j.payload)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return body, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-Request-ID", j.id)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return body, 0, fmt.Errorf("post payload: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}

// Encode serializes the flat field mapping of p. Non-ASCII text is written
// as UTF-8 and HTML characters are left unescaped.
func Encode(p domain.Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p.Fields()); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return buf.Bytes(), nil
}

// Stats reports delivery counters and queue depth.
func (c *Client) Stats() map[string]any {
	return map[string]any{
		"delivered":      c.delivered.Load(),
		"failed":         c.failed.Load(),
		"dropped":        c.dropped.Load(),
		"queue_len":      len(c.jobs),
		"queue_capacity": cap(c.jobs),
	}
}

// Close stops accepting payloads and waits for queued ones to be delivered.
// When ctx expires first, in-flight requests are cancelled.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	remaining := len(c.jobs)
	close(c.jobs)
	c.mu.Unlock()

	c.logger.Info("sheet sync client closing", "queue_remaining", remaining)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		c.drops.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		c.logger.Info("sheet sync client stopped")
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		c.logger.Warn("sheet sync client shutdown timeout, in-flight payloads cancelled")
		return ctx.Err()
	}
}
