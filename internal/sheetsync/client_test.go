package sheetsync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopodbor/intake-bot/internal/domain"
)

type fakeRecorder struct {
	mu      sync.Mutex
	records []domain.DispatchRecord
}

func (f *fakeRecorder) RecordDispatch(_ context.Context, rec domain.DispatchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRecorder) snapshot() []domain.DispatchRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DispatchRecord(nil), f.records...)
}

type capturedRequest struct {
	body        []byte
	contentType string
	requestID   string
}

func newCapturingServer(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{
			body:        body,
			contentType: r.Header.Get("Content-Type"),
			requestID:   r.Header.Get("X-Request-ID"),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), reqs...)
	}
}

func TestClientPostsUTF8JSON(t *testing.T) {
	t.Parallel()

	srv, captured := newCapturingServer(t, http.StatusOK)
	rec := &fakeRecorder{}
	c := NewClient(Options{Endpoint: srv.URL, Timeout: time.Second, Workers: 2, QueueSize: 8, Recorder: rec})

	c.Dispatch(context.Background(), domain.Payload{
		IdentityKey: "42",
		City:        "Москва",
		ClientName:  "Дмитрий <Иванов>",
	})
	require.NoError(t, c.Close(context.Background()))

	reqs := captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, "application/json; charset=utf-8", reqs[0].contentType)
	assert.NotEmpty(t, reqs[0].requestID)

	raw := string(reqs[0].body)
	assert.Contains(t, raw, `"city":"Москва"`)
	assert.Contains(t, raw, `"client_name":"Дмитрий <Иванов>"`)
	assert.NotContains(t, raw, `\u`)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(reqs[0].body, &decoded))
	assert.Equal(t, "42", decoded["tg_user_id"])

	records := rec.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, domain.DispatchDelivered, records[0].Status)
	assert.Equal(t, http.StatusOK, records[0].HTTPStatus)
	assert.Equal(t, reqs[0].requestID, records[0].ID)
	assert.Equal(t, "42", records[0].IdentityKey)
}

func TestClientSwallowsServerErrors(t *testing.T) {
	t.Parallel()

	srv, captured := newCapturingServer(t, http.StatusInternalServerError)
	rec := &fakeRecorder{}
	c := NewClient(Options{Endpoint: srv.URL, Timeout: time.Second, Workers: 1, QueueSize: 4, Recorder: rec})

	c.Dispatch(context.Background(), domain.Payload{IdentityKey: "1", Phone: "79991234567"})
	require.NoError(t, c.Close(context.Background()))

	assert.Len(t, captured(), 1, "single attempt, no retry")
	records := rec.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, domain.DispatchFailed, records[0].Status)
	assert.Equal(t, http.StatusInternalServerError, records[0].HTTPStatus)
	assert.Contains(t, records[0].Error, "500")
	assert.Equal(t, int64(1), c.Stats()["failed"])
}

func TestClientSwallowsConnectionErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	rec := &fakeRecorder{}
	c := NewClient(Options{Endpoint: endpoint, Timeout: time.Second, Workers: 1, QueueSize: 4, Recorder: rec})
	c.Dispatch(context.Background(), domain.Payload{IdentityKey: "1"})
	require.NoError(t, c.Close(context.Background()))

	records := rec.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, domain.DispatchFailed, records[0].Status)
	assert.Zero(t, records[0].HTTPStatus)
}

func TestClientTimesOutSlowEndpoint(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	rec := &fakeRecorder{}
	c := NewClient(Options{Endpoint: srv.URL, Timeout: 50 * time.Millisecond, Workers: 1, QueueSize: 1, Recorder: rec})
	c.Dispatch(context.Background(), domain.Payload{IdentityKey: "1"})
	require.NoError(t, c.Close(context.Background()))

	records := rec.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, domain.DispatchFailed, records[0].Status)
}

func TestDispatchDoesNotBlockWhenQueueIsFull(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)

	rec := &fakeRecorder{}
	c := NewClient(Options{Endpoint: srv.URL, Timeout: 5 * time.Second, Workers: 1, QueueSize: 1, Recorder: rec})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			c.Dispatch(context.Background(), domain.Payload{IdentityKey: "1", Year: 2000 + i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}

	dropped := c.Stats()["dropped"].(int64)
	assert.Positive(t, dropped)
	close(release)
	require.NoError(t, c.Close(context.Background()))

	var journaled int64
	for _, r := range rec.snapshot() {
		if r.Status == domain.DispatchDropped {
			journaled++
		}
	}
	assert.Equal(t, dropped, journaled)
}

func TestDispatchIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	srv, captured := newCapturingServer(t, http.StatusOK)
	c := NewClient(Options{Endpoint: srv.URL, Timeout: time.Second, Workers: 1, QueueSize: 4})

	ctx, cancel := context.WithCancel(context.Background())
	c.Dispatch(ctx, domain.Payload{IdentityKey: "1"})
	cancel()
	require.NoError(t, c.Close(context.Background()))

	assert.Len(t, captured(), 1)
}

func TestCloseTwice(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	c := NewClient(Options{Endpoint: "http://127.0.0.1:0", Recorder: rec})
	require.NoError(t, c.Close(context.Background()))
	assert.ErrorIs(t, c.Close(context.Background()), ErrClosed)

	c.Dispatch(context.Background(), domain.Payload{IdentityKey: "1", Phone: "79991234567"})
	assert.Equal(t, int64(1), c.Stats()["dropped"])

	records := rec.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, domain.DispatchDropped, records[0].Status)
	assert.Equal(t, "client closed", records[0].Error)
	assert.Equal(t, "79991234567", records[0].Phone)
}

func TestEncodeKeepsNonASCII(t *testing.T) {
	t.Parallel()

	body, err := Encode(domain.Payload{City: "Санкт-Петербург", Brand: "Geely & Co"})
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "Санкт-Петербург"))
	assert.True(t, strings.Contains(string(body), "Geely & Co"))
}
