package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/inovacc/gitsafe/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (r *recorder) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(req.Body).Decode(&body)

		r.mu.Lock()
		r.bodies = append(r.bodies, body)
		r.mu.Unlock()

		w.WriteHeader(status)
		_, _ = io.WriteString(w, "nope")
	}
}

func (r *recorder) all() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]map[string]any(nil), r.bodies...)
}

var fixedTime = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func testRepo() *model.Repository {
	return &model.Repository{ID: "repo1", URL: "https://github.com/example/repo1", Enabled: true}
}

func TestNotifyFailurePayload(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK))
	defer srv.Close()

	n := NewNotifier(WithClock(func() time.Time { return fixedTime }))
	n.NotifyFailure([]string{srv.URL}, testRepo(), OperationSync, model.Ptr("cred-1"), "fetch failed")
	n.Wait()

	bodies := rec.all()
	require.Len(t, bodies, 1)

	got := bodies[0]
	assert.Equal(t, "2024-05-01T12:30:00Z", got["time"])
	assert.Equal(t, "sync", got["operation"])
	assert.Equal(t, "cred-1", got["credential_id"])
	assert.Equal(t, "fetch failed", got["error_message"])
	assert.Equal(t, map[string]any{"id": "repo1", "url": "https://github.com/example/repo1", "enabled": true}, got["repo"])
}

func TestNotifyDisabledPayload(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusNoContent))
	defer srv.Close()

	repo := testRepo()
	repo.Enabled = false

	n := NewNotifier(WithClock(func() time.Time { return fixedTime }))
	n.NotifyDisabled([]string{srv.URL}, repo, nil, "still failing", 3)
	n.Wait()

	bodies := rec.all()
	require.Len(t, bodies, 1)

	got := bodies[0]
	assert.NotContains(t, got, "credential_id")
	assert.NotContains(t, got, "operation")
	assert.Equal(t, float64(3), got["sync_attempts"])
	assert.Equal(t, "still failing", got["error_message"])
	assert.Equal(t, false, got["repo"].(map[string]any)["enabled"])
}

func TestFanOutIsolatesEndpoints(t *testing.T) {
	good := &recorder{}
	goodSrv := httptest.NewServer(good.handler(http.StatusOK))
	defer goodSrv.Close()

	failing := &recorder{}
	failingSrv := httptest.NewServer(failing.handler(http.StatusInternalServerError))
	defer failingSrv.Close()

	release := make(chan struct{})
	slowSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slowSrv.Close()
	defer close(release)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	n := NewNotifier(WithTimeout(200*time.Millisecond), WithLogger(logger))

	start := time.Now()
	n.NotifyFailure([]string{slowSrv.URL, failingSrv.URL, goodSrv.URL}, testRepo(), OperationSync, nil, "boom")
	assert.Less(t, time.Since(start), 100*time.Millisecond, "dispatch does not block")

	n.Wait()

	assert.Len(t, good.all(), 1)
	assert.Len(t, failing.all(), 1)
	assert.Contains(t, logs.String(), "status 500")
	assert.Contains(t, logs.String(), "failed to deliver notification")
}

func TestNoURLsIsNoop(t *testing.T) {
	sender := &countingSender{}
	n := NewNotifier(WithSender(sender))

	n.NotifyFailure(nil, testRepo(), OperationSync, nil, "x")
	n.NotifyDisabled([]string{}, testRepo(), nil, "x", 3)
	n.Wait()

	assert.Zero(t, sender.count())
}

func TestSenderPanicRecovered(t *testing.T) {
	var logs bytes.Buffer

	n := NewNotifier(
		WithSender(panicSender{}),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)

	n.NotifyFailure([]string{"http://unused"}, testRepo(), OperationSync, nil, "x")
	n.Wait()

	assert.Contains(t, logs.String(), "panic in notification sender")
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "gitsafe", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, strings.Repeat("x", 10)+"\n")
	}))
	defer srv.Close()

	err := NewWebhookSender().Send(context.Background(), srv.URL, map[string]string{"a": "b"})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, strings.Repeat("x", 10), statusErr.Body)
}

type countingSender struct {
	mu sync.Mutex
	n  int
}

func (s *countingSender) Send(context.Context, string, any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++

	return nil
}

func (s *countingSender) Name() string { return "counting" }

func (s *countingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.n
}

type panicSender struct{}

func (panicSender) Send(context.Context, string, any) error { panic("boom") }

func (panicSender) Name() string { return "panic" }
