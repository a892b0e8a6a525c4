package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRun_CountsEvents(t *testing.T) {
	var gotLastID atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLastID.Store(r.Header.Get("Last-Event-ID"))
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 5; i <= 7; i++ {
			fmt.Fprintf(w, ": ping\n\nid: %d\nevent: balance\ndata: {}\n\n", i)
		}
	}))
	defer srv.Close()

	l := &loadRun{client: srv.Client(), url: srv.URL, lastEventID: "4"}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l.run(ctx, 3, 0)

	s := l.stats.snapshot()
	assert.Equal(t, "4", gotLastID.Load())
	assert.Equal(t, int64(3), s.connected)
	assert.Equal(t, int64(9), s.events)
	assert.Equal(t, uint64(7), s.maxID)
	assert.Equal(t, int64(3), s.streamErrs, "server closed every stream before the deadline")
}

func TestLoadRun_ConnectErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	l := &loadRun{client: srv.Client(), url: srv.URL}
	l.run(context.Background(), 2, 0)

	s := l.stats.snapshot()
	require.Equal(t, int64(2), s.connectErrs)
	assert.Zero(t, s.connected)
}

func TestObserveLine(t *testing.T) {
	l := &loadRun{}
	for _, line := range []string{": ping", "", "event: page", "data: {}", "id: 12", "id: 3", "id: x"} {
		l.observeLine(line)
	}
	s := l.stats.snapshot()
	assert.Equal(t, int64(3), s.events)
	assert.Equal(t, uint64(12), s.maxID)
}
