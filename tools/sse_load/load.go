package main

import (
	"bufio"
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type stats struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	events      atomic.Int64
	maxID       atomic.Uint64
}

type statsSnapshot struct {
	connected, connectErrs, streamErrs, events int64
	maxID                                      uint64
}

func (s *stats) snapshot() statsSnapshot {
	return statsSnapshot{
		connected:   s.connected.Load(),
		connectErrs: s.connectErrs.Load(),
		streamErrs:  s.streamErrs.Load(),
		events:      s.events.Load(),
		maxID:       s.maxID.Load(),
	}
}

func (s *stats) observeID(id uint64) {
	for {
		cur := s.maxID.Load()
		if id <= cur || s.maxID.CompareAndSwap(cur, id) {
			return
		}
	}
}

type loadRun struct {
	client      *http.Client
	url         string
	lastEventID string
	stats       stats
}

// run starts conns subscribers spread over rampUp and blocks until all of them end.
func (l *loadRun) run(ctx context.Context, conns int, rampUp time.Duration) {
	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(conns)
	}

	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.subscribe(ctx)
		}()
	}
	wg.Wait()
}

func (l *loadRun) subscribe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		l.stats.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	if l.lastEventID != "" {
		req.Header.Set("Last-Event-ID", l.lastEventID)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		l.stats.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		l.stats.connectErrs.Add(1)
		return
	}
	l.stats.connected.Add(1)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		l.observeLine(scanner.Text())
	}
	if ctx.Err() == nil {
		l.stats.streamErrs.Add(1)
	}
}

// observeLine counts one event per id line; heartbeats and blanks are ignored.
func (l *loadRun) observeLine(line string) {
	id, ok := strings.CutPrefix(line, "id: ")
	if !ok {
		return
	}
	l.stats.events.Add(1)
	if n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64); err == nil {
		l.stats.observeID(n)
	}
}
