// Command sse_load opens many concurrent subscribers on a dashboard SSE stream
// (/page/stream or /balance/stream) and reports delivered events.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		targetURL    string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
		lastEventID  string
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/page/stream", "SSE endpoint URL")
	flag.IntVar(&connections, "conns", 200, "number of concurrent subscribers")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "spread subscriber starts across this window")
	flag.StringVar(&lastEventID, "last-id", "", "Last-Event-ID sent by every subscriber")
	flag.Parse()

	if connections <= 0 {
		log.Fatalf("invalid conns: %d", connections)
	}
	if rampUp == 0 && connections > 100 {
		rampUp = max(time.Duration(connections/500)*time.Second, time.Second)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	logger.Info("starting SSE load",
		zap.String("url", targetURL),
		zap.Int("conns", connections),
		zap.Duration("duration", testDuration),
		zap.Duration("ramp", rampUp))

	l := &loadRun{client: client, url: targetURL, lastEventID: lastEventID}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s := l.stats.snapshot()
				logger.Info("status",
					zap.Int64("connected", s.connected),
					zap.Int64("connect_errs", s.connectErrs),
					zap.Int64("stream_errs", s.streamErrs),
					zap.Int64("events", s.events),
					zap.Uint64("max_id", s.maxID),
					zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
			}
		}
	})
	g.Go(func() error {
		l.run(gctx, connections, rampUp)
		stop()
		return nil
	})
	_ = g.Wait()

	s := l.stats.snapshot()
	elapsed := max(time.Since(start), time.Millisecond)
	fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d events=%d max_id=%d elapsed=%s events/s=%.2f\n",
		s.connected, s.connectErrs, s.streamErrs, s.events, s.maxID,
		elapsed.Truncate(time.Millisecond), float64(s.events)/elapsed.Seconds())
}
