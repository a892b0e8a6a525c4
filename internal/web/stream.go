package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/walletdash/internal/domain"
)

const keepFullRecords = 100

func startEventStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, true
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, id uint64, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "id: %d\n", id)
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
	return nil
}

// handlePageStream pushes the full page state on every change, starting with the current one.
func (s *Server) handlePageStream(w http.ResponseWriter, r *http.Request) {
	if s.PageEvents == nil {
		http.Error(w, "page events not available", http.StatusServiceUnavailable)
		return
	}

	ch := s.PageEvents.Subscribe()
	defer s.PageEvents.Unsubscribe(ch)

	flusher, ok := startEventStream(w)
	if !ok {
		return
	}

	current := s.Page.State()
	if err := writeEvent(w, flusher, current.Version, "page", current); err != nil {
		s.logger().Error("page stream initial state", zap.Error(err))
		return
	}
	lastVersion := current.Version

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case state, open := <-ch:
			if !open {
				return
			}
			// states can be published out of order
			if state.Version <= lastVersion {
				continue
			}
			if err := writeEvent(w, flusher, state.Version, "page", state); err != nil {
				s.logger().Error("page stream write", zap.Error(err))
				return
			}
			lastVersion = state.Version
		}
	}
}

// handleBalanceStream replays the snapshot history after Last-Event-ID and then follows new snapshots.
func (s *Server) handleBalanceStream(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "snapshot store not available", http.StatusServiceUnavailable)
		return
	}

	var live chan domain.BalanceSnapshotRecord
	if s.BalanceEvents != nil {
		live = s.BalanceEvents.Subscribe()
		defer s.BalanceEvents.Unsubscribe(live)
	}

	lastIndex := parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_id"))
	backlog, err := s.Store.SnapshotsAfter(lastIndex)
	if err != nil {
		s.logger().Error("balance stream initial load", zap.Error(err))
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		return
	}

	flusher, ok := startEventStream(w)
	if !ok {
		return
	}

	send := func(records []domain.BalanceSnapshotRecord) error {
		for _, record := range records {
			if record.Index <= lastIndex {
				continue
			}
			if err := writeEvent(w, flusher, record.Index, "balance", record.Snapshot); err != nil {
				return err
			}
			lastIndex = record.Index
		}
		return nil
	}

	if err := send(thinRecords(backlog)); err != nil {
		s.logger().Error("balance stream backlog", zap.Error(err))
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	// the poll catches up on records a slow subscriber had dropped
	pollTicker := time.NewTicker(snapshotPollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case record, open := <-live:
			if !open {
				live = nil
				continue
			}
			if record.Index > lastIndex+1 {
				// gap: read the missing ones from the WAL
				missed, err := s.Store.SnapshotsAfter(lastIndex)
				if err != nil {
					s.logger().Warn("balance stream catch up", zap.Error(err))
					continue
				}
				if err := send(missed); err != nil {
					return
				}
				continue
			}
			if err := send([]domain.BalanceSnapshotRecord{record}); err != nil {
				return
			}
		case <-pollTicker.C:
			records, err := s.Store.SnapshotsAfter(lastIndex)
			if err != nil {
				s.logger().Warn("balance stream poll", zap.Error(err))
				continue
			}
			if err := send(records); err != nil {
				return
			}
		}
	}
}

// parseLastEventID extracts an SSE event ID from either the Last-Event-ID header or a query parameter.
// The header is preferred; the query parameter allows manual reconnects to resume from a known index.
func parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// thinRecords keeps the newest records intact and thins older history exponentially.
func thinRecords(records []domain.BalanceSnapshotRecord) []domain.BalanceSnapshotRecord {
	if len(records) <= keepFullRecords {
		return records
	}

	older := records[:len(records)-keepFullRecords]
	var thinned []domain.BalanceSnapshotRecord

	skip := 1
	for i := len(older) - 1; i >= 0; i-- {
		thinned = append([]domain.BalanceSnapshotRecord{older[i]}, thinned...)
		i -= skip
		// double skip every 12 records
		if (len(older)-1-i)%12 == 0 {
			skip *= 2
		}
	}

	return append(thinned, records[len(records)-keepFullRecords:]...)
}
