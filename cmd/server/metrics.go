package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"overmind.cash/internal/protocol"
	"overmind.cash/internal/transport/ws"
)

// countingHandler tallies outcomes for /metrics.
type countingHandler struct {
	next ws.Handler

	accepted atomic.Uint64
	rejected atomic.Uint64

	mu       sync.Mutex
	byStatus map[string]uint64
}

func newCountingHandler(next ws.Handler) *countingHandler {
	return &countingHandler{next: next, byStatus: map[string]uint64{}}
}

func (c *countingHandler) Handle(ctx context.Context, msgType, eventID string, raw []byte) protocol.OutcomeMsg {
	out := c.next.Handle(ctx, msgType, eventID, raw)
	if out.Accepted {
		c.accepted.Add(1)
	} else {
		c.rejected.Add(1)
	}
	c.mu.Lock()
	for _, r := range out.Results {
		c.byStatus[r.Status]++
	}
	c.mu.Unlock()
	return out
}

func (c *countingHandler) statuses() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.byStatus))
	for k, v := range c.byStatus {
		out[k] = v
	}
	return out
}

type droppedCounter interface{ Dropped() uint64 }

func writeMetrics(rw http.ResponseWriter, c *countingHandler, db droppedCounter) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP overmind_events_total Events handled, by outcome.\n")
	fmt.Fprintf(rw, "# TYPE overmind_events_total counter\n")
	fmt.Fprintf(rw, "overmind_events_total{accepted=%q} %d\n", "true", c.accepted.Load())
	fmt.Fprintf(rw, "overmind_events_total{accepted=%q} %d\n", "false", c.rejected.Load())

	st := c.statuses()
	fmt.Fprintf(rw, "# HELP overmind_results_total Action results, by status.\n")
	fmt.Fprintf(rw, "# TYPE overmind_results_total counter\n")
	for _, s := range []string{protocol.StatusOK, protocol.StatusSkipped, protocol.StatusDenied, protocol.StatusError} {
		fmt.Fprintf(rw, "overmind_results_total{status=%q} %d\n", s, st[s])
	}

	if db != nil {
		fmt.Fprintf(rw, "# HELP overmind_audit_dropped_total Transfer audit rows dropped by the sqlite writer.\n")
		fmt.Fprintf(rw, "# TYPE overmind_audit_dropped_total counter\n")
		fmt.Fprintf(rw, "overmind_audit_dropped_total %d\n", db.Dropped())
	}
}
