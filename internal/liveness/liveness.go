// Package liveness implements the manager's failure detector: three
// disjoint storage sets (live, dead, pending), a per-storage failed_count
// counter, and the pinger-loop / pong-listener / death-declaration state
// machine described in spec.md §4.4. Modeled on the teacher's HealthMonitor
// (internal/coordinator/health_monitor.go) — same one-mutex-guards-everything
// shape, same consecutive-failure counting — generalized from HTTP health
// checks to broker ping/pong and from a single status field to the
// live/dead/pending set model the manager's recovery protocol depends on.
package liveness

import (
	"sync"
	"time"
)

// State tracks every storage's liveness classification. All reads and
// mutations go through its mutex, matching spec.md §4.4's "single mutex
// guards all liveness state" rule.
type State struct {
	mu sync.Mutex

	live    map[string]bool
	dead    map[string]bool
	pending map[string]bool

	failedCount  map[string]int
	pendingSince map[string]time.Time

	maxRetries int
}

// NewState returns liveness state with every storage in ids already live.
func NewState(ids []string, maxRetries int) *State {
	s := &State{
		live:         make(map[string]bool),
		dead:         make(map[string]bool),
		pending:      make(map[string]bool),
		failedCount:  make(map[string]int),
		pendingSince: make(map[string]time.Time),
		maxRetries:   maxRetries,
	}
	for _, id := range ids {
		s.live[id] = true
	}
	return s
}

// BeginPingRound snapshots live ∪ dead, marks every id pending with the
// given timestamp, and returns the subset that should actually receive a
// PING (live only — dead nodes are included in the pending snapshot only so
// their pending state is cleared cleanly, per spec.md §4.4 step 1).
func (s *State) BeginPingRound(now time.Time) (targets []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.live {
		s.pending[id] = true
		s.pendingSince[id] = now
		targets = append(targets, id)
	}
	for id := range s.dead {
		s.pending[id] = true
		s.pendingSince[id] = now
	}
	return targets
}

// ReceivePong processes a PONG from nodeID. If nodeID is pending and not
// dead, it is atomically promoted to live, cleared from pending, and its
// failure counter resets. A pong from a node not in pending (a node never
// pinged) or from a node already declared dead (a late pong, even while
// its dead entry sits in pending between BeginPingRound and Reconcile) is
// ignored — declared-dead nodes are never resurrected, per spec.md's Open
// Question 1.
func (s *State) ReceivePong(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending[nodeID] || s.dead[nodeID] {
		return
	}
	delete(s.pending, nodeID)
	delete(s.pendingSince, nodeID)
	s.live[nodeID] = true
	s.failedCount[nodeID] = 0
}

// Reconcile runs at the end of a ping round: every storage still pending
// (no pong received since BeginPingRound) has its failure counter
// incremented; any that reaches maxRetries is returned as newly dead, with
// State already transitioned for it (moved live->dead, ring membership is
// the caller's job).
func (s *State) Reconcile() (declaredDead []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.pending {
		if !s.live[id] {
			// Only live nodes accumulate failures; a dead node's lingering
			// pending entry exists purely to be cleared here.
			delete(s.pending, id)
			delete(s.pendingSince, id)
			continue
		}
		s.failedCount[id]++
		if s.failedCount[id] >= s.maxRetries {
			delete(s.live, id)
			delete(s.pending, id)
			delete(s.pendingSince, id)
			s.dead[id] = true
			declaredDead = append(declaredDead, id)
		}
	}
	return declaredDead
}

// IsLive reports whether id is currently classified live.
func (s *State) IsLive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[id]
}

// IsDead reports whether id is currently classified dead.
func (s *State) IsDead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dead[id]
}

// FailedCount returns the current consecutive-failure count for id.
func (s *State) FailedCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failedCount[id]
}

// LiveIDs returns a snapshot of the live set.
func (s *State) LiveIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.live))
	for id := range s.live {
		out = append(out, id)
	}
	return out
}

// DeadIDs returns a snapshot of the dead set.
func (s *State) DeadIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.dead))
	for id := range s.dead {
		out = append(out, id)
	}
	return out
}
