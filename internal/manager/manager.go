// Package manager implements spec.md §4.4: the cluster's single front door.
// It owns the hash ring and the liveness detector, dispatches client
// commands, and orchestrates recovery when a storage is declared dead.
// Grounded on the teacher's coordinator server (cmd/coordinator/main.go)
// for the "one struct holds every shared collaborator" shape, generalized
// from HTTP handlers to broker command dispatch, and on
// original_source/final_manager.py for the command semantics themselves.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/dreamware/triod/internal/broker"
	"github.com/dreamware/triod/internal/envelope"
	"github.com/dreamware/triod/internal/liveness"
	"github.com/dreamware/triod/internal/ring"
)

const (
	QueueCommands = "manager_commands"
	QueueResponses = "manager_responses"
	QueuePings     = "manager_pings"
	QueueClient    = "client_responses"
)

// Manager fronts the cluster: ring + liveness state + broker, wired
// together as explicit collaborators rather than process-wide singletons
// (spec.md §9's guidance).
type Manager struct {
	conn *broker.Conn
	log  zerolog.Logger

	ring      *ring.Ring
	liveness  *liveness.State
	hashPrefix string

	pingInterval time.Duration
	maxRetries   int
	durable      bool
}

// New returns a manager with ring and liveness state seeded from storageIDs
// (the cluster's configured num_storages), ready to Run.
func New(conn *broker.Conn, log zerolog.Logger, storageIDs []string, hashPrefix string, pingInterval time.Duration, maxRetries int, durable bool) *Manager {
	r := ring.New(hashPrefix)
	for _, id := range storageIDs {
		r.Add(id)
	}

	return &Manager{
		conn:         conn,
		log:          log,
		ring:         r,
		liveness:     liveness.NewState(storageIDs, maxRetries),
		hashPrefix:   hashPrefix,
		pingInterval: pingInterval,
		maxRetries:   maxRetries,
		durable:      durable,
	}
}

// Run declares the manager's queues, starts the pinger loop and pong
// listener, and consumes client commands until ctx is canceled.
func (m *Manager) Run(ctx context.Context) error {
	for _, q := range []string{QueueCommands, QueueResponses, QueuePings, QueueClient} {
		if err := m.conn.Declare(q, m.durable); err != nil {
			return err
		}
	}

	errCh := make(chan error, 3)
	go func() { errCh <- m.conn.Consume(ctx, QueuePings, m.handlePong) }()
	go func() { errCh <- m.conn.Consume(ctx, QueueResponses, m.handleStorageResponse) }()
	go func() { errCh <- m.conn.Consume(ctx, QueueCommands, m.handleClientCommand) }()
	go m.pingerLoop(ctx)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// pingerLoop implements spec.md §4.4's two-phase ping cycle: snapshot
// targets and mark pending, publish PING to every live storage, sleep
// ping_interval, then reconcile — incrementing failure counters for
// storages that never answered and declaring death once max_retries is hit.
func (m *Manager) pingerLoop(ctx context.Context) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runPingRound(ctx)
		}
	}
}

func (m *Manager) runPingRound(ctx context.Context) {
	targets := m.liveness.BeginPingRound(time.Now())
	for _, id := range targets {
		env := envelope.Envelope{Command: envelope.CmdPing, ReplyTo: QueuePings}
		queue := fmt.Sprintf("storage-%s", id)
		if err := m.conn.Publish(ctx, queue, env); err != nil {
			m.log.Error().Err(err).Str("storage_id", id).Msg("manager: failed to publish PING")
		}
	}

	// The reconcile step runs after allowing one full interval for
	// replies to arrive, matching spec.md §4.4 step 3's sleep before
	// step 4's reconciliation.
	time.AfterFunc(m.pingInterval, func() {
		for _, id := range m.liveness.Reconcile() {
			m.declareDead(ctx, id)
		}
	})
}

func (m *Manager) handlePong(env envelope.Envelope) {
	if env.NodeID == "" {
		return
	}
	m.liveness.ReceivePong(env.NodeID)
}

// declareDead implements spec.md §4.4's death declaration sequence: move
// the storage to dead, drop it from the ring, find its ring successor, and
// command its replica to relocate onto that successor.
func (m *Manager) declareDead(ctx context.Context, storageID string) {
	m.ring.Remove(storageID)

	successorKey := m.hashPrefix + storageID
	successor, err := m.ring.Route(successorKey)
	if err != nil {
		m.log.Error().Err(err).Str("storage_id", storageID).Msg("manager: no successor available for dead storage")
		return
	}

	m.log.Warn().Str("storage_id", storageID).Str("successor", successor).Msg("manager: storage declared dead, relocating")

	successorID := 0
	fmt.Sscanf(successor, "%d", &successorID)

	relocate := envelope.Envelope{
		Command:   envelope.CmdRelocate,
		StorageID: envelope.IntPtr(successorID),
		ReplyTo:   QueueResponses,
	}
	replicaQueue := fmt.Sprintf("replica-%s", storageID)
	if err := m.conn.Publish(ctx, replicaQueue, relocate); err != nil {
		m.log.Error().Err(err).Str("storage_id", storageID).Msg("manager: failed to publish RELOCATE")
	}
}

// handleStorageResponse relays storage/replica replies on manager_responses
// verbatim to the client, per spec.md §4.4's GET reply-forwarding rule.
func (m *Manager) handleStorageResponse(env envelope.Envelope) {
	ctx := context.Background()
	if err := m.conn.Publish(ctx, QueueClient, env); err != nil {
		m.log.Error().Err(err).Msg("manager: failed to relay storage response to client")
	}
}

// handleClientCommand dispatches LOAD/GET/KILL from manager_commands, per
// spec.md §4.4's client command table.
func (m *Manager) handleClientCommand(env envelope.Envelope) {
	ctx := context.Background()

	switch env.Command {
	case envelope.CmdClientLoad:
		m.handleClientLoad(ctx, env)
	case envelope.CmdClientGet:
		m.handleClientGet(ctx, env)
	case envelope.CmdClientKill:
		m.handleClientKill(ctx, env)
	default:
		m.reply(ctx, env.ReplyTo, envelope.StatusError, "unknown command")
	}
}

func (m *Manager) handleClientGet(ctx context.Context, env envelope.Envelope) {
	storageID, err := m.ring.Route(env.Date)
	if err != nil {
		m.reply(ctx, env.ReplyTo, envelope.StatusError, err.Error())
		return
	}

	getEnv := envelope.Envelope{Command: envelope.CmdGet, Date: env.Date, ReplyTo: QueueResponses}
	queue := fmt.Sprintf("storage-%s", storageID)
	if err := m.conn.Publish(ctx, queue, getEnv); err != nil {
		m.reply(ctx, env.ReplyTo, envelope.StatusError, err.Error())
		return
	}

	m.reply(ctx, env.ReplyTo, envelope.StatusOK, "GET sent")
}

func (m *Manager) handleClientKill(ctx context.Context, env envelope.Envelope) {
	storageID := env.NodeID
	queue := fmt.Sprintf("storage-%s", storageID)
	if err := m.conn.Publish(ctx, queue, envelope.Envelope{Command: envelope.CmdKill}); err != nil {
		m.reply(ctx, env.ReplyTo, envelope.StatusError, err.Error())
		return
	}
	m.reply(ctx, env.ReplyTo, envelope.StatusOK, "KILL sent")
}

func (m *Manager) reply(ctx context.Context, replyTo, status, message string) {
	if replyTo == "" {
		return
	}
	env := envelope.Envelope{Status: status, Message: message}
	if err := m.conn.Publish(ctx, replyTo, env); err != nil {
		m.log.Error().Err(err).Str("reply_to", replyTo).Msg("manager: failed to publish client reply")
	}
}

// LiveStorageIDs returns the manager's current live set, sorted for
// deterministic logging/inspection.
func (m *Manager) LiveStorageIDs() []string {
	ids := m.liveness.LiveIDs()
	slices.Sort(ids)
	return ids
}

func marshalOrNil(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
