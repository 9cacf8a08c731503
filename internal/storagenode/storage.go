// Package storagenode implements the primary-ingest role described in
// spec.md §4.2: owns a partition of dates, mirrors every write to its
// paired replica and to the showcase, answers point-GET and PING, accepts
// chunked restore payloads from a peer replica during recovery, and can be
// told to simulate death. Grounded on the teacher's Node/shard pairing
// (cmd/node/main.go, internal/shard/shard.go), generalized from an
// HTTP-routed key/value shard to a broker-driven date bucket.
package storagenode

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dreamware/triod/internal/broker"
	"github.com/dreamware/triod/internal/envelope"
	"github.com/dreamware/triod/internal/record"
)

// publisher is the subset of *broker.Conn a storage node needs, narrowed
// to an interface so its command handlers can be unit tested against a
// fake broker instead of a live AMQP connection.
type publisher interface {
	Declare(queue string, durable bool) error
	Publish(ctx context.Context, queue string, env envelope.Envelope) error
	Consume(ctx context.Context, queue string, handler broker.Handler) error
}

// Node is one storage process's runtime state.
type Node struct {
	ID      string
	dataset *record.Dataset

	conn publisher
	log  zerolog.Logger

	queue        string // storage-{id}, this node's input queue
	replicaQueue string // replica-{id}, its paired replica's input queue

	printEveryChunk bool

	cancel context.CancelFunc
}

// New returns a storage node bound to conn, with an empty dataset.
func New(id string, conn publisher, log zerolog.Logger, printEveryChunk bool) *Node {
	return &Node{
		ID:              id,
		dataset:         record.NewDataset(),
		conn:            conn,
		log:             log,
		queue:           fmt.Sprintf("storage-%s", id),
		replicaQueue:    fmt.Sprintf("replica-%s", id),
		printEveryChunk: printEveryChunk,
	}
}

// Run declares this node's input queue and consumes it until ctx is
// canceled or a KILL envelope stops the loop.
func (n *Node) Run(ctx context.Context, durable bool) error {
	if err := n.conn.Declare(n.queue, durable); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	return n.conn.Consume(ctx, n.queue, n.handle)
}

func (n *Node) handle(env envelope.Envelope) {
	ctx := context.Background()

	switch env.Command {
	case envelope.CmdLoad:
		n.handleLoad(ctx, env)
	case envelope.CmdGet:
		n.handleGet(ctx, env)
	case envelope.CmdPing:
		n.handlePing(ctx, env)
	case envelope.CmdKill:
		n.handleKill()
	case envelope.CmdLoad2:
		n.handleLoad2(ctx, env)
	default:
		n.log.Warn().Str("command", string(env.Command)).Msg("storage: unknown command")
	}
}

func (n *Node) handleLoad(ctx context.Context, env envelope.Envelope) {
	var rec record.Record
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		n.log.Warn().Err(err).Msg("storage: malformed LOAD data")
		return
	}
	date := rec["date_parsed"]
	if date == "" {
		n.log.Warn().Msg("storage: LOAD record missing date_parsed")
		return
	}

	n.dataset.Append(date, rec)

	// Mirror to replica and showcase in the same order this node
	// observed the write, per spec.md §5's ordering guarantee.
	if err := n.conn.Publish(ctx, n.replicaQueue, envelope.Envelope{Command: envelope.CmdCopy, Data: env.Data}); err != nil {
		n.log.Error().Err(err).Msg("storage: failed to mirror LOAD to replica")
	}
	if err := n.conn.Publish(ctx, "showcase_data", envelope.Envelope{Command: envelope.CmdLoad, Data: env.Data}); err != nil {
		n.log.Error().Err(err).Msg("storage: failed to mirror LOAD to showcase")
	}
}

func (n *Node) handleGet(ctx context.Context, env envelope.Envelope) {
	recs, ok := n.dataset.Get(env.Date)

	var reply envelope.Envelope
	if !ok {
		raw, _ := json.Marshal("not found")
		reply = envelope.Envelope{Data: raw, NodeID: n.ID, Queue: n.queue}
	} else {
		raw, _ := json.Marshal(recs)
		reply = envelope.Envelope{Data: raw, NodeID: n.ID, Queue: n.queue}
	}

	if err := n.conn.Publish(ctx, env.ReplyTo, reply); err != nil {
		n.log.Error().Err(err).Msg("storage: failed to publish GET reply")
	}
}

func (n *Node) handlePing(ctx context.Context, env envelope.Envelope) {
	raw, _ := json.Marshal("pong")
	reply := envelope.Envelope{
		Data:   raw,
		NodeID: n.ID,
		Queue:  n.queue,
		Answer: "PONG",
	}
	if err := n.conn.Publish(ctx, env.ReplyTo, reply); err != nil {
		n.log.Error().Err(err).Msg("storage: failed to publish PONG")
	}
}

func (n *Node) handleKill() {
	n.log.Warn().Str("node_id", n.ID).Msg("storage: received KILL, terminating")
	if n.cancel != nil {
		n.cancel()
	}
}

// chunk is the wire shape of LOAD_2/COPY_2's Data field: a date→records map.
type chunk map[string][]record.Record

func (n *Node) handleLoad2(ctx context.Context, env envelope.Envelope) {
	var c chunk
	if err := json.Unmarshal(env.Data, &c); err != nil {
		n.log.Warn().Err(err).Msg("storage: malformed LOAD_2 data")
		return
	}
	n.dataset.MergeChunk(c)

	if err := n.conn.Publish(ctx, n.replicaQueue, envelope.Envelope{
		Command:    envelope.CmdCopy2,
		Data:       env.Data,
		ChunkID:    env.ChunkID,
		TotalChunk: env.TotalChunk,
	}); err != nil {
		n.log.Error().Err(err).Msg("storage: failed to echo COPY_2 to replica")
	}

	isTerminal := env.ChunkID != nil && env.TotalChunk != nil && *env.ChunkID == *env.TotalChunk-1
	if n.printEveryChunk || isTerminal {
		raw, _ := json.Marshal(fmt.Sprintf("chunk %v/%v merged", deref(env.ChunkID), deref(env.TotalChunk)))
		reply := envelope.Envelope{
			Data:       raw,
			NodeID:     n.ID,
			ChunkID:    env.ChunkID,
			TotalChunk: env.TotalChunk,
			Status:     envelope.StatusOK,
		}
		if err := n.conn.Publish(ctx, env.ReplyTo, reply); err != nil {
			n.log.Error().Err(err).Msg("storage: failed to publish LOAD_2 progress")
		}
	}
}

func deref(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
