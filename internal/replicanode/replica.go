// Package replicanode implements the passive mirror role described in
// spec.md §4.3: accepts mirrored writes (COPY) and restore-chunk echoes
// (COPY_2) from its paired storage, answers GET the same way storage does,
// and on RELOCATE streams its dataset to a newly chosen successor storage
// in chunk_size-bounded pieces before terminating. Ported from
// original_source/replicaNode.py's ReplicaNode, restructured in the
// teacher's Node/shard shape like storagenode.
package replicanode

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dreamware/triod/internal/broker"
	"github.com/dreamware/triod/internal/envelope"
	"github.com/dreamware/triod/internal/record"
)

// Node is one replica process's runtime state.
type Node struct {
	StorageID string
	dataset   *record.Dataset

	conn *broker.Conn
	log  zerolog.Logger

	queue     string
	chunkSize int

	cancel context.CancelFunc
}

// New returns a replica node mirroring storage StorageID, with an empty
// dataset and the given chunk size for future RELOCATE streaming.
func New(storageID string, conn *broker.Conn, log zerolog.Logger, chunkSize int) *Node {
	return &Node{
		StorageID: storageID,
		dataset:   record.NewDataset(),
		conn:      conn,
		log:       log,
		queue:     fmt.Sprintf("replica-%s", storageID),
		chunkSize: chunkSize,
	}
}

// Run declares this replica's input queue and consumes it until ctx is
// canceled or RELOCATE completes and self-terminates the loop.
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
	case envelope.CmdCopy:
		n.handleCopy(env)
	case envelope.CmdCopy2:
		n.handleCopy2(env)
	case envelope.CmdGet:
		n.handleGet(ctx, env)
	case envelope.CmdRelocate:
		n.handleRelocate(ctx, env)
	default:
		n.log.Warn().Str("command", string(env.Command)).Msg("replica: unknown command")
	}
}

func (n *Node) handleCopy(env envelope.Envelope) {
	var rec record.Record
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		n.log.Warn().Err(err).Msg("replica: malformed COPY data")
		return
	}
	date := rec["date_parsed"]
	if date == "" {
		n.log.Warn().Msg("replica: COPY record missing date_parsed")
		return
	}
	n.dataset.Append(date, rec)
}

func (n *Node) handleCopy2(env envelope.Envelope) {
	var c chunk
	if err := json.Unmarshal(env.Data, &c); err != nil {
		n.log.Warn().Err(err).Msg("replica: malformed COPY_2 data")
		return
	}
	// This merges chunks that may originate from this replica's own
	// earlier RELOCATE emission, echoed back via the new owner storage.
	// The re-echo is redundant but harmless and preserved for protocol
	// compatibility (spec.md §9, Open Question 2).
	n.dataset.MergeChunk(c)
}

type chunk map[string][]record.Record

func (n *Node) handleGet(ctx context.Context, env envelope.Envelope) {
	recs, ok := n.dataset.Get(env.Date)

	var reply envelope.Envelope
	if !ok {
		raw, _ := json.Marshal("not found")
		reply = envelope.Envelope{Data: raw, NodeID: n.StorageID, Queue: n.queue}
	} else {
		raw, _ := json.Marshal(recs)
		reply = envelope.Envelope{Data: raw, NodeID: n.StorageID, Queue: n.queue}
	}

	if err := n.conn.Publish(ctx, env.ReplyTo, reply); err != nil {
		n.log.Error().Err(err).Msg("replica: failed to publish GET reply")
	}
}

// handleRelocate partitions the mirror into chunk_size-bounded pieces and
// streams them as LOAD_2 envelopes to the designated new owner, in
// ascending chunk_id order, then stops consuming and exits — spec.md §4.3's
// recovery protocol, with the manager's RELOCATE decision executed here
// because the replica, not the manager, holds the bytes.
func (n *Node) handleRelocate(ctx context.Context, env envelope.Envelope) {
	newOwner := ""
	if env.StorageID != nil {
		newOwner = fmt.Sprintf("%d", *env.StorageID)
	}
	if newOwner == "" {
		n.log.Warn().Msg("replica: RELOCATE missing target storage_id")
		return
	}
	targetQueue := fmt.Sprintf("storage-%s", newOwner)

	snapshot := n.dataset.Snapshot()
	chunks := chunkDataset(snapshot, n.chunkSize)
	total := len(chunks)

	for id, c := range chunks {
		data, err := json.Marshal(c)
		if err != nil {
			n.log.Error().Err(err).Msg("replica: failed to marshal relocate chunk")
			continue
		}
		load2 := envelope.Envelope{
			Command:    envelope.CmdLoad2,
			Data:       data,
			ReplicaID:  mustParseID(n.StorageID),
			ChunkID:    envelope.IntPtr(id),
			TotalChunk: envelope.IntPtr(total),
			ReplyTo:    "manager_responses",
		}
		if err := n.conn.Publish(ctx, targetQueue, load2); err != nil {
			n.log.Error().Err(err).Int("chunk_id", id).Msg("replica: failed to publish relocate chunk")
		}
	}

	n.log.Info().Str("storage_id", n.StorageID).Str("new_owner", newOwner).Int("chunks", total).Msg("replica: relocation complete, terminating")
	if n.cancel != nil {
		n.cancel()
	}
}

func mustParseID(s string) *int {
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return nil
	}
	return &v
}

// chunkDataset partitions a full date→records snapshot into an ordered
// sequence of pieces of at most chunkSize records each, the Go equivalent
// of replicaNode.py's chunk_data generator. Chunking is by whole date
// buckets: a date's records are never split across two chunks, so a single
// date holding more than chunkSize records forms one chunk larger than
// chunkSize.
func chunkDataset(snapshot map[string][]record.Record, chunkSize int) []chunk {
	if chunkSize <= 0 {
		chunkSize = 1
	}

	var chunks []chunk
	current := chunk{}
	currentCount := 0

	for date, recs := range snapshot {
		if currentCount > 0 && currentCount+len(recs) > chunkSize {
			chunks = append(chunks, current)
			current = chunk{}
			currentCount = 0
		}
		current[date] = recs
		currentCount += len(recs)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
