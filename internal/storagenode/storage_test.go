package storagenode

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dreamware/triod/internal/broker"
	"github.com/dreamware/triod/internal/envelope"
)

// fakeBroker records every Publish call so handler behavior can be
// asserted without a live AMQP connection.
type fakeBroker struct {
	mu        sync.Mutex
	published []published
}

type published struct {
	queue string
	env   envelope.Envelope
}

func (f *fakeBroker) Declare(string, bool) error { return nil }

func (f *fakeBroker) Consume(ctx context.Context, _ string, _ broker.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeBroker) Publish(_ context.Context, queue string, env envelope.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{queue, env})
	return nil
}

func (f *fakeBroker) lastTo(queue string) (envelope.Envelope, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.published) - 1; i >= 0; i-- {
		if f.published[i].queue == queue {
			return f.published[i].env, true
		}
	}
	return envelope.Envelope{}, false
}

func TestHandleLoadThenHandleGetReturnsTheRecord(t *testing.T) {
	fb := &fakeBroker{}
	n := New("0", fb, zerolog.Nop(), false)
	ctx := context.Background()

	data, _ := json.Marshal(map[string]string{"date_parsed": "31-01-2012", "temp_min": "0", "temp_max": "10"})
	n.handleLoad(ctx, envelope.Envelope{Command: envelope.CmdLoad, Data: data})

	n.handleGet(ctx, envelope.Envelope{Command: envelope.CmdGet, Date: "31-01-2012", ReplyTo: "client-1"})

	reply, ok := fb.lastTo("client-1")
	if !ok {
		t.Fatal("expected a GET reply published to client-1")
	}

	var recs []map[string]string
	if err := json.Unmarshal(reply.Data, &recs); err != nil {
		t.Fatalf("reply data did not decode as a record list: %v", err)
	}
	if len(recs) != 1 || recs[0]["temp_max"] != "10" {
		t.Errorf("expected the loaded record back, got %v", recs)
	}
	if reply.NodeID != "0" {
		t.Errorf("expected node_id 0, got %q", reply.NodeID)
	}
}

func TestHandleGetMissingDateRepliesNotFound(t *testing.T) {
	fb := &fakeBroker{}
	n := New("0", fb, zerolog.Nop(), false)

	n.handleGet(context.Background(), envelope.Envelope{Date: "01-01-1999", ReplyTo: "client-2"})

	reply, ok := fb.lastTo("client-2")
	if !ok {
		t.Fatal("expected a reply published to client-2")
	}

	var msg string
	if err := json.Unmarshal(reply.Data, &msg); err != nil {
		t.Fatalf("reply data did not decode as a string: %v", err)
	}
	if msg != "not found" {
		t.Errorf("expected %q, got %q", "not found", msg)
	}
}

func TestHandleLoadMirrorsToReplicaAndShowcase(t *testing.T) {
	fb := &fakeBroker{}
	n := New("0", fb, zerolog.Nop(), false)

	data, _ := json.Marshal(map[string]string{"date_parsed": "01-01-2000"})
	n.handleLoad(context.Background(), envelope.Envelope{Command: envelope.CmdLoad, Data: data})

	if _, ok := fb.lastTo("replica-0"); !ok {
		t.Error("expected LOAD to be mirrored to replica-0")
	}
	if _, ok := fb.lastTo("showcase_data"); !ok {
		t.Error("expected LOAD to be mirrored to showcase_data")
	}
}

// TestHandlePingRepliesPong verifies the wire shape spec.md §6 requires
// for a PING reply: data:"pong" and a literal answer:"PONG" field,
// distinct from Message/Status.
func TestHandlePingRepliesPong(t *testing.T) {
	fb := &fakeBroker{}
	n := New("7", fb, zerolog.Nop(), false)

	n.handlePing(context.Background(), envelope.Envelope{Command: envelope.CmdPing, ReplyTo: "manager_pings"})

	reply, ok := fb.lastTo("manager_pings")
	if !ok {
		t.Fatal("expected a PONG reply published to manager_pings")
	}

	var data string
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		t.Fatalf("reply data did not decode as a string: %v", err)
	}
	if data != "pong" {
		t.Errorf("expected data %q, got %q", "pong", data)
	}
	if reply.Answer != "PONG" {
		t.Errorf("expected answer %q, got %q", "PONG", reply.Answer)
	}
	if reply.NodeID != "7" {
		t.Errorf("expected node_id 7, got %q", reply.NodeID)
	}
}

func TestHandleKillCancelsContext(t *testing.T) {
	fb := &fakeBroker{}
	n := New("0", fb, zerolog.Nop(), false)

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	n.handleKill()

	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected KILL to cancel the node's context")
	}
}
