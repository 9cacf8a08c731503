// Package main implements triodctl, a thin one-shot CLI for the commands
// spec.md §6 lists as the cluster's client surface: LOAD, GET, and KILL
// against manager_commands, and temp_range/temp_range_avg against
// showcase_requests. Each invocation dials the broker, publishes exactly
// one envelope, waits for its reply, prints it, and exits — the original
// source's kill_process.py-style "one shot, then get out" shape rather than a REPL
// (out of scope per spec.md §1).
//
// GET is the one command that doesn't round-trip through a private reply
// queue: per spec.md §4.4, the manager acks a GET immediately with
// {status: OK, message: "GET sent"} on the caller's reply_to, but the
// actual record arrives later, relayed verbatim from the storage's
// manager_responses reply onto the shared client_responses queue. So
// `get` publishes with no reply_to and listens on client_responses
// instead of a private queue.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dreamware/triod/internal/broker"
	"github.com/dreamware/triod/internal/config"
	"github.com/dreamware/triod/internal/envelope"
	"github.com/dreamware/triod/internal/manager"
	"github.com/dreamware/triod/internal/showcase"
	"github.com/dreamware/triod/internal/telemetry"
)

const replyTimeout = 5 * time.Second

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	telemetry.Init(telemetry.Config{Level: telemetry.InfoLevel})
	log := telemetry.WithComponent("triodctl")

	conn, err := broker.Dial(cfg.BrokerURL, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "triodctl: failed to connect to broker: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	cmd, args := os.Args[1], os.Args[2:]

	if cmd == "get" {
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: triodctl get <date>")
			os.Exit(1)
		}
		reply, err := runGet(conn, cfg, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "triodctl: %v\n", err)
			os.Exit(1)
		}
		printReply(reply)
		return
	}

	var env envelope.Envelope
	var queue string

	switch cmd {
	case "load":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: triodctl load <path>")
			os.Exit(1)
		}
		queue = manager.QueueCommands
		env = envelope.Envelope{Command: envelope.CmdClientLoad, Data: jsonString(args[0])}

	case "kill":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: triodctl kill <storage-id>")
			os.Exit(1)
		}
		queue = manager.QueueCommands
		env = envelope.Envelope{Command: envelope.CmdClientKill, NodeID: args[0]}

	case "temp_range":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: triodctl temp_range <date1> <date2>")
			os.Exit(1)
		}
		queue = showcase.QueueRequests
		env = envelope.Envelope{Command: envelope.CmdTempRange, Date1: args[0], Date2: args[1]}

	case "temp_range_avg":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: triodctl temp_range_avg <date1> <date2>")
			os.Exit(1)
		}
		queue = showcase.QueueRequests
		env = envelope.Envelope{Command: envelope.CmdTempRangeAvg, Date1: args[0], Date2: args[1]}

	default:
		usage()
		os.Exit(1)
	}

	if err := conn.Declare(queue, cfg.Durability > 0); err != nil {
		fmt.Fprintf(os.Stderr, "triodctl: %v\n", err)
		os.Exit(1)
	}

	reply, err := roundTrip(conn, queue, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "triodctl: %v\n", err)
		os.Exit(1)
	}

	printReply(reply)
}

// roundTrip publishes env to queue with a private ReplyTo, then waits for
// the first envelope delivered there or replyTimeout, whichever comes
// first — the CLI's only consumer, torn down after one message.
func roundTrip(conn *broker.Conn, queue string, env envelope.Envelope) (envelope.Envelope, error) {
	replyQueue, err := conn.DeclareReplyQueue()
	if err != nil {
		return envelope.Envelope{}, err
	}
	env.ReplyTo = replyQueue

	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()

	if err := conn.Publish(ctx, queue, env); err != nil {
		return envelope.Envelope{}, err
	}

	replies := make(chan envelope.Envelope, 1)
	go conn.Consume(ctx, replyQueue, func(e envelope.Envelope) {
		select {
		case replies <- e:
		default:
		}
	})

	select {
	case reply := <-replies:
		return reply, nil
	case <-ctx.Done():
		return envelope.Envelope{}, fmt.Errorf("timed out waiting for a reply on %s", replyQueue)
	}
}

// runGet publishes a GET with no reply_to (the immediate "GET sent" ack
// has nowhere useful to land and is discarded) and waits on
// client_responses for the storage's relayed reply, per spec.md §4.4's
// GET-is-relayed-not-round-tripped behavior.
func runGet(conn *broker.Conn, cfg config.Config, date string) (envelope.Envelope, error) {
	if err := conn.Declare(manager.QueueCommands, cfg.Durability > 0); err != nil {
		return envelope.Envelope{}, err
	}
	if err := conn.Declare(manager.QueueClient, cfg.Durability > 0); err != nil {
		return envelope.Envelope{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()

	env := envelope.Envelope{Command: envelope.CmdClientGet, Date: date}
	if err := conn.Publish(ctx, manager.QueueCommands, env); err != nil {
		return envelope.Envelope{}, err
	}

	replies := make(chan envelope.Envelope, 1)
	go conn.Consume(ctx, manager.QueueClient, func(e envelope.Envelope) {
		select {
		case replies <- e:
		default:
		}
	})

	select {
	case reply := <-replies:
		return reply, nil
	case <-ctx.Done():
		return envelope.Envelope{}, fmt.Errorf("timed out waiting for a GET reply on %s", manager.QueueClient)
	}
}

func printReply(env envelope.Envelope) {
	if env.Status != "" {
		fmt.Printf("status: %s\n", env.Status)
	}
	if env.Message != "" {
		fmt.Printf("message: %s\n", env.Message)
	}
	if env.From != "" {
		fmt.Printf("from: %s\n", env.From)
	}
	if env.AvgTemperature != nil {
		fmt.Printf("avg_temperature: %s\n", strconv.FormatFloat(*env.AvgTemperature, 'f', -1, 64))
	}
	if len(env.Data) > 0 {
		fmt.Printf("data: %s\n", env.Data)
	}
}

func jsonString(s string) []byte {
	b, _ := json.Marshal(s)
	return b
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: triodctl <command> [args]

commands:
  load <path>                load a CSV file through the manager
  get <date>                 fetch every record stored for date
  kill <storage-id>          kill a storage process by id
  temp_range <d1> <d2>       per-date mean temperature over [d1, d2]
  temp_range_avg <d1> <d2>   single averaged mean temperature over [d1, d2]`)
}

func loadConfig() (config.Config, error) {
	path := getenv("TRIOD_CONFIG", "config/triod.example.yaml")
	if _, err := os.Stat(path); err != nil {
		return config.Default(), nil
	}
	return config.Load(path)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
