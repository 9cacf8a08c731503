package showcase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dreamware/triod/internal/broker"
	"github.com/dreamware/triod/internal/envelope"
	"github.com/dreamware/triod/internal/record"
)

const (
	QueueData     = "showcase_data"
	QueueRequests = "showcase_requests"
)

// Service wires the ordered Index to the broker, consuming mirrored
// ingests off showcase_data and range requests off showcase_requests.
// Grounded on original_source/showcase.py's Showcase class, restructured
// as an explicit collaborator (spec.md §9's guidance against process-wide
// singletons) rather than a self-dialing constructor.
type Service struct {
	conn  *broker.Conn
	index *Index
	log   zerolog.Logger
}

// NewService returns a showcase bound to conn, with a fresh 3-decimal-place
// index.
func NewService(conn *broker.Conn, log zerolog.Logger) *Service {
	return &Service{conn: conn, index: NewIndex(3), log: log}
}

// Run declares its queues and consumes both until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.conn.Declare(QueueData, false); err != nil {
		return err
	}
	if err := s.conn.Declare(QueueRequests, false); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- s.conn.Consume(ctx, QueueData, s.handleData) }()
	go func() { errCh <- s.conn.Consume(ctx, QueueRequests, s.handleRequest) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Service) handleData(env envelope.Envelope) {
	var rec record.Record
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		s.log.Warn().Err(err).Msg("showcase: malformed ingest data")
		return
	}

	date := rec["date_parsed"]
	if date == "" {
		s.log.Warn().Msg("showcase: ingest missing date_parsed")
		return
	}

	sample, err := Extract(rec)
	if err != nil {
		// No marker column matched, or no usable value: drop silently,
		// per spec.md §4.5.
		return
	}

	if err := s.index.Update(date, sample); err != nil {
		s.log.Warn().Err(err).Str("date", date).Msg("showcase: failed to update index")
	}
}

func (s *Service) handleRequest(env envelope.Envelope) {
	ctx := context.Background()

	reply, err := s.buildReply(env)
	if err != nil {
		reply = envelope.Envelope{
			Status:  envelope.Status500,
			From:    "showcaseX",
			Message: err.Error(),
		}
	}

	if pubErr := s.conn.Publish(ctx, env.ReplyTo, reply); pubErr != nil {
		s.log.Error().Err(pubErr).Str("reply_to", env.ReplyTo).Msg("showcase: failed to publish reply")
	}
}

func (s *Service) buildReply(env envelope.Envelope) (envelope.Envelope, error) {
	switch env.Command {
	case envelope.CmdTempRange:
		data, status, err := s.index.Range(env.Date1, env.Date2)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return rangeReply(data, status), nil

	case envelope.CmdTempRangeAvg:
		avg, status, err := s.index.RangeAvg(env.Date1, env.Date2)
		if err != nil {
			return envelope.Envelope{}, err
		}
		if status != RangeSuccess {
			data, _, _ := s.index.Range(env.Date1, env.Date2)
			return rangeReply(data, status), nil
		}
		return envelope.Envelope{
			From:           "showcase2",
			Status:         string(envelope.StatusSuccess),
			AvgTemperature: envelope.FloatPtr(avg),
		}, nil

	default:
		return envelope.Envelope{}, fmt.Errorf("showcase: unknown command %q", env.Command)
	}
}

func rangeReply(data map[string]float64, status RangeStatus) envelope.Envelope {
	raw, _ := json.Marshal(data)
	return envelope.Envelope{
		From:    "showcase1",
		Status:  string(status),
		Data:    raw,
	}
}
