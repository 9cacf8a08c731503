package manager

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dreamware/triod/internal/dateparse"
	"github.com/dreamware/triod/internal/envelope"
	"github.com/dreamware/triod/internal/record"
)

// possibleDateColumns lists the header names the ingest path recognizes for
// a row's date, tried in order — the Go equivalent of
// final_manager.py's possible_date_columns.
var possibleDateColumns = []string{"date", "datetime_utc", "Date.Full", "DATE"}

// handleClientLoad implements spec.md §4.4's `LOAD <file>` client command:
// read a CSV from the manager process's filesystem, normalize each row's
// date column, route by ring, and publish a LOAD envelope per row to the
// owning storage. Uses the standard library encoding/csv because no
// third-party CSV library appears anywhere in the retrieval pack (see
// DESIGN.md).
func (m *Manager) handleClientLoad(ctx context.Context, env envelope.Envelope) {
	var path string
	if err := unmarshalData(env, &path); err != nil || path == "" {
		m.reply(ctx, env.ReplyTo, envelope.StatusError, "LOAD requires a file path")
		return
	}

	n, err := m.ingestCSV(ctx, path)
	if err != nil {
		m.reply(ctx, env.ReplyTo, envelope.StatusError, err.Error())
		return
	}

	m.reply(ctx, env.ReplyTo, envelope.StatusOK, fmt.Sprintf("loaded %d rows", n))
}

func (m *Manager) ingestCSV(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("manager: open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("manager: read header of %s: %w", path, err)
	}

	dateCol, dateColIdx := findDateColumn(header)
	if dateColIdx == -1 {
		return 0, fmt.Errorf("manager: %s has no recognized date column (%v)", path, possibleDateColumns)
	}

	count := 0
	for {
		row, err := reader.Read()
		if err != nil {
			break // EOF or malformed trailing row; stop without failing the whole ingest
		}

		rec := make(record.Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}

		canonical, err := dateparse.Normalize(rec[dateCol])
		if err != nil {
			continue
		}
		rec["date_parsed"] = canonical

		if err := m.publishLoad(ctx, canonical, rec); err != nil {
			m.log.Error().Err(err).Str("date", canonical).Msg("manager: failed to publish ingest LOAD")
			continue
		}
		count++
	}

	return count, nil
}

func (m *Manager) publishLoad(ctx context.Context, canonical string, rec record.Record) error {
	storageID, err := m.ring.Route(canonical)
	if err != nil {
		return err
	}

	raw := marshalOrNil(rec)
	env := envelope.Envelope{Command: envelope.CmdLoad, Data: raw}
	queue := fmt.Sprintf("storage-%s", storageID)
	return m.conn.Publish(ctx, queue, env)
}

func findDateColumn(header []string) (name string, idx int) {
	for _, candidate := range possibleDateColumns {
		for i, col := range header {
			if col == candidate {
				return col, i
			}
		}
	}
	return "", -1
}

func unmarshalData(env envelope.Envelope, out interface{}) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("manager: empty data field")
	}
	return json.Unmarshal(env.Data, out)
}
