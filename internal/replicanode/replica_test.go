package replicanode

import (
	"fmt"
	"testing"

	"github.com/dreamware/triod/internal/record"
)

func TestChunkDatasetRespectsSize(t *testing.T) {
	snapshot := make(map[string][]record.Record)
	for i := 0; i < 350; i++ {
		date := dateFor(i)
		snapshot[date] = []record.Record{{"n": "1"}}
	}

	chunks := chunkDataset(snapshot, 100)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks for 350 single-record dates at size 100, got %d", len(chunks))
	}

	total := 0
	for _, c := range chunks {
		for _, recs := range c {
			total += len(recs)
		}
	}
	if total != 350 {
		t.Errorf("expected 350 total records across chunks, got %d", total)
	}
}

func TestChunkDatasetSingleChunkWhenSmall(t *testing.T) {
	snapshot := map[string][]record.Record{
		"01-01-2000": {{"n": "1"}},
		"02-01-2000": {{"n": "1"}},
	}

	chunks := chunkDataset(snapshot, 100)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestChunkDatasetEmpty(t *testing.T) {
	chunks := chunkDataset(map[string][]record.Record{}, 100)
	if len(chunks) != 0 {
		t.Fatalf("expected 0 chunks for empty dataset, got %d", len(chunks))
	}
}

func dateFor(i int) string {
	day := 1 + i%28
	month := 1 + (i/28)%12
	year := 2000 + i/336
	return fmt.Sprintf("%02d-%02d-%04d", day, month, year)
}
