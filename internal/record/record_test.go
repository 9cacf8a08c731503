package record

import (
	"sync"
	"testing"
)

func TestAppendAndGet(t *testing.T) {
	d := NewDataset()
	d.Append("01-01-2000", Record{"temp_min": "0", "temp_max": "10"})

	recs, ok := d.Get("01-01-2000")
	if !ok {
		t.Fatal("expected date to be present")
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0]["temp_max"] != "10" {
		t.Errorf("expected temp_max 10, got %s", recs[0]["temp_max"])
	}
}

func TestGetMissingDate(t *testing.T) {
	d := NewDataset()
	_, ok := d.Get("31-12-1999")
	if ok {
		t.Fatal("expected missing date to report not ok")
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	d := NewDataset()
	d.Append("01-01-2000", Record{"n": "1"})
	d.Append("01-01-2000", Record{"n": "2"})
	d.Append("01-01-2000", Record{"n": "3"})

	recs, _ := d.Get("01-01-2000")
	for i, want := range []string{"1", "2", "3"} {
		if recs[i]["n"] != want {
			t.Errorf("index %d: expected %s, got %s", i, want, recs[i]["n"])
		}
	}
}

func TestMergeChunkReplacesExistingDate(t *testing.T) {
	d := NewDataset()
	d.Append("01-01-2000", Record{"n": "existing"})

	d.MergeChunk(map[string][]Record{
		"01-01-2000": {{"n": "restored"}},
		"02-01-2000": {{"n": "new-date"}},
	})

	recs, _ := d.Get("01-01-2000")
	if len(recs) != 1 || recs[0]["n"] != "restored" {
		t.Fatalf("expected merge to replace the local bucket, got %v", recs)
	}

	recs2, ok := d.Get("02-01-2000")
	if !ok || len(recs2) != 1 {
		t.Fatalf("expected new date to be present with 1 record, got ok=%v len=%d", ok, len(recs2))
	}
}

func TestMergeChunkIsIdempotentUnderRedelivery(t *testing.T) {
	d := NewDataset()
	chunk := map[string][]Record{
		"01-01-2000": {{"n": "a"}, {"n": "b"}},
	}

	d.MergeChunk(chunk)
	d.MergeChunk(chunk)

	recs, _ := d.Get("01-01-2000")
	if len(recs) != 2 {
		t.Fatalf("expected redelivered chunk to be a no-op, got %d records", len(recs))
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	d := NewDataset()
	d.Append("01-01-2000", Record{"n": "1"})

	snap := d.Snapshot()
	d.Append("01-01-2000", Record{"n": "2"})

	if len(snap["01-01-2000"]) != 1 {
		t.Errorf("expected snapshot to be frozen at 1 record, got %d", len(snap["01-01-2000"]))
	}
}

func TestLen(t *testing.T) {
	d := NewDataset()
	if d.Len() != 0 {
		t.Fatalf("expected empty dataset, got len %d", d.Len())
	}
	d.Append("01-01-2000", Record{})
	d.Append("02-01-2000", Record{})
	d.Append("02-01-2000", Record{})
	if d.Len() != 3 {
		t.Errorf("expected 3 total records, got %d", d.Len())
	}
}

func TestConcurrentAppend(t *testing.T) {
	d := NewDataset()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.Append("01-01-2000", Record{})
		}(i)
	}
	wg.Wait()
	if d.Len() != 100 {
		t.Errorf("expected 100 records after concurrent appends, got %d", d.Len())
	}
}
