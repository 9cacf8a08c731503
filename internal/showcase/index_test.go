package showcase

import "testing"

func TestIndexUpdateNewDate(t *testing.T) {
	ix := NewIndex(3)
	if err := ix.Update("01-01-2000", Sample{Temperature: 10, Weight: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, status, err := ix.Range("01-01-2000", "01-01-2000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != RangeSuccess {
		t.Fatalf("expected success, got %v", status)
	}
	if data["01-01-2000"] != 10 {
		t.Errorf("expected mean 10, got %v", data["01-01-2000"])
	}
}

func TestIndexWeightedUpdate(t *testing.T) {
	ix := NewIndex(3)
	ix.Update("01-01-2000", Sample{Temperature: 5, Weight: 1})
	ix.Update("01-01-2000", Sample{Temperature: 15, Weight: 1})

	data, _, _ := ix.Range("01-01-2000", "01-01-2000")
	if data["01-01-2000"] != 10 {
		t.Errorf("expected mean 10, got %v", data["01-01-2000"])
	}
}

func TestIndexEmptyReturns204(t *testing.T) {
	ix := NewIndex(3)
	_, status, err := ix.Range("01-01-2000", "31-12-2000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != RangeEmpty {
		t.Errorf("expected 204, got %v", status)
	}
}

func TestIndexNoMatchReturns404(t *testing.T) {
	ix := NewIndex(3)
	ix.Update("01-01-2001", Sample{Temperature: 1, Weight: 1})

	_, status, err := ix.Range("01-01-2000", "31-12-2000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != RangeNoMatch {
		t.Errorf("expected 404, got %v", status)
	}
}

func TestIndexRangeInclusive(t *testing.T) {
	ix := NewIndex(3)
	ix.Update("01-01-2000", Sample{Temperature: 1, Weight: 1})
	ix.Update("15-06-2000", Sample{Temperature: 2, Weight: 1})
	ix.Update("31-12-2000", Sample{Temperature: 3, Weight: 1})

	data, status, err := ix.Range("01-01-2000", "31-12-2000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != RangeSuccess {
		t.Fatalf("expected success, got %v", status)
	}
	if len(data) != 3 {
		t.Errorf("expected 3 dates in range, got %d", len(data))
	}
}

func TestIndexRangeAvg(t *testing.T) {
	ix := NewIndex(3)
	ix.Update("01-01-2000", Sample{Temperature: 0, Weight: 1})
	ix.Update("01-01-2000", Sample{Temperature: 10, Weight: 1})

	avg, status, err := ix.RangeAvg("01-01-2000", "01-01-2000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != RangeSuccess {
		t.Fatalf("expected success, got %v", status)
	}
	if avg != 5 {
		t.Errorf("expected avg 5, got %v", avg)
	}
}

func TestIndexRangeAvgPropagatesStatus(t *testing.T) {
	ix := NewIndex(3)
	_, status, err := ix.RangeAvg("01-01-2000", "31-12-2000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != RangeEmpty {
		t.Errorf("expected empty-index status to propagate, got %v", status)
	}
}
