package showcase

import (
	"testing"

	"github.com/dreamware/triod/internal/record"
)

func TestExtractTempMaxMin(t *testing.T) {
	sample, err := Extract(record.Record{"temp_min": "0", "temp_max": "10"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sample.Temperature != 5 {
		t.Errorf("expected 5, got %v", sample.Temperature)
	}
	if sample.Weight != 1 {
		t.Errorf("expected weight 1, got %v", sample.Weight)
	}
}

func TestExtractTempm(t *testing.T) {
	sample, err := Extract(record.Record{" _tempm": "12.5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sample.Temperature != 12.5 {
		t.Errorf("expected 12.5, got %v", sample.Temperature)
	}
}

func TestExtractAvgTemp(t *testing.T) {
	sample, err := Extract(record.Record{"Data.Temperature.Avg Temp": "15"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sample.Temperature != 15 {
		t.Errorf("expected 15, got %v", sample.Temperature)
	}
}

func TestExtractTempMeanAverage(t *testing.T) {
	sample, err := Extract(record.Record{
		"BASEL_temp_mean": "10",
		"ZURICH_temp_mean": "20",
		"unrelated":        "ignored",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sample.Temperature != 15 {
		t.Errorf("expected average 15, got %v", sample.Temperature)
	}
	if sample.Weight != 2 {
		t.Errorf("expected weight 2, got %v", sample.Weight)
	}
}

func TestExtractTempMeanSkipsEmpty(t *testing.T) {
	sample, err := Extract(record.Record{
		"BASEL_temp_mean":  "10",
		"ZURICH_temp_mean": "",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sample.Temperature != 10 {
		t.Errorf("expected 10, got %v", sample.Temperature)
	}
	if sample.Weight != 1 {
		t.Errorf("expected weight 1, got %v", sample.Weight)
	}
}

func TestExtractPriorityOrder(t *testing.T) {
	// temp_max present alongside a *_temp_mean column: temp_max must win.
	sample, err := Extract(record.Record{
		"temp_min":        "0",
		"temp_max":        "20",
		"BASEL_temp_mean": "99",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sample.Temperature != 10 {
		t.Errorf("expected temp_max/temp_min strategy to win with 10, got %v", sample.Temperature)
	}
}

func TestExtractNoMatch(t *testing.T) {
	_, err := Extract(record.Record{"humidity": "50"})
	if err != ErrNoMatch {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}
