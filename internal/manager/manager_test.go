package manager

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFindDateColumn(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   string
	}{
		{"date column first match", []string{"date", "temp_min", "temp_max"}, "date"},
		{"datetime_utc fallback", []string{"datetime_utc", "temp_min"}, "datetime_utc"},
		{"Date.Full fallback", []string{"Date.Full", "temp_min"}, "Date.Full"},
		{"no recognized column", []string{"foo", "bar"}, ""},
		{"priority order respected", []string{"DATE", "date"}, "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, idx := findDateColumn(tt.header)
			if tt.want == "" {
				if idx != -1 {
					t.Errorf("expected no match, got column %q at %d", name, idx)
				}
				return
			}
			if name != tt.want {
				t.Errorf("expected column %q, got %q", tt.want, name)
			}
		})
	}
}

func TestNewSeedsLiveSet(t *testing.T) {
	m := New(nil, zerolog.Nop(), []string{"0", "1", "2"}, "storage", 5*time.Second, 3, false)

	live := m.LiveStorageIDs()
	if len(live) != 3 {
		t.Fatalf("expected 3 live storages, got %d", len(live))
	}
	for _, id := range []string{"0", "1", "2"} {
		if !m.ring.Contains(id) {
			t.Errorf("expected ring to contain %s", id)
		}
	}
}
