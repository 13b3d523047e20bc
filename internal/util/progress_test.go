package util

import "testing"

func TestSyncCountsPercentage(t *testing.T) {
	tests := []struct {
		name   string
		counts SyncCounts
		want   int32
	}{
		{"empty listing", SyncCounts{}, 100},
		{"nothing done", SyncCounts{Total: 10}, 0},
		{"halfway", SyncCounts{Total: 10, Staged: 3, Skipped: 1, Failed: 1}, 50},
		{"complete", SyncCounts{Total: 4, Staged: 2, Skipped: 1, Failed: 1}, 100},
		{"overcounted clamps", SyncCounts{Total: 3, Staged: 5}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.counts.Percentage(); got != tt.want {
				t.Fatalf("Percentage() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSyncCountsString(t *testing.T) {
	c := SyncCounts{Total: 40, Staged: 12, Skipped: 3, Failed: 1}
	want := "12/40 staged, 3 skipped, 1 failed"
	if got := c.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
