package util

import (
	"strings"
	"testing"

	"github.com/ctxeco/backend/pkg/common"
)

func TestNewProvenanceID_Prefix(t *testing.T) {
	tests := []struct {
		name   string
		class  common.DataClass
		prefix string
	}{
		{"ImmutableTruth", common.ImmutableTruth, "i-"},
		{"EphemeralStream", common.EphemeralStream, "e-"},
		{"OperationalPulse", common.OperationalPulse, "o-"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewProvenanceID(tc.class)
			if err != nil {
				t.Fatalf("NewProvenanceID(%q) returned error: %v", tc.class, err)
			}
			if !strings.HasPrefix(got, tc.prefix) {
				t.Fatalf("NewProvenanceID(%q) = %q, want prefix %q", tc.class, got, tc.prefix)
			}
			if len(got) != len(tc.prefix)+8 {
				t.Fatalf("NewProvenanceID(%q) = %q, want 8 char suffix", tc.class, got)
			}
		})
	}
}

func TestNewProvenanceID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id, err := NewProvenanceID(common.ImmutableTruth)
		if err != nil {
			t.Fatalf("NewProvenanceID returned error: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate provenance id %q", id)
		}
		seen[id] = true
	}
}

func TestChunkID(t *testing.T) {
	tests := []struct {
		name    string
		docID   string
		ordinal int
		want    string
	}{
		{"First", "a1b2c3d4e5f6a7b8", 0, "a1b2c3d4e5f6a7b8-0000"},
		{"Tenth", "a1b2c3d4e5f6a7b8", 9, "a1b2c3d4e5f6a7b8-0009"},
		{"FourDigits", "a1b2c3d4e5f6a7b8", 1234, "a1b2c3d4e5f6a7b8-1234"},
		{"Overflow", "a1b2c3d4e5f6a7b8", 12345, "a1b2c3d4e5f6a7b8-12345"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ChunkID(tc.docID, tc.ordinal)
			if got != tc.want {
				t.Fatalf("ChunkID(%q, %d) = %q, want %q", tc.docID, tc.ordinal, got, tc.want)
			}
		})
	}
}

func TestChunkID_SortsInOrder(t *testing.T) {
	prev := ChunkID("doc", 0)
	for i := 1; i < 100; i++ {
		cur := ChunkID("doc", i)
		if cur <= prev {
			t.Fatalf("ChunkID(%d) = %q does not sort after %q", i, cur, prev)
		}
		prev = cur
	}
}

func TestNewDocumentID(t *testing.T) {
	id, err := NewDocumentID()
	if err != nil {
		t.Fatalf("NewDocumentID returned error: %v", err)
	}
	if len(id) != 16 {
		t.Fatalf("NewDocumentID() = %q, want 16 chars", id)
	}
	for _, r := range id {
		if !strings.ContainsRune(idAlphabet, r) {
			t.Fatalf("NewDocumentID() = %q contains %q outside alphabet", id, r)
		}
	}
}
