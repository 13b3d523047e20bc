package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ctxeco/backend/pkg/common"
)

func TestIsTitleLine(t *testing.T) {
	tests := []struct {
		name     string
		block    string
		expected bool
	}{
		{"short heading", "Safety Requirements", true},
		{"numbered heading", "3.2 Tolerances", true},
		{"sentence with period", "This is a sentence.", false},
		{"multi line", "Heading\nbody", false},
		{"too many words", strings.Repeat("word ", 13), false},
		{"empty", "", false},
		{"trailing colon", "Contents:", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTitleLine(tt.block); got != tt.expected {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestIsColumnarBlock(t *testing.T) {
	tests := []struct {
		name     string
		block    string
		expected bool
	}{
		{
			name:     "aligned columns",
			block:    "Part     Qty    Price\nBolt     40     0.12\nWasher   80     0.03",
			expected: true,
		},
		{
			name:     "tab separated",
			block:    "a\tb\tc\nd\te\tf",
			expected: true,
		},
		{
			name:     "prose paragraph",
			block:    "This is a normal paragraph\nwith wrapped lines of text\nand no columns anywhere.",
			expected: false,
		},
		{
			name:     "single line",
			block:    "one     two",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isColumnarBlock(tt.block); got != tt.expected {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestSegmentPage(t *testing.T) {
	e := NewHighFidelityEngine(NewChunkerWithCounter(wordCounter, 100))

	page := "Torque Specifications\n\n" +
		"Fastener   Torque   Unit\nM6         9.5      Nm\nM8         23       Nm\n\n" +
		"All values assume dry threads. Lubricated joints reduce the applied torque."

	fragments := e.segmentPage(page, 3)

	if len(fragments) != 3 {
		t.Fatalf("expected 3 fragments, got %d: %+v", len(fragments), fragments)
	}

	if fragments[0].ElementType != ElementTitle || fragments[0].Text != "Torque Specifications" {
		t.Fatalf("unexpected title fragment: %+v", fragments[0])
	}
	if fragments[1].ElementType != ElementTable || !strings.Contains(fragments[1].Text, "M6         9.5") {
		t.Fatalf("unexpected table fragment: %+v", fragments[1])
	}
	if fragments[2].ElementType != ElementText {
		t.Fatalf("unexpected text fragment: %+v", fragments[2])
	}

	for i, f := range fragments {
		if f.Page == nil || *f.Page != 3 {
			t.Fatalf("fragment %d missing page number: %+v", i, f)
		}
	}
}

func TestExtractSciDoc(t *testing.T) {
	e := NewHighFidelityEngine(NewChunkerWithCounter(wordCounter, 100))

	doc := "# Safety Margins\nThe margin shall exceed two.\n\n" +
		"limit | value\nshear | 1.5\n\n" +
		"Plain closing remarks follow here."

	fragments, err := e.extractSciDoc([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fragments) != 4 {
		t.Fatalf("expected 4 fragments, got %d: %+v", len(fragments), fragments)
	}
	if fragments[0].ElementType != ElementTitle || fragments[0].Text != "Safety Margins" {
		t.Fatalf("unexpected title: %+v", fragments[0])
	}
	if fragments[1].ElementType != ElementText {
		t.Fatalf("unexpected section body: %+v", fragments[1])
	}
	if fragments[2].ElementType != ElementTable {
		t.Fatalf("unexpected table: %+v", fragments[2])
	}
	if fragments[3].ElementType != ElementText {
		t.Fatalf("unexpected closing text: %+v", fragments[3])
	}
}

func TestExtractSciDocRejectsBinary(t *testing.T) {
	e := NewHighFidelityEngine(NewChunkerWithCounter(wordCounter, 100))

	_, err := e.extractSciDoc([]byte{0xff, 0xfe, 0x00, 0x01})
	if err == nil {
		t.Fatal("expected error for binary content")
	}
	if !errors.Is(err, common.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestHighFidelityRejectsUnknownExtension(t *testing.T) {
	e := NewHighFidelityEngine(NewChunkerWithCounter(wordCounter, 100))

	_, err := e.Extract(context.Background(), "notes.txt", []byte("text"))
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if !errors.Is(err, common.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}
