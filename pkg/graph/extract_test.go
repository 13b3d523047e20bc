package graph

import (
	"context"
	"reflect"
	"testing"
)

func TestPatternExtractor(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Mention
	}{
		{
			name: "organization suffix",
			text: "Acme Robotics Inc announced a partnership.",
			want: []Mention{
				{Label: "Acme Robotics Inc", Type: EntityOrganization, Start: 0, End: 17},
			},
		},
		{
			name: "two titlecase words become a person",
			text: "We met Maria Schmidt in the lab.",
			want: []Mention{
				{Label: "Maria Schmidt", Type: EntityPerson, Start: 7, End: 20},
			},
		},
		{
			name: "acronym",
			text: "The audit follows NIST guidance.",
			want: []Mention{
				{Label: "NIST", Type: EntityOrganization, Start: 18, End: 22},
			},
		},
		{
			name: "sentence opener is skipped but phrases survive",
			text: "Robots are deployed. Factory Automation Summit begins.",
			want: []Mention{
				{Label: "Factory Automation Summit", Type: EntityConcept, Start: 21, End: 46},
			},
		},
		{
			name: "inner uppercase keeps a lone opener",
			text: "GitHub hosts the code.",
			want: []Mention{
				{Label: "GitHub", Type: EntityConcept, Start: 0, End: 6},
			},
		},
		{
			name: "possessive is stripped",
			text: "The report from Acme's lab cites ISO requirements.",
			want: []Mention{
				{Label: "Acme", Type: EntityConcept, Start: 16, End: 20},
				{Label: "ISO", Type: EntityOrganization, Start: 33, End: 36},
			},
		},
		{
			name: "stopword acronym is ignored",
			text: "IT staff upgraded the servers.",
			want: []Mention{},
		},
		{
			name: "leading stopword is stripped from a phrase",
			text: "See the Munich Safety Summit agenda.",
			want: []Mention{
				{Label: "Munich Safety Summit", Type: EntityConcept, Start: 8, End: 28},
			},
		},
		{
			name: "empty text",
			text: "",
			want: []Mention{},
		},
	}

	p := &PatternExtractor{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ExtractEntities(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("ExtractEntities() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ExtractEntities() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormKey(t *testing.T) {
	tests := []struct {
		name  string
		label string
		typ   string
		want  string
	}{
		{name: "lowercases and trims", label: "  Acme Robotics ", typ: EntityOrganization, want: "acme robotics|ORGANIZATION"},
		{name: "type distinguishes", label: "Apple", typ: EntityProduct, want: "apple|PRODUCT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormKey(tt.label, tt.typ); got != tt.want {
				t.Fatalf("NormKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
