package ai

import (
	"reflect"
	"testing"
)

type extractionPayload struct {
	Entities []extractedEntity `json:"entities"`
}

type extractedEntity struct {
	Label string `json:"label"`
	Type  string `json:"type"`
}

func TestUnmarshalFlexible(t *testing.T) {
	want := extractionPayload{Entities: []extractedEntity{
		{Label: "Acme Robotics", Type: "ORGANIZATION"},
		{Label: "ISO 10218", Type: "CONCEPT"},
	}}

	cases := []struct {
		name  string
		input string
	}{
		{
			name:  "well formed",
			input: `{"entities":[{"label":"Acme Robotics","type":"ORGANIZATION"},{"label":"ISO 10218","type":"CONCEPT"}]}`,
		},
		{
			name:  "double encoded",
			input: `"{\"entities\":[{\"label\":\"Acme Robotics\",\"type\":\"ORGANIZATION\"},{\"label\":\"ISO 10218\",\"type\":\"CONCEPT\"}]}"`,
		},
		{
			name:  "unquoted keys repaired",
			input: `{entities: [{label: "Acme Robotics", type: "ORGANIZATION"}, {label: "ISO 10218", type: "CONCEPT"}]}`,
		},
		{
			name:  "trailing comma repaired",
			input: `{"entities":[{"label":"Acme Robotics","type":"ORGANIZATION"},{"label":"ISO 10218","type":"CONCEPT"},]}`,
		},
		{
			name:  "duplicate leading brace",
			input: `{{"entities":[{"label":"Acme Robotics","type":"ORGANIZATION"},{"label":"ISO 10218","type":"CONCEPT"}]}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got extractionPayload
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible(%q) error: %v", tc.input, err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("UnmarshalFlexible(%q) = %+v, want %+v", tc.input, got, want)
			}
		})
	}
}

func TestUnmarshalFlexibleUnrepairable(t *testing.T) {
	var got extractionPayload
	if err := UnmarshalFlexible("entities are: none", &got); err == nil {
		t.Fatal("expected error for non-JSON input")
	}
}

func TestGenerateSchemaFromPointer(t *testing.T) {
	schema := GenerateSchema(&extractionPayload{})
	if schema == nil {
		t.Fatal("expected a schema")
	}
	// The reflector must reach through the pointer to the struct.
	same := GenerateSchema(extractionPayload{})
	if reflect.TypeOf(schema) != reflect.TypeOf(same) {
		t.Fatalf("pointer and value schemas differ: %T vs %T", schema, same)
	}
}
