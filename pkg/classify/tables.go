package classify

import "github.com/ctxeco/backend/pkg/common"

// KeywordRule tags a result when any of its keywords appears in the
// lowercased filename. Rules are evaluated in declaration order so the
// output is deterministic.
type KeywordRule struct {
	Tag      string
	Keywords []string
}

// Config holds every lookup table the classifier consults. It is built
// once at startup and injected, never mutated, so alternate tables can
// be swapped in for testing or per-deployment tuning.
type Config struct {
	// ReferenceExtensions are permanent-reference formats that map
	// straight to ImmutableTruth.
	ReferenceExtensions map[string]bool

	// NarrativeExtensions are collaborative formats that default to
	// EphemeralStream unless a truth keyword escalates them.
	NarrativeExtensions map[string]bool

	// OperationalExtensions are structured machine-data formats that
	// map straight to OperationalPulse.
	OperationalExtensions map[string]bool

	// TruthKeywords escalate a narrative-format document to
	// ImmutableTruth when any of them appears in the filename.
	TruthKeywords []string

	// HighSensitivity and ModerateSensitivity trigger the respective
	// sensitivity levels; the first matching tier wins.
	HighSensitivity     []string
	ModerateSensitivity []string

	// Categories and Frameworks tag the document with data categories
	// and compliance frameworks. DefaultCategory applies when no
	// category rule matches.
	Categories      []KeywordRule
	Frameworks      []KeywordRule
	DefaultCategory string

	// DecayRates assigns a relevance decay rate per class.
	DecayRates map[common.DataClass]float64
}

// DefaultConfig returns the production classification tables.
func DefaultConfig() Config {
	return Config{
		ReferenceExtensions: map[string]bool{
			".pdf":    true,
			".scidoc": true,
		},
		NarrativeExtensions: map[string]bool{
			".pptx": true,
			".docx": true,
			".doc":  true,
			".eml":  true,
			".msg":  true,
			".html": true,
			".md":   true,
			".txt":  true,
		},
		OperationalExtensions: map[string]bool{
			".csv":     true,
			".parquet": true,
			".json":    true,
			".log":     true,
			".jsonl":   true,
			".xlsx":    true,
		},
		TruthKeywords: []string{
			"manual", "spec", "specification", "standard", "iso", "safety",
			"protocol", "procedure", "guideline", "regulation", "compliance",
			"datasheet", "technical", "engineering", "reference", "nist",
			"fedramp", "stig", "cve", "policy",
		},
		HighSensitivity: []string{
			"secret", "credential", "password", "ssn", "pii", "phi", "cui",
		},
		ModerateSensitivity: []string{
			"proprietary", "internal", "confidential", "draft",
		},
		Categories: []KeywordRule{
			{Tag: "PII", Keywords: []string{"pii", "ssn"}},
			{Tag: "PHI", Keywords: []string{"phi", "hipaa"}},
			{Tag: "CUI", Keywords: []string{"cui"}},
			{Tag: "SAFETY", Keywords: []string{"safety"}},
			{Tag: "PROPRIETARY", Keywords: []string{"proprietary"}},
		},
		Frameworks: []KeywordRule{
			{Tag: "NIST AI RMF", Keywords: []string{"nist"}},
			{Tag: "FedRAMP", Keywords: []string{"fedramp"}},
			{Tag: "ISO 27001", Keywords: []string{"iso"}},
			{Tag: "HIPAA", Keywords: []string{"hipaa"}},
		},
		DefaultCategory: "INTERNAL",
		DecayRates: map[common.DataClass]float64{
			common.ImmutableTruth:   0.01,
			common.EphemeralStream:  0.50,
			common.OperationalPulse: 0.90,
		},
	}
}
