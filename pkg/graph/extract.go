package graph

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/ctxeco/backend/pkg/ai"
)

// Entity types assigned by the extractors. The pattern extractor only
// emits the first three; the AI extractor may use the full set.
const (
	EntityOrganization = "ORGANIZATION"
	EntityPerson       = "PERSON"
	EntityConcept      = "CONCEPT"
	EntityLocation     = "LOCATION"
	EntityProduct      = "PRODUCT"
	EntityEvent        = "EVENT"
)

var entityTypes = []string{
	EntityOrganization, EntityPerson, EntityConcept,
	EntityLocation, EntityProduct, EntityEvent,
}

// Mention is one entity occurrence in a piece of text. Start and End
// are byte offsets into the text that was scanned.
type Mention struct {
	Label string
	Type  string
	Start int
	End   int
}

// EntityExtractor recognizes named entities in text. Implementations
// must be safe for concurrent use and deterministic in mention order
// (order of appearance).
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text string) ([]Mention, error)
}

// NewExtractorFromEnv selects the extractor once at startup. The AI
// extractor is opt-in via GRAPH_EXTRACTOR=ai and needs a configured
// client; everything else gets the deterministic pattern extractor.
// The choice never changes mid-document.
func NewExtractorFromEnv(client ai.Client) EntityExtractor {
	if os.Getenv("GRAPH_EXTRACTOR") == "ai" && client != nil {
		return &AIExtractor{Client: client}
	}
	return &PatternExtractor{}
}

// PatternExtractor recognizes entities from surface patterns alone:
// runs of TitleCase words and all-caps acronyms, with a stopword guard
// for sentence openers and other capitalized noise. It trades recall
// for determinism and zero external calls.
type PatternExtractor struct{}

// sentence-leading and calendar words that capitalize without naming
// anything
var entityStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "its": true, "he": true,
	"she": true, "they": true, "we": true, "i": true, "you": true,
	"who": true, "what": true, "when": true, "where": true, "why": true,
	"how": true, "if": true, "then": true, "and": true, "or": true,
	"but": true, "not": true, "no": true, "yes": true, "all": true,
	"also": true, "however": true, "therefore": true, "meanwhile": true,
	"moreover": true, "furthermore": true, "finally": true, "first": true,
	"second": true, "third": true, "next": true, "last": true, "new": true,
	"after": true, "before": true, "during": true, "while": true,
	"since": true, "until": true, "please": true, "dear": true,
	"regards": true, "hello": true, "thanks": true, "today": true,
	"yesterday": true, "tomorrow": true, "here": true, "there": true,
	"now": true, "note": true, "see": true, "section": true,
	"chapter": true, "figure": true, "table": true, "page": true,
	"appendix": true, "summary": true, "overview": true, "subject": true,
	"from": true, "sent": true, "date": true, "draft": true, "final": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// suffixes that mark a TitleCase phrase as an organization name
var orgSuffixes = map[string]bool{
	"inc": true, "corp": true, "corporation": true, "llc": true,
	"ltd": true, "gmbh": true, "ag": true, "co": true, "company": true,
	"labs": true, "systems": true, "technologies": true, "solutions": true,
	"robotics": true, "group": true, "institute": true, "agency": true,
	"university": true, "foundation": true, "partners": true,
	"holdings": true, "industries": true,
}

type scannedWord struct {
	text          string
	start         int
	end           int
	sentenceStart bool
}

// ExtractEntities scans the text for acronyms and TitleCase phrases and
// returns them in order of appearance.
func (p *PatternExtractor) ExtractEntities(ctx context.Context, text string) ([]Mention, error) {
	words := scanWords(text)
	mentions := make([]Mention, 0, len(words)/4)

	for i := 0; i < len(words); {
		w := words[i]
		if isAcronymWord(w.text) {
			if !entityStopwords[strings.ToLower(w.text)] {
				mentions = append(mentions, Mention{
					Label: w.text,
					Type:  EntityOrganization,
					Start: w.start,
					End:   w.end,
				})
			}
			i++
			continue
		}
		if !isTitleWord(w.text) {
			i++
			continue
		}

		j := i
		for j < len(words) && isTitleWord(words[j].text) {
			j++
		}
		k := i
		for k < j && entityStopwords[strings.ToLower(words[k].text)] {
			k++
		}
		if k < j {
			// A lone capitalized word opening a sentence is usually just
			// the sentence opener, unless its casing says otherwise.
			opener := j-k == 1 && words[k].sentenceStart && !hasInnerUpper(words[k].text)
			if !opener {
				first, last := words[k], words[j-1]
				mentions = append(mentions, Mention{
					Label: text[first.start:last.end],
					Type:  phraseType(words[k:j]),
					Start: first.start,
					End:   last.end,
				})
			}
		}
		i = j
	}

	return mentions, nil
}

func scanWords(text string) []scannedWord {
	var words []scannedWord

	atSentenceStart := true
	wordStart := -1
	flush := func(end int) {
		if wordStart < 0 {
			return
		}
		w := text[wordStart:end]
		// drop possessive endings so "Acme's" and "Acme" agree
		if strings.HasSuffix(w, "'s") {
			w = w[:len(w)-2]
		}
		w = strings.TrimSuffix(w, "'")
		if w != "" {
			words = append(words, scannedWord{
				text:          w,
				start:         wordStart,
				end:           wordStart + len(w),
				sentenceStart: atSentenceStart,
			})
			atSentenceStart = false
		}
		wordStart = -1
	}

	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-' || r == '&' {
			if wordStart < 0 {
				wordStart = i
			}
			continue
		}
		flush(i)
		switch r {
		case '.', '!', '?', '\n', ';', ':':
			atSentenceStart = true
		}
	}
	flush(len(text))

	return words
}

// isTitleWord reports a leading uppercase rune followed by at least one
// lowercase one, so "Acme" and "GitHub" qualify but "NIST" does not.
func isTitleWord(s string) bool {
	first := true
	hasLower := false
	for _, r := range s {
		if first {
			if !unicode.IsUpper(r) {
				return false
			}
			first = false
			continue
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	return !first && hasLower
}

// isAcronymWord reports at least two letters, all uppercase.
func isAcronymWord(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}

func hasInnerUpper(s string) bool {
	first := true
	for _, r := range s {
		if first {
			first = false
			continue
		}
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func phraseType(words []scannedWord) string {
	last := strings.ToLower(words[len(words)-1].text)
	if orgSuffixes[last] {
		return EntityOrganization
	}
	if len(words) == 2 {
		return EntityPerson
	}
	return EntityConcept
}

// AIExtractor asks the chat model for entities as schema-constrained
// JSON. Malformed payloads are repaired downstream by the client; here
// the result is mapped onto Mentions with first-occurrence offsets.
type AIExtractor struct {
	Client ai.Client
}

const extractPrompt = `You are an entity extraction system for a document knowledge graph.

Instructions:
1. Identify every named entity in the provided text. Entity types: %s.
2. Use the entity's surface form from the text as the label, without surrounding punctuation.
3. Skip pronouns, generic nouns, and section headings.
4. Only return entities that actually appear in the text.`

type aiEntity struct {
	Label string `json:"label" jsonschema_description:"Entity name exactly as it appears in the text"`
	Type  string `json:"type" jsonschema_description:"One of the provided entity types"`
}

type aiExtraction struct {
	Entities []aiEntity `json:"entities" jsonschema_description:"Entities identified in the text"`
}

// ExtractEntities prompts the model and maps its entities onto the text.
// Labels the model hallucinated (not present in the text) keep zero
// offsets; the builder only cares about label and type.
func (a *AIExtractor) ExtractEntities(ctx context.Context, text string) ([]Mention, error) {
	var res aiExtraction
	err := a.Client.GenerateCompletionWithFormat(
		ctx,
		"extract_entities",
		"Extract named entities from a document chunk.",
		text,
		&res,
		ai.WithSystemPrompts(fmt.Sprintf(extractPrompt, strings.Join(entityTypes, ", "))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to extract entities: %w", err)
	}

	known := make(map[string]bool, len(entityTypes))
	for _, t := range entityTypes {
		known[t] = true
	}

	mentions := make([]Mention, 0, len(res.Entities))
	for _, e := range res.Entities {
		label := strings.TrimSpace(e.Label)
		if label == "" {
			continue
		}
		typ := strings.ToUpper(strings.TrimSpace(e.Type))
		if !known[typ] {
			typ = EntityConcept
		}
		m := Mention{Label: label, Type: typ}
		if idx := strings.Index(text, label); idx >= 0 {
			m.Start = idx
			m.End = idx + len(label)
		}
		mentions = append(mentions, m)
	}
	return mentions, nil
}
