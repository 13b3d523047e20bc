package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

const (
	defaultEncoding  = "cl100k_base"
	defaultMaxTokens = 500
)

// TokenCounter reports how many tokens a piece of text costs against
// the chunk budget.
type TokenCounter func(text string) int

// Chunker splits extracted text into token-budgeted pieces. Narrative
// text is cut at sentence boundaries; tabular text is cut at row
// boundaries with the header repeated in every piece.
type Chunker struct {
	count     TokenCounter
	maxTokens int
}

// NewChunker builds a chunker backed by the default BPE tokenizer.
func NewChunker(maxTokens int) (*Chunker, error) {
	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return nil, err
	}
	counter := func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
	return NewChunkerWithCounter(counter, maxTokens), nil
}

// NewChunkerWithCounter builds a chunker over a caller-supplied token
// counter. Tests use this to stay independent of tokenizer data files.
func NewChunkerWithCounter(count TokenCounter, maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Chunker{count: count, maxTokens: maxTokens}
}

// Split cuts narrative text into chunks of consecutive sentences that
// fit the token budget. A single sentence over the budget becomes its
// own chunk rather than being cut mid-sentence.
func (c *Chunker) Split(text string) []string {
	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	chunkStart := -1
	chunkEnd := -1

	flush := func() {
		if chunkStart < 0 || chunkEnd <= chunkStart {
			return
		}
		var b strings.Builder
		for i := chunkStart; i < chunkEnd; i++ {
			if i > chunkStart {
				b.WriteString(" ")
			}
			b.WriteString(sentences[i])
		}
		chunks = append(chunks, strings.TrimSpace(b.String()))
		chunkStart = -1
		chunkEnd = -1
	}

	for i := range sentences {
		if chunkStart < 0 {
			chunkStart = i
			chunkEnd = i + 1
			continue
		}

		var test strings.Builder
		for j := chunkStart; j <= i; j++ {
			if j > chunkStart {
				test.WriteString(" ")
			}
			test.WriteString(sentences[j])
		}

		if c.count(test.String()) <= c.maxTokens {
			chunkEnd = i + 1
		} else {
			flush()
			chunkStart = i
			chunkEnd = i + 1
		}
	}

	flush()
	return chunks
}

// RowGroup is a run of consecutive data rows packed into one chunk.
// FirstRow is the zero-based index of the group's first data row.
type RowGroup struct {
	Text     string
	FirstRow int
}

// SplitRows packs data rows into token-budgeted groups. When header is
// non-empty it is prepended to every group so each chunk stays
// interpretable on its own.
func (c *Chunker) SplitRows(rows []string, header string) []RowGroup {
	if len(rows) == 0 {
		return nil
	}

	var groups []RowGroup
	var currentRows []string
	currentTokens := 0
	currentFirst := 0

	flush := func() {
		if len(currentRows) == 0 {
			return
		}
		var b strings.Builder
		if header != "" {
			b.WriteString(header)
			b.WriteString("\n")
		}
		b.WriteString(strings.Join(currentRows, "\n"))
		groups = append(groups, RowGroup{Text: b.String(), FirstRow: currentFirst})
		currentRows = nil
		currentTokens = 0
	}

	for i, row := range rows {
		rowTokens := c.count(row) + 1

		if currentTokens+rowTokens > c.maxTokens && len(currentRows) > 0 {
			flush()
		}
		if len(currentRows) == 0 {
			currentFirst = i
		}
		currentRows = append(currentRows, row)
		currentTokens += rowTokens
	}

	flush()
	return groups
}

// DetectCSVHeader guesses whether the first row of a CSV is a header.
// It compares how numeric the first row is against a sample of the
// following rows and checks for common header field names.
func DetectCSVHeader(rows []string) bool {
	if len(rows) < 2 {
		return false
	}

	firstRow := rows[0]
	firstFields := strings.Split(firstRow, ",")

	firstRowNumericCount := 0
	for _, field := range firstFields {
		field = strings.TrimSpace(field)
		field = strings.Trim(field, "\"")
		if _, err := strconv.ParseFloat(field, 64); err == nil {
			firstRowNumericCount++
		}
	}

	sampleSize := min(5, len(rows)-1)
	dataNumericTotal := 0
	dataFieldTotal := 0

	for i := 1; i <= sampleSize; i++ {
		fields := strings.SplitSeq(rows[i], ",")
		for field := range fields {
			field = strings.TrimSpace(field)
			field = strings.Trim(field, "\"")
			dataFieldTotal++
			if _, err := strconv.ParseFloat(field, 64); err == nil {
				dataNumericTotal++
			}
		}
	}

	firstRowNumericRatio := float64(firstRowNumericCount) / float64(len(firstFields))
	dataNumericRatio := float64(0)
	if dataFieldTotal > 0 {
		dataNumericRatio = float64(dataNumericTotal) / float64(dataFieldTotal)
	}

	if firstRowNumericRatio < 0.3 && dataNumericRatio > firstRowNumericRatio+0.2 {
		return true
	}

	headerPatterns := []string{"id", "name", "date", "time", "type", "status",
		"description", "value", "amount", "count", "total", "email", "phone"}
	headerMatchCount := 0
	for _, field := range firstFields {
		fieldLower := strings.ToLower(strings.TrimSpace(strings.Trim(field, "\"")))
		for _, pattern := range headerPatterns {
			if strings.Contains(fieldLower, pattern) {
				headerMatchCount++
				break
			}
		}
	}

	if headerMatchCount >= 2 {
		return true
	}

	if firstRowNumericCount == 0 && dataNumericTotal > 0 {
		return true
	}

	return true
}

func splitIntoSentences(text string) []string {
	lines := strings.Split(text, "\n")
	var sentences []string
	var currentSentence strings.Builder

	tableDelimRe := regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)+\|?\s*$`)

	isTableRow := func(line string) bool {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return false
		}
		return strings.Contains(trimmed, "|")
	}

	inTable := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inTable && isTableRow(line) && i+1 < len(lines) && tableDelimRe.MatchString(strings.TrimSpace(lines[i+1])) {
			if currentSentence.Len() > 0 {
				sentences = append(sentences, strings.TrimSpace(currentSentence.String()))
				currentSentence.Reset()
			}

			inTable = true
			currentSentence.WriteString(line)
			continue
		}

		if !inTable && isTableRow(line) {
			if currentSentence.Len() > 0 {
				sentences = append(sentences, strings.TrimSpace(currentSentence.String()))
				currentSentence.Reset()
			}

			sentences = append(sentences, trimmed)
			continue
		}

		if inTable {
			if trimmed == "" || !isTableRow(line) {
				inTable = false
				sentences = append(sentences, strings.TrimSpace(currentSentence.String()))
				currentSentence.Reset()

				if trimmed != "" {
					lineSentences := splitLineIntoSentences(trimmed)
					for _, sentence := range lineSentences {
						if currentSentence.Len() > 0 {
							currentSentence.WriteString(" ")
						}
						currentSentence.WriteString(sentence)

						if strings.HasSuffix(strings.TrimSpace(sentence), ".") ||
							strings.HasSuffix(strings.TrimSpace(sentence), "!") ||
							strings.HasSuffix(strings.TrimSpace(sentence), "?") {
							sentences = append(sentences, strings.TrimSpace(currentSentence.String()))
							currentSentence.Reset()
						}
					}
				}
			} else {
				currentSentence.WriteString("\n")
				currentSentence.WriteString(line)
			}
			continue
		}

		if trimmed == "" {
			if currentSentence.Len() > 0 {
				sentences = append(sentences, strings.TrimSpace(currentSentence.String()))
				currentSentence.Reset()
			}
		} else {
			lineSentences := splitLineIntoSentences(trimmed)
			for _, sentence := range lineSentences {
				if currentSentence.Len() > 0 {
					currentSentence.WriteString(" ")
				}
				currentSentence.WriteString(sentence)

				if strings.HasSuffix(strings.TrimSpace(sentence), ".") ||
					strings.HasSuffix(strings.TrimSpace(sentence), "!") ||
					strings.HasSuffix(strings.TrimSpace(sentence), "?") {
					sentences = append(sentences, strings.TrimSpace(currentSentence.String()))
					currentSentence.Reset()
				}
			}
		}
	}

	if currentSentence.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(currentSentence.String()))
	}

	var result []string
	for _, sentence := range sentences {
		if strings.TrimSpace(sentence) != "" {
			result = append(result, sentence)
		}
	}

	return result
}

func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(line); i++ {
		current.WriteByte(line[i])

		if line[i] == '.' || line[i] == '!' || line[i] == '?' {
			isNumericListing := false

			if i > 0 && unicode.IsDigit(rune(line[i-1])) {
				if i+1 < len(line) && line[i+1] == ' ' {
					isNumericListing = true
				}
			}

			if isNumericListing {
				continue
			}
			j := i + 1
			for j < len(line) && (line[j] == '.' || line[j] == '!' || line[j] == '?') {
				current.WriteByte(line[j])
				j++
			}

			for j < len(line) && (line[j] == '"' || line[j] == '\'' || line[j] == ')' ||
				line[j] == ']' || line[j] == '}') {
				current.WriteByte(line[j])
				j++
			}

			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
			i = j - 1
		}
	}

	remaining := strings.TrimSpace(current.String())
	if remaining != "" {
		sentences = append(sentences, remaining)
	}

	return sentences
}
