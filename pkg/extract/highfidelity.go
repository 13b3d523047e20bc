package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ctxeco/backend/pkg/common"
)

const (
	pdftotextBinary  = "pdftotext"
	pdftotextTimeout = 30 * time.Second
)

// HighFidelityEngine extracts layout-aware fragments from reference
// documents. PDFs go through the poppler pdftotext binary with page
// breaks preserved, so every fragment carries its page number. The
// .scidoc format is parsed directly as structured UTF-8 text.
//
// The engine is strict on purpose. Content it cannot decode cleanly is
// an error, which lets the router decide whether a degraded extraction
// is acceptable.
type HighFidelityEngine struct {
	chunker *Chunker

	probeOnce sync.Once
	binFound  bool
}

func NewHighFidelityEngine(chunker *Chunker) *HighFidelityEngine {
	return &HighFidelityEngine{chunker: chunker}
}

func (e *HighFidelityEngine) Name() string { return "high_fidelity" }

// Available reports whether the pdftotext binary is on PATH. The probe
// runs once per process.
func (e *HighFidelityEngine) Available() bool {
	e.probeOnce.Do(func() {
		_, err := exec.LookPath(pdftotextBinary)
		e.binFound = err == nil
	})
	return e.binFound
}

func (e *HighFidelityEngine) Extract(ctx context.Context, filename string, data []byte) ([]Fragment, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return e.extractPDF(ctx, data)
	case ".scidoc":
		return e.extractSciDoc(data)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %s for %s engine",
			common.ErrExtraction, filepath.Ext(filename), e.Name())
	}
}

func (e *HighFidelityEngine) extractPDF(ctx context.Context, data []byte) ([]Fragment, error) {
	if !e.Available() {
		return nil, fmt.Errorf("%w: %s not found in PATH", common.ErrDependencyUnavailable, pdftotextBinary)
	}

	tmpDir, err := os.MkdirTemp("", "pdf-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write temp pdf: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pdftotextTimeout)
	defer cancel()

	// Page breaks are kept (no -nopgbrk) so the output can be split
	// back into pages on the form feed character.
	txtPath := filepath.Join(tmpDir, "output.txt")
	cmd := exec.CommandContext(ctx, pdftotextBinary,
		"-enc", "UTF-8",
		"-eol", "unix",
		"-q",
		pdfPath, txtPath)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8")

	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%w: pdftotext failed: %v (output: %s)",
			common.ErrExtraction, err, string(out))
	}

	raw, err := os.ReadFile(txtPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdftotext output: %w", err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: pdftotext produced invalid UTF-8", common.ErrExtraction)
	}

	var fragments []Fragment
	for i, pageText := range strings.Split(string(raw), "\f") {
		page := i + 1
		fragments = append(fragments, e.segmentPage(pageText, page)...)
	}
	return fragments, nil
}

var multiNewlineRe = regexp.MustCompile(`\n{3,}`)

// segmentPage splits one page of text into title, table and narrative
// fragments. Blocks are separated by blank lines; a block whose lines
// mostly fall into aligned columns is kept intact as a table.
func (e *HighFidelityEngine) segmentPage(text string, page int) []Fragment {
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")

	var fragments []Fragment
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		switch {
		case isColumnarBlock(block):
			fragments = append(fragments, Fragment{
				Text:        block,
				ElementType: ElementTable,
				Page:        intPtr(page),
			})
		case isTitleLine(block):
			fragments = append(fragments, Fragment{
				Text:        block,
				ElementType: ElementTitle,
				Page:        intPtr(page),
			})
		default:
			for _, piece := range e.chunker.Split(block) {
				fragments = append(fragments, Fragment{
					Text:        piece,
					ElementType: ElementText,
					Page:        intPtr(page),
				})
			}
		}
	}
	return fragments
}

var columnGapRe = regexp.MustCompile(`\S(\t| {2,})\S`)

// isColumnarBlock reports whether a block looks like a text-rendered
// table. At least two lines and most of them split into columns on
// tabs or runs of spaces.
func isColumnarBlock(block string) bool {
	lines := strings.Split(block, "\n")
	if len(lines) < 2 {
		return false
	}
	columnar := 0
	for _, line := range lines {
		if len(columnGapRe.FindAllStringIndex(line, -1)) >= 1 {
			columnar++
		}
	}
	return columnar*2 >= len(lines)
}

// isTitleLine reports whether a block is a single short heading line
// without terminal punctuation.
func isTitleLine(block string) bool {
	if strings.Contains(block, "\n") {
		return false
	}
	trimmed := strings.TrimSpace(block)
	if trimmed == "" || len(strings.Fields(trimmed)) > 12 {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?', ',', ';', ':':
		return false
	}
	return true
}

// extractSciDoc parses the structured scientific document format.
// Lines starting with "# " open a titled section, pipe-delimited
// blocks are tables, everything else is narrative text. The format is
// UTF-8 only.
func (e *HighFidelityEngine) extractSciDoc(data []byte) ([]Fragment, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: scidoc content is not valid UTF-8", common.ErrExtraction)
	}

	var fragments []Fragment
	for _, block := range strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		switch {
		case strings.HasPrefix(block, "# "):
			lines := strings.SplitN(block, "\n", 2)
			fragments = append(fragments, Fragment{
				Text:        strings.TrimSpace(strings.TrimPrefix(lines[0], "# ")),
				ElementType: ElementTitle,
			})
			if len(lines) == 2 {
				for _, piece := range e.chunker.Split(strings.TrimSpace(lines[1])) {
					fragments = append(fragments, Fragment{Text: piece, ElementType: ElementText})
				}
			}
		case isPipeTable(block):
			fragments = append(fragments, Fragment{Text: block, ElementType: ElementTable})
		default:
			for _, piece := range e.chunker.Split(block) {
				fragments = append(fragments, Fragment{Text: piece, ElementType: ElementText})
			}
		}
	}
	return fragments, nil
}

func isPipeTable(block string) bool {
	lines := strings.Split(block, "\n")
	if len(lines) < 2 {
		return false
	}
	for _, line := range lines {
		if !strings.Contains(line, "|") {
			return false
		}
	}
	return true
}
