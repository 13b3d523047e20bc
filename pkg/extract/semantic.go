package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
	"golang.org/x/net/html"

	"github.com/ctxeco/backend/pkg/logger"
)

const officeXMLMax = 50 << 20

// SemanticEngine extracts narrative fragments from workplace document
// formats. It decodes permissively and never fails on content it can
// read as text, which makes it the safe fallback when the high
// fidelity engine cannot handle a reference document.
type SemanticEngine struct {
	chunker *Chunker
}

func NewSemanticEngine(chunker *Chunker) *SemanticEngine {
	return &SemanticEngine{chunker: chunker}
}

func (e *SemanticEngine) Name() string { return "semantic" }

func (e *SemanticEngine) Available() bool { return true }

func (e *SemanticEngine) Extract(ctx context.Context, filename string, data []byte) ([]Fragment, error) {
	var text string

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm":
		text = htmlText(data, filename)
	case ".docx":
		parsed, err := docxText(data)
		if err != nil {
			logger.Warn("docx parse failed, falling back to plain text decode",
				"filename", filename, "error", err)
			text = permissiveText(data)
		} else {
			text = parsed
		}
	case ".pptx":
		parsed, err := pptxText(data)
		if err != nil {
			logger.Warn("pptx parse failed, falling back to plain text decode",
				"filename", filename, "error", err)
			text = permissiveText(data)
		} else {
			text = parsed
		}
	default:
		text = permissiveText(data)
	}

	var fragments []Fragment
	for _, piece := range e.chunker.Split(text) {
		fragments = append(fragments, Fragment{
			Text:        piece,
			ElementType: ElementNarrative,
		})
	}
	return fragments, nil
}

// htmlText pulls the readable article content out of an HTML page.
// When readability cannot identify an article the whole document is
// stripped down to its text nodes instead.
func htmlText(data []byte, filename string) string {
	base, _ := url.Parse("file:///" + filepath.ToSlash(filename))
	article, err := readability.FromReader(bytes.NewReader(data), base)
	if err == nil {
		var b strings.Builder
		if err := article.RenderText(&b); err == nil && strings.TrimSpace(b.String()) != "" {
			return b.String()
		}
	}
	return stripHTMLTags(data)
}

func stripHTMLTags(data []byte) string {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return permissiveText(data)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return b.String()
}

// docxText walks word/document.xml and rebuilds the visible text.
// Tracked deletions are skipped, table cells turn into tab-separated
// lines.
func docxText(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("document.xml not found in docx")
	}
	if docFile.UncompressedSize64 > officeXMLMax {
		return "", fmt.Errorf("document.xml too large: %d bytes", docFile.UncompressedSize64)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(io.LimitReader(rc, int64(officeXMLMax)))

	var sb strings.Builder
	type state struct {
		inText    bool
		delDepth  int
		insideTbl bool
		cellIdx   int
	}
	st := state{}

	writeNewline := func() {
		if sb.Len() == 0 {
			return
		}
		if !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "del":
				st.delDepth++
			case "t":
				st.inText = true
			case "tab":
				if st.delDepth == 0 {
					sb.WriteRune('\t')
				}
			case "br", "cr":
				if st.delDepth == 0 {
					sb.WriteByte('\n')
				}
			case "noBreakHyphen":
				if st.delDepth == 0 {
					sb.WriteRune('-')
				}
			case "softHyphen":
			case "tbl":
				st.insideTbl = true
				st.cellIdx = 0
				writeNewline()
			case "tr":
				st.cellIdx = 0
			case "tc":
				if st.insideTbl && st.delDepth == 0 {
					if st.cellIdx > 0 {
						sb.WriteRune('\t')
					}
					st.cellIdx++
				}
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				st.inText = false
			case "p":
				if st.delDepth == 0 {
					sb.WriteByte('\n')
				}
			case "tr":
				if st.delDepth == 0 {
					sb.WriteByte('\n')
				}
			case "tbl":
				st.insideTbl = false
				if st.delDepth == 0 {
					sb.WriteByte('\n')
				}
			case "del":
				if st.delDepth > 0 {
					st.delDepth--
				}
			}

		case xml.CharData:
			if st.delDepth != 0 || !st.inText {
				continue
			}
			sb.WriteString(string([]byte(t)))
		}
	}

	text := strings.TrimSpace(sb.String())
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")

	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	return text, nil
}

var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// pptxText concatenates the text runs of every slide in deck order.
func pptxText(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open pptx: %w", err)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideNameRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num := 0
		fmt.Sscanf(m[1], "%d", &num)
		slides = append(slides, slide{num: num, file: f})
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("no slides found in pptx")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var sb strings.Builder
	for _, s := range slides {
		if s.file.UncompressedSize64 > officeXMLMax {
			return "", fmt.Errorf("slide %d too large: %d bytes", s.num, s.file.UncompressedSize64)
		}
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open slide %d: %w", s.num, err)
		}

		dec := xml.NewDecoder(io.LimitReader(rc, int64(officeXMLMax)))
		inText := false
		for {
			tok, err := dec.Token()
			if err == io.EOF {
				break
			}
			if err != nil {
				rc.Close()
				return "", fmt.Errorf("failed to parse slide %d: %w", s.num, err)
			}

			switch t := tok.(type) {
			case xml.StartElement:
				if t.Name.Local == "t" {
					inText = true
				}
			case xml.EndElement:
				switch t.Name.Local {
				case "t":
					inText = false
				case "p":
					sb.WriteByte('\n')
				}
			case xml.CharData:
				if inText {
					sb.WriteString(string([]byte(t)))
				}
			}
		}
		rc.Close()
		sb.WriteString("\n\n")
	}

	text := strings.TrimSpace(sb.String())
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return text, nil
}

var controlCharRe = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// permissiveText decodes arbitrary bytes as best-effort UTF-8 text.
// Invalid sequences and control characters are dropped rather than
// reported.
func permissiveText(data []byte) string {
	text := strings.ToValidUTF8(string(data), "")
	text = controlCharRe.ReplaceAllString(text, "")
	return text
}
