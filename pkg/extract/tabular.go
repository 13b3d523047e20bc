package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ctxeco/backend/pkg/common"
)

// TabularEngine extracts row-oriented fragments from operational data
// formats. Rows are packed into token-budgeted groups with the header
// repeated per group; each fragment records the zero-based index of
// its first data row.
type TabularEngine struct {
	chunker *Chunker
}

func NewTabularEngine(chunker *Chunker) *TabularEngine {
	return &TabularEngine{chunker: chunker}
}

func (e *TabularEngine) Name() string { return "tabular" }

func (e *TabularEngine) Available() bool { return true }

func (e *TabularEngine) Extract(ctx context.Context, filename string, data []byte) ([]Fragment, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err := normalizeCSV(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrExtraction, err)
		}
		return e.fragmentRows(rows, DetectCSVHeader(rows)), nil
	case ".xlsx":
		return e.extractXLSX(data)
	case ".json":
		rows, err := jsonRows(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrExtraction, err)
		}
		return e.fragmentRows(rows, false), nil
	case ".parquet":
		return nil, fmt.Errorf("%w: parquet decoding requires an external reader", common.ErrExtraction)
	default:
		// .jsonl, .log and anything forced into the operational class
		// are read line-wise.
		return e.fragmentRows(textLines(data), false), nil
	}
}

// fragmentRows packs data rows into groups and stamps each fragment
// with the index of its first row.
func (e *TabularEngine) fragmentRows(rows []string, hasHeader bool) []Fragment {
	var header string
	if hasHeader && len(rows) > 1 {
		header = rows[0]
		rows = rows[1:]
	}

	var fragments []Fragment
	for _, group := range e.chunker.SplitRows(rows, header) {
		fragments = append(fragments, Fragment{
			Text:        group.Text,
			ElementType: ElementStructuredRow,
			RowIndex:    intPtr(group.FirstRow),
		})
	}
	return fragments
}

// normalizeCSV re-reads CSV content through encoding/csv and emits one
// clean comma-separated line per non-empty record, re-quoting fields
// that contain separators.
func normalizeCSV(content []byte) ([]string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		isEmpty := true
		for _, field := range record {
			if strings.TrimSpace(field) != "" {
				isEmpty = false
				break
			}
		}
		if isEmpty {
			continue
		}

		var line strings.Builder
		for i, field := range record {
			if i > 0 {
				line.WriteByte(',')
			}
			if strings.ContainsAny(field, ",\n\"") {
				line.WriteString(quoteCSVField(field))
			} else {
				line.WriteString(field)
			}
		}
		rows = append(rows, line.String())
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty or contains no valid data")
	}
	return rows, nil
}

func quoteCSVField(field string) string {
	escaped := strings.ReplaceAll(field, "\"", "\"\"")
	return "\"" + escaped + "\""
}

// jsonRows flattens a JSON document into one compact row per record.
// Accepts a top-level array (one row per element) or a single object.
func jsonRows(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	compact := func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	switch v := value.(type) {
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("JSON array is empty")
		}
		rows := make([]string, 0, len(v))
		for _, item := range v {
			row, err := compact(item)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return rows, nil
	case map[string]any:
		row, err := compact(v)
		if err != nil {
			return nil, err
		}
		return []string{row}, nil
	default:
		return nil, fmt.Errorf("unsupported top-level JSON type %T", value)
	}
}

func textLines(data []byte) []string {
	text := strings.ToValidUTF8(string(data), "")
	var rows []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, line)
	}
	return rows
}

// extractXLSX hand-parses the workbook. Each sheet is converted to CSV
// style rows and fragmented independently, with the sheet name carried
// in the group header.
func (e *TabularEngine) extractXLSX(data []byte) ([]Fragment, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open xlsx: %v", common.ErrExtraction, err)
	}

	shared, err := xlsxSharedStrings(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtraction, err)
	}

	names := xlsxSheetNames(zr)

	type sheetFile struct {
		num  int
		file *zip.File
	}
	var sheets []sheetFile
	for _, f := range zr.File {
		var num int
		if n, err := fmt.Sscanf(f.Name, "xl/worksheets/sheet%d.xml", &num); n == 1 && err == nil {
			sheets = append(sheets, sheetFile{num: num, file: f})
		}
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no worksheets found in xlsx", common.ErrExtraction)
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].num < sheets[j].num })

	var fragments []Fragment
	for idx, s := range sheets {
		rows, err := xlsxSheetRows(s.file, shared)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrExtraction, err)
		}
		if len(rows) == 0 {
			continue
		}

		name := fmt.Sprintf("Sheet%d", s.num)
		if idx < len(names) && names[idx] != "" {
			name = names[idx]
		}

		header := fmt.Sprintf("--- %s ---", name)
		if DetectCSVHeader(rows) && len(rows) > 1 {
			header += "\n" + rows[0]
			rows = rows[1:]
		}

		for _, group := range e.chunker.SplitRows(rows, header) {
			fragments = append(fragments, Fragment{
				Text:        group.Text,
				ElementType: ElementStructuredRow,
				RowIndex:    intPtr(group.FirstRow),
			})
		}
	}
	return fragments, nil
}

func xlsxSharedStrings(zr *zip.Reader) ([]string, error) {
	var ssFile *zip.File
	for _, f := range zr.File {
		if f.Name == "xl/sharedStrings.xml" {
			ssFile = f
			break
		}
	}
	if ssFile == nil {
		return nil, nil
	}
	if ssFile.UncompressedSize64 > officeXMLMax {
		return nil, fmt.Errorf("sharedStrings.xml too large: %d bytes", ssFile.UncompressedSize64)
	}

	rc, err := ssFile.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open sharedStrings.xml: %w", err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(io.LimitReader(rc, int64(officeXMLMax)))

	var strs []string
	var current strings.Builder
	inSI := false
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse sharedStrings.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				inSI = true
				current.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "si":
				inSI = false
				strs = append(strs, current.String())
			case "t":
				inText = false
			}
		case xml.CharData:
			if inSI && inText {
				current.WriteString(string([]byte(t)))
			}
		}
	}
	return strs, nil
}

// xlsxSheetNames returns the workbook's sheet names in declaration
// order, which matches the numeric order of the worksheet parts for
// workbooks written by common producers.
func xlsxSheetNames(zr *zip.Reader) []string {
	var wbFile *zip.File
	for _, f := range zr.File {
		if f.Name == "xl/workbook.xml" {
			wbFile = f
			break
		}
	}
	if wbFile == nil || wbFile.UncompressedSize64 > officeXMLMax {
		return nil
	}

	rc, err := wbFile.Open()
	if err != nil {
		return nil
	}
	defer rc.Close()

	dec := xml.NewDecoder(io.LimitReader(rc, int64(officeXMLMax)))

	var names []string
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if t, ok := tok.(xml.StartElement); ok && t.Name.Local == "sheet" {
			for _, attr := range t.Attr {
				if attr.Name.Local == "name" {
					names = append(names, attr.Value)
					break
				}
			}
		}
	}
	return names
}

func xlsxSheetRows(f *zip.File, shared []string) ([]string, error) {
	if f.UncompressedSize64 > officeXMLMax {
		return nil, fmt.Errorf("%s too large: %d bytes", f.Name, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(io.LimitReader(rc, int64(officeXMLMax)))

	var rows []string
	var cells []string
	var cellValue strings.Builder
	cellType := ""
	cellCol := -1
	inValue := false
	inInline := false

	flushCell := func() {
		if cellCol < 0 {
			return
		}
		value := cellValue.String()
		if cellType == "s" {
			if idx, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && idx >= 0 && idx < len(shared) {
				value = shared[idx]
			}
		}
		for len(cells) < cellCol {
			cells = append(cells, "")
		}
		cells = append(cells, value)
		cellCol = -1
	}

	flushRow := func() {
		flushCell()
		isEmpty := true
		for _, c := range cells {
			if strings.TrimSpace(c) != "" {
				isEmpty = false
				break
			}
		}
		if !isEmpty {
			var line strings.Builder
			for i, c := range cells {
				if i > 0 {
					line.WriteByte(',')
				}
				if strings.ContainsAny(c, ",\n\"") {
					line.WriteString(quoteCSVField(c))
				} else {
					line.WriteString(c)
				}
			}
			rows = append(rows, line.String())
		}
		cells = nil
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				cells = nil
			case "c":
				flushCell()
				cellValue.Reset()
				cellType = ""
				cellCol = len(cells)
				for _, attr := range t.Attr {
					switch attr.Name.Local {
					case "t":
						cellType = attr.Value
					case "r":
						if col := columnIndex(attr.Value); col >= 0 {
							cellCol = col
						}
					}
				}
			case "v":
				inValue = true
			case "is":
				inInline = true
			case "t":
				if inInline {
					inValue = true
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "row":
				flushRow()
			case "v":
				inValue = false
			case "is":
				inInline = false
			case "t":
				if inInline {
					inValue = false
				}
			}
		case xml.CharData:
			if inValue {
				cellValue.WriteString(string([]byte(t)))
			}
		}
	}
	return rows, nil
}

// columnIndex converts a cell reference like "BC12" to a zero-based
// column index. Returns -1 when the reference has no column letters.
func columnIndex(ref string) int {
	col := 0
	seen := false
	for _, r := range ref {
		if r >= 'A' && r <= 'Z' {
			col = col*26 + int(r-'A') + 1
			seen = true
			continue
		}
		break
	}
	if !seen {
		return -1
	}
	return col - 1
}
