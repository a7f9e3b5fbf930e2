package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/japaniel/dilemmaguide/pkg/dilemma"
)

// Format names a supported data export format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// Source is one data file to import.
type Source struct {
	Path   string
	Format Format
}

// DetectFormat infers the export format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	case ".html", ".htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unsupported file type %q", filepath.Ext(path))
}

// NewSource builds a Source, detecting the format from the path.
func NewSource(path string) (Source, error) {
	f, err := DetectFormat(path)
	if err != nil {
		return Source{}, err
	}
	return Source{Path: path, Format: f}, nil
}

// Load reads and parses the file behind src. Records without an id are given
// a stable one derived from the path and row number. Every format goes through
// dilemma.Validate, so a file with a nameless or repeated record loads nothing.
func Load(src Source) ([]dilemma.Record, error) {
	b, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, err
	}
	records, err := Parse(src.Format, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}
	assignIDs(src.Path, records)
	if err := dilemma.Validate(records); err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}
	return records, nil
}

// Parse decodes an export in the given format.
func Parse(format Format, b []byte) ([]dilemma.Record, error) {
	switch format {
	case FormatYAML:
		return dilemma.ParseYAML(b)
	case FormatJSON:
		return parseJSON(b)
	case FormatCSV:
		return parseCSV(bytes.NewReader(b))
	case FormatHTML:
		return parseHTML(b)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// idNamespace seeds generated record ids.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/japaniel/dilemmaguide"))

func assignIDs(path string, records []dilemma.Record) {
	for i := range records {
		if strings.TrimSpace(records[i].ID) != "" {
			continue
		}
		records[i].ID = uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%s#%d", path, i))).String()
	}
}

// parseJSON accepts either a bare array or an object wrapper { "records": [...] }.
func parseJSON(b []byte) ([]dilemma.Record, error) {
	var wrapped struct {
		Records []dilemma.Record `json:"records"`
	}
	if err := json.Unmarshal(b, &wrapped); err == nil && len(wrapped.Records) > 0 {
		return wrapped.Records, nil
	}
	var records []dilemma.Record
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("failed to parse records as object or array: %w", err)
	}
	return records, nil
}

// headerAliases maps normalized column titles to record fields. The Chinese titles
// are the ones used by the shared data sheet.
var headerAliases = map[string]string{
	"id": "id",
	"编号": "id",
	"序号": "id",
	"dilemma": "dilemma",
	"困境": "dilemma",
	"困境名称": "dilemma",
	"option": "option",
	"选项": "option",
	"选项名称": "option",
	"result": "result",
	"结果": "result",
	"map": "map",
	"地图": "map",
	"出现的地图": "map",
	"evaluation": "evaluation",
	"评价": "evaluation",
}

// columnIndex resolves header cells to field positions.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := headerAliases[key]; ok {
			if _, dup := idx[field]; !dup {
				idx[field] = i
			}
		}
	}
	if _, ok := idx["dilemma"]; !ok {
		return nil, fmt.Errorf("no dilemma column in header %q", header)
	}
	return idx, nil
}

// recordsFromRows turns a header row plus data rows into records.
// Blank rows are skipped; a row without a dilemma name is an error.
func recordsFromRows(rows [][]string) ([]dilemma.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	idx, err := columnIndex(rows[0])
	if err != nil {
		return nil, err
	}
	cell := func(row []string, field string) string {
		i, ok := idx[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []dilemma.Record
	for n, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		r := dilemma.Record{
			ID:         cell(row, "id"),
			Dilemma:    cell(row, "dilemma"),
			Option:     cell(row, "option"),
			Result:     cell(row, "result"),
			Map:        cell(row, "map"),
			Evaluation: cell(row, "evaluation"),
		}
		if r.Dilemma == "" {
			return nil, fmt.Errorf("row %d: dilemma must be non-empty", n+2)
		}
		out = append(out, r)
	}
	return out, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseCSV(r io.Reader) ([]dilemma.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return recordsFromRows(rows)
}

// parseHTML extracts the first data table of an HTML export. Readability isolates
// the main content first; when it drops the table the raw document is used.
func parseHTML(b []byte) ([]dilemma.Record, error) {
	pageURL, _ := url.Parse("file:///export.html")
	if article, err := readability.FromReader(bytes.NewReader(b), pageURL); err == nil && article.Content != "" {
		if records, err := tableRecords(strings.NewReader(article.Content)); err == nil && len(records) > 0 {
			return records, nil
		}
	}
	return tableRecords(bytes.NewReader(b))
}

func tableRecords(r io.Reader) ([]dilemma.Record, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var lastErr error
	for _, table := range findAll(doc, "table") {
		records, err := recordsFromRows(tableRows(table))
		if err != nil {
			lastErr = err
			continue
		}
		return records, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no table found")
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// tableRows returns the text of every th/td cell, row by row.
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	for _, tr := range findAll(table, "tr") {
		var row []string
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
				row = append(row, textContent(c))
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
