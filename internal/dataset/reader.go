package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// RawTable is uninterpreted tabular input: a header row and data rows of
// trimmed cell text.
type RawTable struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// ReadOptions controls how uploads are decoded.
type ReadOptions struct {
	// Delimiter for delimited text. If 0, chosen by file extension.
	Delimiter rune
	// Sheet selects an XLSX sheet by name; empty means the first sheet.
	Sheet string
}

// Reader decodes one input format.
type Reader interface {
	CanRead(filename string) bool
	Read(r io.Reader, name string, opt ReadOptions) (*RawTable, error)
}

// ErrUnsupported indicates no registered reader accepts the file.
var ErrUnsupported = errors.New("unsupported input format")

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

func init() {
	Register(delimitedReader{})
	Register(xlsxReader{})
}

// ReadFile opens path and decodes it with the first reader that accepts its name.
func ReadFile(path string, opt ReadOptions) (*RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open input")
	}
	defer f.Close()
	return Read(f, filepath.Base(path), opt)
}

// Read decodes an upload stream; name is used only to pick the reader.
func Read(r io.Reader, name string, opt ReadOptions) (*RawTable, error) {
	for _, rd := range registry {
		if rd.CanRead(name) {
			return rd.Read(r, name, opt)
		}
	}
	return nil, eris.Wrapf(ErrUnsupported, "dataset: %s", name)
}

type delimitedReader struct{}

func (delimitedReader) CanRead(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

func (delimitedReader) Read(r io.Reader, name string, opt ReadOptions) (*RawTable, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &RawTable{Name: name}, nil
		}
		return nil, eris.Wrap(err, "dataset: read header")
	}
	t := &RawTable{Name: name, Columns: trimHeader(header)}
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "dataset: read row %d", len(t.Rows)+1)
		}
		t.Rows = append(t.Rows, normalizeRow(rec, len(t.Columns)))
	}
	return t, nil
}

type xlsxReader struct{}

func (xlsxReader) CanRead(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

func (xlsxReader) Read(r io.Reader, name string, opt ReadOptions) (*RawTable, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read xlsx")
	}
	f, err := xlsx.OpenBinary(b)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open xlsx")
	}
	var sheet *xlsx.Sheet
	if opt.Sheet != "" {
		s, ok := f.Sheet[opt.Sheet]
		if !ok {
			names := make([]string, len(f.Sheets))
			for i, s := range f.Sheets {
				names[i] = s.Name
			}
			return nil, eris.Errorf("dataset: sheet %q not found in %s (available: %s)", opt.Sheet, name, strings.Join(names, ", "))
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return &RawTable{Name: name}, nil
		}
		sheet = f.Sheets[0]
	}

	t := &RawTable{Name: name}
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = cellText(c)
		}
		if isBlank(cells) {
			continue
		}
		if t.Columns == nil {
			t.Columns = trimHeader(cells)
			continue
		}
		t.Rows = append(t.Rows, normalizeRow(cells, len(t.Columns)))
	}
	return t, nil
}

// cellText returns the stored value of numeric cells, not the display
// string, which is rounded to the cell's number format.
func cellText(c *xlsx.Cell) string {
	if c.Type() == xlsx.CellTypeNumeric && !c.IsTime() {
		if f, err := c.Float(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return c.Value
	}
	return c.String()
}

func sniffDelimiter(name string) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	return ','
}

func trimHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

// normalizeRow trims cells and pads short rows to the header width. Trailing
// empty fields past the header are dropped; other long rows are kept so the
// validator can reject them.
func normalizeRow(rec []string, ncol int) []string {
	for len(rec) > ncol && strings.TrimSpace(rec[len(rec)-1]) == "" {
		rec = rec[:len(rec)-1]
	}
	n := len(rec)
	if n < ncol {
		n = ncol
	}
	out := make([]string, n)
	for i, v := range rec {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
