// Package export serializes filtered views and their statistics.
package export

import (
	"bytes"
	"encoding/csv"
	"math"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/KaramelBytes/gradectl/internal/analysis"
	"github.com/KaramelBytes/gradectl/internal/dataset"
)

// Sheet names of the spreadsheet export.
const (
	SheetData  = "Filtered Data"
	SheetStats = "Stats per Material"
)

// Default file names used when exports are written to disk.
const (
	CSVFileName  = "classified_data.csv"
	XLSXFileName = "grade_control_export.xlsx"
)

// Text renders the view as comma-delimited text: a header row with the view's
// column names, then one row per record in view order. There is no index column.
func Text(v *dataset.View) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(v.Columns()); err != nil {
		return nil, eris.Wrap(err, "export: write csv header")
	}
	for i := 0; i < v.Len(); i++ {
		if err := w.Write(v.Row(i)); err != nil {
			return nil, eris.Wrapf(err, "export: write csv row %d", i+1)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "export: flush csv")
	}
	return buf.Bytes(), nil
}

// Spreadsheet renders a two-sheet workbook: the raw filtered records and the
// per-group statistics.
func Spreadsheet(v *dataset.View, st *analysis.Stats) ([]byte, error) {
	f := xlsx.NewFile()
	if err := writeData(f, v); err != nil {
		return nil, err
	}
	if err := writeStats(f, st); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "export: write xlsx")
	}
	return buf.Bytes(), nil
}

func writeData(f *xlsx.File, v *dataset.View) error {
	sh, err := f.AddSheet(SheetData)
	if err != nil {
		return eris.Wrap(err, "export: add data sheet")
	}
	cols := v.Columns()
	numeric := make([]bool, len(cols))
	header := sh.AddRow()
	for j, name := range cols {
		header.AddCell().SetString(name)
		k, _ := v.Kind(name)
		numeric[j] = k == dataset.KindNumeric
	}
	for i := 0; i < v.Len(); i++ {
		row := sh.AddRow()
		for j, text := range v.Row(i) {
			cell := row.AddCell()
			if numeric[j] {
				x := v.Number(i, cols[j])
				if !math.IsNaN(x) {
					cell.SetFloat(x)
					continue
				}
			}
			cell.SetString(text)
		}
	}
	return nil
}

// writeStats lays the statistics out with two header rows (metric, statistic)
// and one row per group.
func writeStats(f *xlsx.File, st *analysis.Stats) error {
	sh, err := f.AddSheet(SheetStats)
	if err != nil {
		return eris.Wrap(err, "export: add stats sheet")
	}
	if st == nil {
		return nil
	}
	top := sh.AddRow()
	top.AddCell().SetString("")
	sub := sh.AddRow()
	sub.AddCell().SetString(st.GroupColumn)
	for _, m := range st.Metrics {
		for _, name := range analysis.StatNames {
			top.AddCell().SetString(m)
			sub.AddCell().SetString(name)
		}
	}
	for _, g := range st.Groups {
		row := sh.AddRow()
		row.AddCell().SetString(g.Key)
		for _, m := range st.Metrics {
			sum, _ := g.Metric(m)
			row.AddCell().SetInt(sum.Count)
			for _, x := range sum.Values()[1:] {
				cell := row.AddCell()
				if math.IsNaN(x) {
					cell.SetString("")
					continue
				}
				cell.SetFloat(x)
			}
		}
	}
	return nil
}
