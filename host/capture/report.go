package capture

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"caprand/noise"
)

const (
	histSheet = "Histogram"
	lsbSheet  = "LSB"
)

// Report summarises a capture
type Report struct {
	Samples    uint64
	Hist       noise.Histogram
	Lsb        noise.LsbHistogram
	Mode       uint8
	MinEntropy float64 // Bits per sample
	ChiSquare  float64 // Against uniform, 255 degrees of freedom
	Mean       float64
}

// Analyze builds the report of data
func Analyze(data []byte) *Report {
	r := &Report{}
	r.Hist.AddBytes(data)
	var sum uint64
	for _, b := range data {
		r.Lsb.Add(uint32(b))
		sum += uint64(b)
	}
	r.Samples = r.Hist.Total()
	r.Mode = r.Hist.Mode()
	r.MinEntropy = r.Hist.MinEntropy()
	r.ChiSquare = r.Hist.ChiSquare()
	if r.Samples > 0 {
		r.Mean = float64(sum) / float64(r.Samples)
	}
	return r
}

// WriteText prints the summary and the non-empty buckets
func (r *Report) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "samples      %d\nmode         %d (%d)\nmean         %.3f\nmin-entropy  %.4f bits/sample\nchi-square   %.2f (255 df)\n",
		r.Samples, r.Mode, r.Hist[r.Mode], r.Mean, r.MinEntropy, r.ChiSquare)
	if err != nil {
		return err
	}
	for v, c := range r.Hist {
		if c == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%3d %d\n", v, c); err != nil {
			return err
		}
	}
	return nil
}

// WriteXLSX saves both histograms as sheets with a column chart each
func (r *Report) WriteXLSX(path, title string) error {
	if r.Samples == 0 {
		return errors.New("no data to write")
	}
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, histSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(lsbSheet); err != nil {
		return err
	}

	if err := writeBuckets(f, histSheet, "value", r.Hist[:]); err != nil {
		return err
	}
	if err := writeBuckets(f, lsbSheet, "lowest_set_bit", r.Lsb[:]); err != nil {
		return err
	}

	if err := writeSummary(f, histSheet, r); err != nil {
		return err
	}

	if err := addChart(f, histSheet, len(r.Hist), title); err != nil {
		return err
	}
	if err := addChart(f, lsbSheet, len(r.Lsb), title+" lowest set bit"); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func writeBuckets(f *excelize.File, sheet, header string, counts []uint32) error {
	if err := f.SetCellStr(sheet, "A1", header); err != nil {
		return err
	}
	if err := f.SetCellStr(sheet, "B1", "count"); err != nil {
		return err
	}
	for i, c := range counts {
		row := i + 2
		if err := f.SetCellInt(sheet, fmt.Sprintf("A%d", row), i); err != nil {
			return err
		}
		if err := f.SetCellUint(sheet, fmt.Sprintf("B%d", row), uint64(c)); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(f *excelize.File, sheet string, r *Report) error {
	cells := []struct {
		label, cell string
		set         func(string) error
	}{
		{"samples", "E1", func(c string) error { return f.SetCellUint(sheet, c, r.Samples) }},
		{"min_entropy", "E2", func(c string) error { return f.SetCellFloat(sheet, c, r.MinEntropy, 6, 64) }},
		{"chi_square", "E3", func(c string) error { return f.SetCellFloat(sheet, c, r.ChiSquare, 6, 64) }},
	}
	for i, c := range cells {
		if err := f.SetCellStr(sheet, fmt.Sprintf("D%d", i+1), c.label); err != nil {
			return err
		}
		if err := c.set(c.cell); err != nil {
			return err
		}
	}
	return nil
}

func addChart(f *excelize.File, sheet string, rows int, title string) error {
	end := rows + 1
	return f.AddChart(sheet, "G2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("%s!$B$1", sheet),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheet, end),
				Values:     fmt.Sprintf("%s!$B$2:$B$%d", sheet, end),
			},
		},
		Title:  []excelize.RichTextRun{{Text: title}},
		Legend: excelize.ChartLegend{Position: "none"},
		XAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: sheet}}},
		YAxis:  excelize.ChartAxis{MajorGridLines: true},
	})
}
