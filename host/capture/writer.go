package capture

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"math"
	"math/bits"
	"os"
	"strconv"
	"time"
)

// Writer appends batches to a .bin file and one summary row per batch to a
// .csv file
type Writer struct {
	binFile *os.File
	bin     *bufio.Writer
	csvFile *os.File
	csv     *csv.Writer
	total   int
}

// Create opens both files for s under dir
func Create(dir string, s *Session) (*Writer, error) {
	binFile, err := os.Create(s.Path(dir, "bin"))
	if err != nil {
		return nil, fmt.Errorf("create bin: %w", err)
	}
	csvFile, err := os.Create(s.Path(dir, "csv"))
	if err != nil {
		binFile.Close()
		return nil, fmt.Errorf("create csv: %w", err)
	}

	w := &Writer{
		binFile: binFile,
		bin:     bufio.NewWriter(binFile),
		csvFile: csvFile,
		csv:     csv.NewWriter(csvFile),
	}
	if err := w.csv.Write([]string{"time", "bytes", "ones", "zscore"}); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// WriteBatch records one batch captured at t
func (w *Writer) WriteBatch(t time.Time, data []byte) error {
	if _, err := w.bin.Write(data); err != nil {
		return fmt.Errorf("write bin: %w", err)
	}
	w.total += len(data)

	ones := CountOnes(data)
	return w.csv.Write([]string{
		t.Format(time.RFC3339Nano),
		strconv.Itoa(len(data)),
		strconv.Itoa(ones),
		strconv.FormatFloat(ZScore(ones, 8*len(data)), 'f', 6, 64),
	})
}

// Total returns the bytes written so far
func (w *Writer) Total() int {
	return w.total
}

// Close flushes and closes both files
func (w *Writer) Close() error {
	errBin := w.bin.Flush()
	w.csv.Flush()
	errCSV := w.csv.Error()
	if err := w.binFile.Close(); errBin == nil {
		errBin = err
	}
	if err := w.csvFile.Close(); errCSV == nil {
		errCSV = err
	}
	if errBin != nil {
		return errBin
	}
	return errCSV
}

// CountOnes counts set bits in p
func CountOnes(p []byte) int {
	n := 0
	for _, b := range p {
		n += bits.OnesCount8(b)
	}
	return n
}

// ZScore of ones set bits out of n fair coin flips
func ZScore(ones, n int) float64 {
	if n == 0 {
		return 0
	}
	mean := float64(n) / 2
	sd := math.Sqrt(float64(n) / 4)
	return (float64(ones) - mean) / sd
}
