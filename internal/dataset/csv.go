package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"jordanella.com/runner-collector/internal/cv"
)

var csvHeader = []string{"input", "output"}

// WriteCSV writes samples as a two column table: the serialized grid and the action label
func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range samples {
		if err := cw.Write([]string{s.Grid.String(), strconv.Itoa(int(s.Action))}); err != nil {
			return fmt.Errorf("sample %d: %w", s.Seq, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table written by WriteCSV
func ReadCSV(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header")
	}
	if err != nil {
		return nil, err
	}
	if header[0] != csvHeader[0] || header[1] != csvHeader[1] {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var samples []Sample
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		grid, err := cv.ParseOccupancyGrid(record[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(samples)+1, err)
		}
		action, err := strconv.ParseUint(record[1], 10, 8)
		if err != nil || action > 1 {
			return nil, fmt.Errorf("row %d: invalid action %q", len(samples)+1, record[1])
		}

		samples = append(samples, Sample{
			Seq:    len(samples),
			Grid:   grid,
			Action: uint8(action),
		})
	}
	return samples, nil
}

// CSVSink writes the dataset to a file, replacing any previous content
type CSVSink struct {
	Path string
}

// NewCSVSink creates a CSV sink for path
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{Path: path}
}

func (s *CSVSink) Name() string {
	return "csv"
}

func (s *CSVSink) Write(ctx context.Context, ds Dataset) error {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.Path, err)
	}

	if err := WriteCSV(f, ds.Samples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadCSV reads a dataset file written by CSVSink
func LoadCSV(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}
