package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is tabular export content. Every row has one cell per column.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// CSVExporter renders tables as RFC 4180 CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType is the MIME type of rendered output.
func (e *CSVExporter) ContentType() string { return "text/csv" }

// Extension is the file extension of rendered output.
func (e *CSVExporter) Extension() string { return "csv" }

// Render writes the header row followed by every data row.
func (e *CSVExporter) Render(table Table) ([]byte, error) {
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("csv requires at least one column")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(table.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return nil, fmt.Errorf("csv row %d has %d cells, want %d", i, len(row), len(table.Columns))
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
