package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is the tabular content both exporters render. Rows are keyed
// by header name so callers can build them independently of column
// order.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders a Dataset into CSV bytes.
type CSVExporter struct {
	delimiter rune
}

// NewCSVExporter builds a CSV exporter. A zero delimiter falls back to a
// comma.
func NewCSVExporter(delimiter rune) *CSVExporter {
	if delimiter == 0 {
		delimiter = ','
	}
	return &CSVExporter{delimiter: delimiter}
}

// Render encodes the dataset with the configured delimiter. Cells with
// no value for a header come out empty rather than shifting columns.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}

	records := make([][]string, 0, len(data.Rows)+1)
	records = append(records, data.Headers)
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		records = append(records, record)
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	writer.Comma = e.delimiter
	if err := writer.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}
