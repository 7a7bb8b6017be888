// Package payload turns a batch spec's payload source (a CSV data feed
// plus a templated field map) into the concrete per-job payload list a
// BatchEngine consumes, the same Feeder + template split the teacher's
// attacker package used to drive per-request scenario data.
package payload

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Feeder provides a stream of string-keyed data records, one per job.
type Feeder interface {
	Next() map[string]string
	Len() int
}

// CSVFeeder reads records from a CSV file and cycles through them.
type CSVFeeder struct {
	idx     int
	records []map[string]string
}

// NewCSVFeeder loads path, treating its first row as a header.
func NewCSVFeeder(path string) (*CSVFeeder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("payload: open csv: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("payload: read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("payload: csv file must have a header and at least one row")
	}

	headers := rows[0]
	for _, h := range headers {
		if h == "" {
			return nil, fmt.Errorf("payload: csv header contains an empty field")
		}
	}

	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]string, len(headers))
		for i, val := range row {
			if i < len(headers) {
				record[headers[i]] = val
			}
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("payload: csv file contains no data rows")
	}

	return &CSVFeeder{records: records}, nil
}

// Next returns the next record, looping back to the start once exhausted.
func (f *CSVFeeder) Next() map[string]string {
	r := f.records[f.idx%len(f.records)]
	f.idx++
	return r
}

// Len reports the number of distinct records loaded.
func (f *CSVFeeder) Len() int { return len(f.records) }
