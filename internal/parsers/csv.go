package parsers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
)

// parseCSV turns a CSV document into a JSON array of rows, each row a JSON
// array of string cells. A malformed record (wrong field count, quoting
// error) is skipped with a logged warning rather than aborting the parse,
// grounded on the "skip malformed or mismatched rows" behavior of
// bravo1goingdark-mailgrid's CSV parser.
func parseCSV(body []byte) ([]byte, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1 // allow variable width; we validate per-row below
	reader.TrimLeadingSpace = true

	var want int = -1
	rows := make([][]string, 0)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("csv parser: skipping malformed record", "error", err)
			continue
		}
		if want == -1 {
			want = len(record)
		} else if len(record) != want {
			slog.Warn("csv parser: skipping record with mismatched field count",
				"want", want, "got", len(record))
			continue
		}
		rows = append(rows, record)
	}

	return json.Marshal(rows)
}
