// Package parsers turns opaque response bytes plus a media type into a
// structured value, JSON-encoded. Parsers are pure and total: no I/O, no
// fatal path for a single malformed record.
package parsers

import (
	"encoding/json"
	"mime"
)

// Parse dispatches on the base media type (parameters like charset are
// ignored) and returns a JSON encoding of the structured value.
func Parse(mediaType string, body []byte) ([]byte, error) {
	base := mediaType
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		base = mt
	}

	switch base {
	case "text/csv":
		return parseCSV(body)
	case "application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return parseSpreadsheet(body)
	default:
		return passThrough(body)
	}
}

// passThrough represents the opaque bytes as a JSON string (base64, via
// encoding/json's native []byte handling) so the "unknown media type"
// branch stays representable as JSON like every other branch.
func passThrough(body []byte) ([]byte, error) {
	return json.Marshal(body)
}
