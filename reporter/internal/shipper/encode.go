package shipper

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/obsidianstack/slareport/pkg/types"
)

// Encoding is an output file format.
type Encoding string

const (
	EncodingCSV   Encoding = "csv"
	EncodingJSONL Encoding = "jsonl"
)

// ParseEncoding maps a config value to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case EncodingCSV, EncodingJSONL:
		return Encoding(s), nil
	default:
		return "", fmt.Errorf("unknown encoding %q", s)
	}
}

// Ext returns the file extension for e. JSON Lines files use .json, which
// is what the Hive JSON SerDe tables are pointed at.
func (e Encoding) Ext() string {
	if e == EncodingCSV {
		return ".csv"
	}
	return ".json"
}

// ContentType returns the MIME type stored with uploaded objects.
func (e Encoding) ContentType() string {
	if e == EncodingCSV {
		return "text/csv"
	}
	return "application/x-ndjson"
}

// Encode renders rows in e. For CSV, header adds a column-name row; the
// columns come from the first row, or nothing is written for an empty batch.
func Encode(e Encoding, rows []types.Row, header bool) ([]byte, error) {
	var buf bytes.Buffer
	switch e {
	case EncodingCSV:
		w := csv.NewWriter(&buf)
		if header && len(rows) > 0 {
			if err := w.Write(rows[0].Columns()); err != nil {
				return nil, fmt.Errorf("encode csv header: %w", err)
			}
		}
		for i, r := range rows {
			if err := w.Write(r.Values()); err != nil {
				return nil, fmt.Errorf("encode csv row %d: %w", i, err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("encode csv: %w", err)
		}
	case EncodingJSONL:
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		for i, r := range rows {
			if err := enc.Encode(r); err != nil {
				return nil, fmt.Errorf("encode json row %d: %w", i, err)
			}
		}
	default:
		return nil, fmt.Errorf("encode: unknown encoding %q", e)
	}
	return buf.Bytes(), nil
}
