package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TimeFormat selects how row timestamps are written for a given sink.
type TimeFormat int

const (
	// FormatAthena writes "YYYY-MM-DD HH:MM:SS" strings in UTC, the layout the
	// Hive JSON SerDe parses as a timestamp.
	FormatAthena TimeFormat = iota
	// FormatEpochMillis writes integer milliseconds since the Unix epoch.
	FormatEpochMillis
)

// AthenaLayout is the string layout used by FormatAthena.
const AthenaLayout = "2006-01-02 15:04:05"

// ParseTimeFormat maps a config value to a TimeFormat.
func ParseTimeFormat(s string) (TimeFormat, error) {
	switch s {
	case "athena", "":
		return FormatAthena, nil
	case "epoch_millis":
		return FormatEpochMillis, nil
	default:
		return 0, fmt.Errorf("unknown timestamp format %q", s)
	}
}

func (f TimeFormat) String() string {
	if f == FormatEpochMillis {
		return "epoch_millis"
	}
	return "athena"
}

// Timestamp is an instant bound to the format it will be written in.
type Timestamp struct {
	Time   time.Time
	Format TimeFormat
}

// NewTimestamp binds t to format f.
func NewTimestamp(t time.Time, f TimeFormat) Timestamp {
	return Timestamp{Time: t, Format: f}
}

// String renders the timestamp for CSV cells.
func (t Timestamp) String() string {
	if t.Format == FormatEpochMillis {
		return strconv.FormatInt(t.Time.UnixMilli(), 10)
	}
	return t.Time.UTC().Format(AthenaLayout)
}

// MarshalJSON writes a number for FormatEpochMillis and a string otherwise.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Format == FormatEpochMillis {
		return []byte(strconv.FormatInt(t.Time.UnixMilli(), 10)), nil
	}
	return json.Marshal(t.String())
}
