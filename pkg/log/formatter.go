package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const defaultTimestampFormat = time.RFC3339Nano

// JSONFormatter renders one JSON object per line.
type JSONFormatter struct {
	TimestampFormat  string
	DisableTimestamp bool
	// IncludeCaller adds the "caller" key when known.
	IncludeCaller bool
}

func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		data[k] = normalizeValue(v)
	}
	if !f.DisableTimestamp {
		layout := f.TimestampFormat
		if layout == "" {
			layout = defaultTimestampFormat
		}
		data["time"] = entry.Timestamp.UTC().Format(layout)
	}
	data["level"] = entry.Level.String()
	data["msg"] = entry.Message
	if f.IncludeCaller && entry.Caller != "" {
		data["caller"] = entry.Caller
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("log: marshal entry: %w", err)
	}
	return append(b, '\n'), nil
}

// TextFormatter renders "time LEVEL message key=value ..." with sorted keys.
type TextFormatter struct {
	TimestampFormat  string
	DisableTimestamp bool
}

func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer
	if !f.DisableTimestamp {
		layout := f.TimestampFormat
		if layout == "" {
			layout = "2006-01-02T15:04:05.000Z07:00"
		}
		buf.WriteString(entry.Timestamp.Format(layout))
		buf.WriteByte(' ')
	}
	fmt.Fprintf(&buf, "%-5s %s", entry.Level.String(), entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, " %s=%v", k, quoteIfNeeded(normalizeValue(entry.Fields[k])))
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case error:
		return t.Error()
	case time.Duration:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}

func quoteIfNeeded(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if s == "" || bytes.ContainsAny([]byte(s), " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
