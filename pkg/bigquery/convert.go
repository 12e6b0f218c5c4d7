package bigquery

import (
	"encoding/base64"
	"math"
	"strconv"
	"time"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	raw "google.golang.org/api/bigquery/v2"
)

// Query results arrive as {"f": [{"v": ...}, ...]} rows whose leaf values are
// all strings; the schema says how to read them.

func convertRow(fields []*raw.TableFieldSchema, cells []*raw.TableCell) (map[string]interface{}, error) {
	if len(cells) > len(fields) {
		return nil, apierr.Conversion("TableRow", "f", len(cells), nil)
	}
	row := make(map[string]interface{}, len(cells))
	for i, cell := range cells {
		v, err := convertValue(fields[i], cell.V)
		if err != nil {
			return nil, err
		}
		row[fields[i].Name] = v
	}
	return row, nil
}

func convertValue(field *raw.TableFieldSchema, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if field.Mode != "REPEATED" {
		return convertScalar(field, v)
	}

	items, ok := v.([]interface{})
	if !ok {
		return nil, apierr.Conversion("TableRow", field.Name, v, nil)
	}
	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		cell, ok := item.(map[string]interface{})
		if !ok {
			return nil, apierr.Conversion("TableRow", field.Name, item, nil)
		}
		val, err := convertScalar(field, cell["v"])
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

func convertScalar(field *raw.TableFieldSchema, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if field.Type == "RECORD" || field.Type == "STRUCT" {
		return convertRecord(field, v)
	}

	s, ok := v.(string)
	if !ok {
		return nil, apierr.Conversion("TableRow", field.Name, v, nil)
	}
	var out interface{}
	var err error
	switch field.Type {
	case "INTEGER", "INT64":
		out, err = strconv.ParseInt(s, 10, 64)
	case "FLOAT", "FLOAT64":
		out, err = strconv.ParseFloat(s, 64)
	case "BOOLEAN", "BOOL":
		out, err = strconv.ParseBool(s)
	case "TIMESTAMP":
		out, err = parseTimestamp(s)
	case "BYTES":
		out, err = base64.StdEncoding.DecodeString(s)
	default:
		// STRING, DATE, TIME, DATETIME, NUMERIC, GEOGRAPHY, JSON
		out = s
	}
	if err != nil {
		return nil, apierr.Conversion("TableRow", field.Name, s, err)
	}
	return out, nil
}

func convertRecord(field *raw.TableFieldSchema, v interface{}) (interface{}, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, apierr.Conversion("TableRow", field.Name, v, nil)
	}
	items, ok := m["f"].([]interface{})
	if !ok {
		return nil, apierr.Conversion("TableRow", field.Name, v, nil)
	}
	if len(items) > len(field.Fields) {
		return nil, apierr.Conversion("TableRow", field.Name, v, nil)
	}
	out := make(map[string]interface{}, len(items))
	for i, item := range items {
		cell, ok := item.(map[string]interface{})
		if !ok {
			return nil, apierr.Conversion("TableRow", field.Name, item, nil)
		}
		val, err := convertValue(field.Fields[i], cell["v"])
		if err != nil {
			return nil, err
		}
		out[field.Fields[i].Name] = val
	}
	return out, nil
}

// parseTimestamp reads seconds since the epoch in floating point notation,
// e.g. "1.456835400123E9", with microsecond precision.
func parseTimestamp(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	micros := int64(math.Round(f * 1e6))
	return time.Unix(micros/1e6, (micros%1e6)*1e3).UTC(), nil
}
