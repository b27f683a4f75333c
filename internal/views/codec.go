package views

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ViewParam is the reserved query parameter carrying the active view id.
const ViewParam = "view"

// EncodeValue renders a single value for the address bar.
func EncodeValue(v Value) string {
	switch v.kind {
	case KindString:
		return v.text
	case KindNumber:
		return formatNumber(v.number)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindStringArray:
		return strings.Join(v.list, ",")
	case KindStruct:
		data, err := json.Marshal(v.object)
		if err != nil {
			return ""
		}
		return string(data)
	case KindDate:
		return formatDate(v.date)
	default:
		return ""
	}
}

// EncodeQuery turns a filter state into query parameters. activeViewID is
// added as the reserved view parameter when non-empty.
func EncodeQuery(filters FilterState, activeViewID string) url.Values {
	values := url.Values{}
	for key, value := range filters {
		if value.IsEmpty() || key == ViewParam {
			continue
		}
		values.Set(key, EncodeValue(value))
	}
	if activeViewID != "" {
		values.Set(ViewParam, activeViewID)
	}
	return values
}

// Schema pins the kind of individual fields so that decoding does not have
// to guess. Fields missing from the schema fall back to DecodeValue.
type Schema map[string]Kind

// ParseSchema builds a Schema from kind names, as found in configuration.
func ParseSchema(fields map[string]string) (Schema, error) {
	schema := make(Schema, len(fields))
	for field, name := range fields {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("field '%s': %w", field, err)
		}
		schema[field] = kind
	}
	return schema, nil
}

// DecodeValue guesses the kind of a raw query value. The first matching rule
// wins: comma-separated list, finite number, boolean, JSON, plain string.
//
// The rules are not an exact inverse of EncodeValue: "42" comes back as a
// number and a single-element list comes back as a string. Use a Schema for
// fields where that matters.
func DecodeValue(raw string) Value {
	if strings.Contains(raw, ",") {
		return Strings(strings.Split(raw, ",")...)
	}

	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return Number(f)
		}
	}

	switch raw {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		return ValueOf(parsed)
	}
	return String(raw)
}

// DecodeValue decodes raw for field, honouring the declared kind if any.
// A value that does not fit its declared kind decodes to Null.
func (s Schema) DecodeValue(field, raw string) Value {
	kind, ok := s[field]
	if !ok {
		return DecodeValue(raw)
	}

	switch kind {
	case KindString:
		return String(raw)
	case KindNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return Null()
		}
		return Number(f)
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Null()
		}
		return Bool(b)
	case KindStringArray:
		if raw == "" {
			return Null()
		}
		return Strings(strings.Split(raw, ",")...)
	case KindStruct:
		var object map[string]any
		if err := json.Unmarshal([]byte(raw), &object); err != nil {
			return Null()
		}
		return Struct(object)
	case KindDate:
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Null()
		}
		return Date(t)
	default:
		return DecodeValue(raw)
	}
}

// DecodeQuery is the inverse of EncodeQuery. The reserved view parameter is
// returned separately and never becomes a filter. For repeated keys the last
// occurrence wins.
func (s Schema) DecodeQuery(values url.Values) (FilterState, string) {
	filters := FilterState{}
	viewID := ""

	for key, items := range values {
		if len(items) == 0 {
			continue
		}
		raw := items[len(items)-1]

		if key == ViewParam {
			viewID = raw
			continue
		}

		value := s.DecodeValue(key, raw)
		if value.IsEmpty() {
			continue
		}
		filters[key] = value
	}

	return filters, viewID
}

// ParseQuery decodes a raw query string, with or without a leading '?'.
// Malformed pairs are skipped; the error reports the first one.
func (s Schema) ParseQuery(query string) (FilterState, string, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	filters, viewID := s.DecodeQuery(values)
	return filters, viewID, err
}

func DecodeQuery(values url.Values) (FilterState, string) {
	return Schema(nil).DecodeQuery(values)
}

func ParseQuery(query string) (FilterState, string, error) {
	return Schema(nil).ParseQuery(query)
}
