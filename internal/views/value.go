package views

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindStringArray
	KindStruct
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindStringArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// ParseKind accepts the names produced by Kind.String plus a few aliases.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "string", "text":
		return KindString, nil
	case "number", "int", "float":
		return KindNumber, nil
	case "bool", "boolean":
		return KindBool, nil
	case "array", "strings", "list":
		return KindStringArray, nil
	case "struct", "object", "json":
		return KindStruct, nil
	case "date", "time", "datetime":
		return KindDate, nil
	default:
		return KindNull, fmt.Errorf("unknown field kind '%s'", name)
	}
}

// Value is a single filter value. The zero Value is null.
type Value struct {
	kind    Kind
	text    string
	number  float64
	boolean bool
	list    []string
	object  map[string]any
	date    time.Time
}

func Null() Value {
	return Value{}
}

func String(s string) Value {
	return Value{kind: KindString, text: s}
}

func Number(f float64) Value {
	return Value{kind: KindNumber, number: f}
}

func Int(i int) Value {
	return Number(float64(i))
}

func Bool(b bool) Value {
	return Value{kind: KindBool, boolean: b}
}

func Strings(items ...string) Value {
	return Value{kind: KindStringArray, list: slices.Clone(items)}
}

func Struct(object map[string]any) Value {
	if object == nil {
		return Null()
	}
	return Value{kind: KindStruct, object: cloneAny(object).(map[string]any)}
}

func Date(t time.Time) Value {
	return Value{kind: KindDate, date: t}
}

// ValueOf converts a plain Go value into a Value. Unknown types are
// formatted with fmt and stored as strings.
func ValueOf(x any) Value {
	switch v := x.(type) {
	case nil:
		return Null()
	case Value:
		return v.Clone()
	case string:
		return String(v)
	case bool:
		return Bool(v)
	case float64:
		return Number(v)
	case float32:
		return Number(float64(v))
	case int:
		return Number(float64(v))
	case int8:
		return Number(float64(v))
	case int16:
		return Number(float64(v))
	case int32:
		return Number(float64(v))
	case int64:
		return Number(float64(v))
	case uint:
		return Number(float64(v))
	case uint8:
		return Number(float64(v))
	case uint16:
		return Number(float64(v))
	case uint32:
		return Number(float64(v))
	case uint64:
		return Number(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return String(v.String())
		}
		return Number(f)
	case []string:
		return Strings(v...)
	case []any:
		return Strings(stringifyAll(v)...)
	case map[string]any:
		return Struct(v)
	case time.Time:
		return Date(v)
	case *time.Time:
		if v == nil {
			return Null()
		}
		return Date(*v)
	default:
		return String(fmt.Sprint(v))
	}
}

func (v Value) Kind() Kind {
	return v.kind
}

// IsEmpty reports whether the value counts as "no constraint".
func (v Value) IsEmpty() bool {
	return v.kind == KindNull || (v.kind == KindString && v.text == "")
}

func (v Value) Text() string {
	return v.text
}

func (v Value) Float() float64 {
	return v.number
}

func (v Value) Boolean() bool {
	return v.boolean
}

func (v Value) List() []string {
	return slices.Clone(v.list)
}

func (v Value) Object() map[string]any {
	if v.object == nil {
		return nil
	}
	return cloneAny(v.object).(map[string]any)
}

func (v Value) Time() time.Time {
	return v.date
}

// Interface returns the plain Go representation of the value.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.text
	case KindNumber:
		return v.number
	case KindBool:
		return v.boolean
	case KindStringArray:
		return v.List()
	case KindStruct:
		return v.Object()
	case KindDate:
		return v.date
	default:
		return nil
	}
}

func (v Value) Clone() Value {
	out := v
	if v.list != nil {
		out.list = slices.Clone(v.list)
	}
	if v.object != nil {
		out.object = cloneAny(v.object).(map[string]any)
	}
	return out
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.text == other.text
	case KindNumber:
		return v.number == other.number
	case KindBool:
		return v.boolean == other.boolean
	case KindStringArray:
		return slices.Equal(v.list, other.list)
	case KindStruct:
		return reflect.DeepEqual(v.object, other.object)
	case KindDate:
		return v.date.Equal(other.date)
	default:
		return false
	}
}

// String renders the value with the address-bar encoding.
func (v Value) String() string {
	return EncodeValue(v)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindDate:
		return json.Marshal(formatDate(v.date))
	case KindStringArray:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindNumber:
		if math.IsNaN(v.number) || math.IsInf(v.number, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.number)
	default:
		return json.Marshal(v.Interface())
	}
}

// UnmarshalJSON maps JSON back onto a Value. Dates are stored as ISO
// strings and therefore come back as KindString.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// formatNumber follows the JavaScript Number-to-String rules closely enough
// for query strings: plain decimals, exponent form only for very large or
// very small magnitudes.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exponent, _ := strings.Cut(s, "e")
		sign := exponent[:1]
		digits := strings.TrimLeft(exponent[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func stringifyAll(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case nil:
			out = append(out, "")
		default:
			out = append(out, EncodeValue(ValueOf(v)))
		}
	}
	return out
}

func cloneAny(x any) any {
	switch v := x.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = cloneAny(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneAny(item)
		}
		return out
	default:
		return v
	}
}
