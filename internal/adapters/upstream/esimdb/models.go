package esimdb

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Country is one discoverable entity as listed by /countries
type Country struct {
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// Shape tags which envelope variant a plans page arrived in
type Shape uint8

const (
	// ShapeObject is {numberOfPages, providers, plans, featured}
	ShapeObject Shape = iota + 1
	// ShapeArray is a bare JSON array of plan records
	ShapeArray
)

// String returns the shape name used in logs
func (s Shape) String() string {
	switch s {
	case ShapeObject:
		return "object"
	case ShapeArray:
		return "array"
	default:
		return "unknown"
	}
}

// Page is one decoded data-plans page. Records keeps each plan undecoded
// so that field-level variance is resolved by the normalizer, not here
type Page struct {
	Country string
	Number  int
	Shape   Shape

	// NumberOfPages is nil when the envelope omits it or it is not numeric
	NumberOfPages *int

	// Providers maps provider id to display name for this page
	Providers map[string]string

	// Records holds plans followed by featured plans, in upstream order
	Records []json.RawMessage
}

// Empty reports whether the page carried no records at all
func (p Page) Empty() bool { return len(p.Records) == 0 }

// Provider resolves a provider id against the page's providers map
func (p Page) Provider(id string) (string, bool) {
	name, ok := p.Providers[id]
	return name, ok && name != ""
}

// Object decodes raw as a JSON object, reporting false for any other kind
func Object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

// String returns raw as text. Numbers are returned in their JSON spelling,
// null and every other kind report false
func String(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		return n.String(), true
	default:
		return "", false
	}
}

// Float returns raw as a finite float64. Numeric strings are accepted;
// null, booleans, NaN and infinities report false
func Float(raw json.RawMessage) (float64, bool) {
	s, ok := String(raw)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int returns raw as an integer. Floats with a fractional part report false
func Int(raw json.RawMessage) (int, bool) {
	f, ok := Float(raw)
	if !ok || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// Present reports whether a key exists with a non-null value
func Present(m map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	v, ok := m[key]
	if !ok || isNull(v) {
		return nil, false
	}
	return v, true
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
