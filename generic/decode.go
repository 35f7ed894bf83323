package generic

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYLOAD FIELDS - Lenient, presence-aware access to event payloads
// =============================================================================
//
// Historical events are immutable and must stay replayable forever, so
// family decoders read payloads through Fields instead of strict structs:
// a missing or mistyped numeric becomes zero, and presence is reported
// separately so partial updates can tell "absent" from "set to zero".

// Fields is a decoded payload object.
type Fields map[string]json.RawMessage

// PayloadFields decodes the event payload as a JSON object.
func PayloadFields(evt Event) (Fields, error) {
	if len(bytes.TrimSpace(evt.Payload)) == 0 {
		return Fields{}, nil
	}
	var f Fields
	if err := json.Unmarshal(evt.Payload, &f); err != nil {
		return nil, &DecodeError{EventID: evt.ID, Type: evt.Type, Err: err}
	}
	if f == nil {
		f = Fields{}
	}
	return f, nil
}

// Has reports whether name is present and not null.
func (f Fields) Has(name string) bool {
	raw, ok := f[name]
	return ok && len(raw) > 0 && string(bytes.TrimSpace(raw)) != "null"
}

// String returns a string field. Numbers and booleans are not coerced.
func (f Fields) String(name string) (string, bool) {
	if !f.Has(name) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(f[name], &s); err != nil {
		return "", false
	}
	return s, true
}

// StringOr returns the string field or def.
func (f Fields) StringOr(name, def string) string {
	if s, ok := f.String(name); ok {
		return s
	}
	return def
}

// ID returns an entity id field, trimmed.
func (f Fields) ID(name string) EntityID {
	s, _ := f.String(name)
	return EntityID(strings.TrimSpace(s))
}

// Decimal returns a numeric field (JSON number or numeric string).
// Present-but-malformed values decode as zero.
func (f Fields) Decimal(name string) (decimal.Decimal, bool) {
	if !f.Has(name) {
		return decimal.Zero, false
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(f[name]); err != nil {
		return decimal.Zero, true
	}
	return d, true
}

// Millis returns an epoch-milliseconds field as a UTC time.
// Present-but-malformed values decode as the zero time.
func (f Fields) Millis(name string) (time.Time, bool) {
	if !f.Has(name) {
		return time.Time{}, false
	}
	raw := strings.Trim(string(bytes.TrimSpace(f[name])), `"`)
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fl, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			return time.Time{}, true
		}
		ms = int64(fl)
	}
	return time.UnixMilli(ms).UTC(), true
}

// DayKey returns a YYYY-MM-DD field; ok is false when absent or malformed.
func (f Fields) DayKey(name string) (DayKey, bool) {
	s, ok := f.String(name)
	if !ok {
		return DayKey{}, false
	}
	k, err := ParseDayKey(s)
	if err != nil {
		return DayKey{}, false
	}
	return k, true
}

// Ints returns an integer array field; non-integer elements are dropped.
func (f Fields) Ints(name string) ([]int, bool) {
	if !f.Has(name) {
		return nil, false
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(f[name], &raw); err != nil {
		return nil, false
	}
	out := make([]int, 0, len(raw))
	for _, r := range raw {
		var n int
		if err := json.Unmarshal(r, &n); err == nil {
			out = append(out, n)
		}
	}
	return out, true
}

// Object returns a nested object field.
func (f Fields) Object(name string) (Fields, bool) {
	if !f.Has(name) {
		return nil, false
	}
	var nested Fields
	if err := json.Unmarshal(f[name], &nested); err != nil || nested == nil {
		return nil, false
	}
	return nested, true
}
