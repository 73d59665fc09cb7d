package policy

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind discriminates the closed set of condition value shapes.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueNumber
	ValueList
)

// Value is a condition value: a string, a number, or a list of strings.
// Anything else is rejected when a policy is constructed or decoded.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	list []string
}

// StringValue builds a string-valued Value.
func StringValue(s string) Value {
	return Value{kind: ValueString, str: s}
}

// NumberValue builds a numeric Value.
func NumberValue(n float64) Value {
	return Value{kind: ValueNumber, num: n}
}

// ListValue builds a list-valued Value.
func ListValue(items ...string) Value {
	return Value{kind: ValueList, list: append([]string(nil), items...)}
}

// Kind returns the value's shape.
func (v Value) Kind() ValueKind { return v.kind }

// Text returns the canonical string form of a scalar value. For lists it
// returns the first element, which only set-membership operators should rely on.
func (v Value) Text() string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueList:
		if len(v.list) > 0 {
			return v.list[0]
		}
		return ""
	default:
		return ""
	}
}

// AsList returns the value as a string slice. Scalars become one-element lists.
func (v Value) AsList() []string {
	switch v.kind {
	case ValueList:
		return append([]string(nil), v.list...)
	default:
		return []string{v.Text()}
	}
}

// IsZero reports whether the value was never set.
func (v Value) IsZero() bool {
	return v.kind == ValueString && v.str == ""
}

// MarshalJSON encodes the value in its natural JSON shape.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueString:
		return json.Marshal(v.str)
	case ValueNumber:
		return json.Marshal(v.num)
	case ValueList:
		if v.list == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.list)
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.kind)
	}
}

// UnmarshalJSON accepts a JSON string, number, or array of strings and
// rejects every other shape.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch typed := raw.(type) {
	case string:
		*v = StringValue(typed)
		return nil
	case float64:
		*v = NumberValue(typed)
		return nil
	case []any:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("condition value list must contain only strings, got %T", item)
			}
			items = append(items, s)
		}
		*v = ListValue(items...)
		return nil
	default:
		return fmt.Errorf("condition value must be a string, number, or string list, got %T", raw)
	}
}
