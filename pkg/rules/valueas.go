package rules

import (
	"strconv"
	"strings"
	"time"
)

// ValueAs selects how raw input is coerced before it is stored.
type ValueAs string

const (
	ValueAsRaw    ValueAs = ""
	ValueAsNumber ValueAs = "number"
	ValueAsDate   ValueAs = "date"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
}

// Coerce converts raw input according to v. Empty input becomes nil. Input
// that cannot be converted is returned unchanged so the rules can still
// report on it.
func (v ValueAs) Coerce(raw any) any {
	if v == ValueAsRaw {
		return raw
	}
	s, ok := raw.(string)
	if !ok {
		return raw
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	switch v {
	case ValueAsNumber:
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	case ValueAsDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return raw
}
