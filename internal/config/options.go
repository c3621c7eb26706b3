package config

import "strings"

// Options is an open-ended knob bag for the places a closed struct is too
// rigid. Values come from JSON, so numbers arrive as float64 and lists as
// []any; the typed accessors normalize that and apply defaults.
type Options map[string]any

// Bool returns the option as a bool, or def when absent or mistyped.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the option as an int, accepting JSON numbers.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// String returns the option as a string, or def when absent or mistyped.
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

// Rune returns the first rune of a string option, or def when absent or
// empty.
func (o Options) Rune(key string, def rune) rune {
	s, ok := o[key].(string)
	if !ok || s == "" {
		return def
	}
	return []rune(s)[0]
}

// StringSlice returns the option as a list of non-empty trimmed strings.
// Accepts a JSON array or a comma-separated string; returns nil when absent.
func (o Options) StringSlice(key string) []string {
	var raw []string
	switch v := o[key].(type) {
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = v
	case string:
		raw = strings.Split(v, ",")
	default:
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
