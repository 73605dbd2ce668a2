package dispatch

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"f451comms/internal/common"
)

// Delimiters used in multi-value attribute strings ("a|b|c") and key-value
// mappings ("key:value|key:value").
const (
	DelimItem = "|"
	DelimKV   = ":"
)

// Kind is the semantic type of an attribute value.
type Kind int

const (
	KindString Kind = iota
	KindStringList
	KindBool
	KindInt
	KindMap
)

// Field declares one attribute an adapter recognizes.
type Field struct {
	Key      string
	Kind     Kind
	Required bool
	// Freeform marks string attributes that must never be pipe-split
	// (subject lines, titles).
	Freeform bool
}

// Schema is the closed set of attributes an adapter accepts. Unknown keys
// are rejected during normalization instead of being passed through.
type Schema []Field

// Lookup returns the field declaration for key, if any.
func (s Schema) Lookup(key string) (Field, bool) {
	for _, f := range s {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Value is one normalized, typed attribute value.
type Value struct {
	Kind Kind
	Str  string
	List []string
	Bool bool
	Int  int
	Map  map[string]any
}

// AttribSet is an ordered set of normalized attributes keyed by name.
// Iteration order follows schema declaration order.
type AttribSet struct {
	keys   []string
	values map[string]Value
}

// Keys returns the attribute names in schema declaration order.
func (a AttribSet) Keys() []string {
	return a.keys
}

// Has reports whether the attribute is present.
func (a AttribSet) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

// String returns the string value for key, or "" when absent.
func (a AttribSet) String(key string) string {
	return a.values[key].Str
}

// List returns the ordered string list for key, or nil when absent.
func (a AttribSet) List(key string) []string {
	return a.values[key].List
}

// Bool returns the boolean value for key, or false when absent.
func (a AttribSet) Bool(key string) bool {
	return a.values[key].Bool
}

// Int returns the integer value for key, or 0 when absent.
func (a AttribSet) Int(key string) int {
	return a.values[key].Int
}

// Map returns the nested mapping for key, or nil when absent.
func (a AttribSet) Map(key string) map[string]any {
	return a.values[key].Map
}

func (a *AttribSet) set(key string, v Value) {
	if a.values == nil {
		a.values = make(map[string]Value)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = v
}

// Normalize merges per-call attribute values with a channel's configured
// defaults and validates the merged set against the adapter's schema.
// Per-call values always win over defaults. The returned error is scoped to
// the given channel and never affects normalization for sibling channels.
func Normalize(raw map[string]any, defaults map[string]string, schema Schema, channel Channel) (AttribSet, error) {
	var out AttribSet

	// Reject keys no adapter anywhere recognizes. Keys that belong to a
	// different adapter in the same dispatch are skipped silently.
	for key := range raw {
		if controlKeys[key] {
			continue
		}
		if !recognizedKeys[key] {
			return AttribSet{}, common.NewValidationError(string(channel), key, "unrecognized attribute")
		}
	}

	for _, f := range schema {
		rv, ok := raw[f.Key]
		if !ok {
			dv, has := defaults[f.Key]
			if !has || dv == "" {
				if f.Required {
					return AttribSet{}, common.NewMissingAttributeError(string(channel), f.Key)
				}
				continue
			}
			rv = dv
		}

		v, err := coerce(rv, f)
		if err != nil {
			return AttribSet{}, common.NewValidationError(string(channel), f.Key, err.Error())
		}

		// A required list attribute that coerced to nothing (e.g. "" or
		// "| |") is as missing as an absent one.
		if f.Required && f.Kind == KindStringList && len(v.List) == 0 {
			return AttribSet{}, common.NewMissingAttributeError(string(channel), f.Key)
		}
		if f.Required && f.Kind == KindString && strings.TrimSpace(v.Str) == "" {
			return AttribSet{}, common.NewMissingAttributeError(string(channel), f.Key)
		}

		out.set(f.Key, v)
	}

	return out, nil
}

// coerce converts a raw attribute value into the declared kind.
func coerce(raw any, f Field) (Value, error) {
	switch f.Kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		if f.Freeform {
			return Value{Kind: KindString, Str: s}, nil
		}
		return Value{Kind: KindString, Str: strings.TrimSpace(s)}, nil

	case KindStringList:
		list, err := toStringList(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindStringList, List: list}, nil

	case KindBool:
		b, err := ParseBool(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBool, Bool: b}, nil

	case KindInt:
		switch n := raw.(type) {
		case int:
			return Value{Kind: KindInt, Int: n}, nil
		case float64: // JSON numbers decode as float64
			return Value{Kind: KindInt, Int: int(n)}, nil
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(n))
			if err != nil {
				return Value{}, fmt.Errorf("expected integer, got %q", n)
			}
			return Value{Kind: KindInt, Int: i}, nil
		default:
			return Value{}, fmt.Errorf("expected integer, got %T", raw)
		}

	case KindMap:
		m, ok := raw.(map[string]any)
		if !ok {
			return Value{}, fmt.Errorf("expected mapping, got %T", raw)
		}
		return Value{Kind: KindMap, Map: m}, nil
	}

	return Value{}, fmt.Errorf("unsupported attribute kind %d", f.Kind)
}

// toStringList accepts a single string (possibly pipe-delimited), a []string,
// or a []any of strings, and returns the trimmed, ordered list. Duplicates
// are preserved; SplitList documents the splitting rules.
func toStringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return SplitList(v), nil
	case []string:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list items must be strings, got %T", item)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or list of strings, got %T", raw)
	}
}

// SplitList splits a pipe-delimited attribute string into an ordered list,
// trimming whitespace and dropping empty items. SplitList("a|b|c") and a
// caller-supplied ["a","b","c"] normalize to the same list.
func SplitList(s string) []string {
	parts := strings.Split(s, DelimItem)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseKeyValueMap parses a "key:value|key:value" mapping string, as used by
// the channel alias table. Malformed pairs are skipped.
func ParseKeyValueMap(s string) map[string]string {
	out := make(map[string]string)
	for _, item := range SplitList(s) {
		k, v, ok := strings.Cut(item, DelimKV)
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

// ParseBool coerces native booleans and their common string spellings.
// "true", "1", "t", "y", and "yes" (case-insensitive) are true; "false",
// "0", "f", "n", and "no" are false.
func ParseBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "t", "y", "yes":
			return true, nil
		case "false", "0", "f", "n", "no", "":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", v)
	default:
		return false, fmt.Errorf("expected boolean, got %T", raw)
	}
}

// LevelOff disables logging entirely; it sorts above every slog level.
const LevelOff = slog.Level(100)

// ParseLogLevel interprets a log-level attribute. It accepts slog-style
// level names (plus CRITICAL and NOTSET), the literal "OFF", integers on the
// conventional 0-50 severity scale, and string-encoded integers. A negative
// integer means OFF.
func ParseLogLevel(raw any) (slog.Level, error) {
	switch v := raw.(type) {
	case int:
		return levelFromInt(v), nil
	case float64:
		return levelFromInt(int(v)), nil
	case string:
		name := strings.ToUpper(strings.TrimSpace(v))
		switch name {
		case "OFF":
			return LevelOff, nil
		case "CRITICAL":
			return slog.LevelError, nil
		case "ERROR":
			return slog.LevelError, nil
		case "WARNING", "WARN":
			return slog.LevelWarn, nil
		case "INFO":
			return slog.LevelInfo, nil
		case "DEBUG", "NOTSET":
			return slog.LevelDebug, nil
		}
		if i, err := strconv.Atoi(name); err == nil {
			return levelFromInt(i), nil
		}
		return 0, fmt.Errorf("unrecognized log level: %q", v)
	default:
		return 0, fmt.Errorf("expected log level name or integer, got %T", raw)
	}
}

func levelFromInt(n int) slog.Level {
	switch {
	case n < 0:
		return LevelOff
	case n >= 40:
		return slog.LevelError
	case n >= 30:
		return slog.LevelWarn
	case n >= 20:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// FormatTagList renders tags as a single string with each item wrapped in
// prefix/suffix, e.g. FormatTagList([a b], "#", "", " ") == "#a #b".
func FormatTagList(tags []string, prefix, suffix, spacer string) string {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.Trim(t, prefix+suffix+" "); t != "" {
			clean = append(clean, prefix+t+suffix)
		}
	}
	return strings.Join(clean, spacer)
}
