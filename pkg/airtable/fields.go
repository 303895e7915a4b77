package airtable

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Fields is the field map of a record. Getters take several candidate
// names and return the first one present, since the same column is spelled
// differently across tables and bases.
type Fields map[string]any

func (f Fields) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := f[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Value returns the raw value of the first present key.
func (f Fields) Value(keys ...string) (any, bool) {
	return f.lookup(keys...)
}

// Has reports whether any of keys is set.
func (f Fields) Has(keys ...string) bool {
	_, ok := f.lookup(keys...)
	return ok
}

// Text returns the first present key as a string. Numbers and booleans are
// formatted; single-element arrays (lookups, linked records) are unwrapped.
func (f Fields) Text(keys ...string) string {
	v, ok := f.lookup(keys...)
	if !ok {
		return ""
	}
	return toString(v)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case []any:
		if len(t) > 0 {
			return toString(t[0])
		}
	case map[string]any:
		// Collaborator and select objects carry a name.
		if name, ok := t["name"].(string); ok {
			return name
		}
	}
	return ""
}

// Float returns the first present key parsed as a number, or def.
func (f Fields) Float(def float64, keys ...string) float64 {
	v, ok := f.lookup(keys...)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case json.Number:
		if n, err := t.Float64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(t, "%")), 64); err == nil {
			return n
		}
	case []any:
		if len(t) > 0 {
			return Fields{"v": t[0]}.Float(def, "v")
		}
	}
	return def
}

// Int is Float truncated to an int.
func (f Fields) Int(def int, keys ...string) int {
	return int(f.Float(float64(def), keys...))
}

// Bool returns the first present key as a bool (checkbox fields).
func (f Fields) Bool(keys ...string) bool {
	v, ok := f.lookup(keys...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}

// Strings returns the first present key as a string slice. Multi-selects and
// linked records come back as arrays; comma-separated text is split.
func (f Fields) Strings(keys ...string) []string {
	v, ok := f.lookup(keys...)
	if !ok {
		return nil
	}
	var out []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := toString(item); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Attachment is an Airtable attachment object.
type Attachment struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Type     string `json:"type"`
}

// Attachments decodes the first present attachment field.
func (f Fields) Attachments(keys ...string) []Attachment {
	v, ok := f.lookup(keys...)
	if !ok {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out []Attachment
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// AttachmentURL returns the URL of the first attachment, or "".
func (f Fields) AttachmentURL(keys ...string) string {
	if atts := f.Attachments(keys...); len(atts) > 0 {
		return atts[0].URL
	}
	return ""
}
