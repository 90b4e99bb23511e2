package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Mapping is one (pattern, intent) pair of the intent mapping.
type Mapping struct {
	Pattern string
	Intent  string
}

// IntentMapping is an insertion-ordered pattern → intent table. Partial
// matching walks it in order, so the order is observable and is preserved
// through JSON encoding. Overwriting a pattern keeps its position.
type IntentMapping struct {
	entries []Mapping
	index   map[string]int
}

// NewIntentMapping builds a mapping from entries in the given order.
func NewIntentMapping(entries ...Mapping) IntentMapping {
	var m IntentMapping
	for _, e := range entries {
		m.Set(e.Pattern, e.Intent)
	}
	return m
}

// Get returns the intent stored for pattern.
func (m *IntentMapping) Get(pattern string) (string, bool) {
	i, ok := m.index[pattern]
	if !ok {
		return "", false
	}
	return m.entries[i].Intent, true
}

// Set stores intent for pattern, overwriting any existing value.
func (m *IntentMapping) Set(pattern, intent string) {
	if i, ok := m.index[pattern]; ok {
		m.entries[i].Intent = intent
		return
	}
	if m.index == nil {
		m.index = make(map[string]int)
	}
	m.index[pattern] = len(m.entries)
	m.entries = append(m.entries, Mapping{Pattern: pattern, Intent: intent})
}

// Add stores intent for pattern only if the pattern is absent and reports
// whether it did.
func (m *IntentMapping) Add(pattern, intent string) bool {
	if _, ok := m.index[pattern]; ok {
		return false
	}
	m.Set(pattern, intent)
	return true
}

// Entries returns a copy of the entries in insertion order.
func (m IntentMapping) Entries() []Mapping {
	return append([]Mapping(nil), m.entries...)
}

// Len returns the number of patterns.
func (m IntentMapping) Len() int { return len(m.entries) }

func (m IntentMapping) clone() IntentMapping {
	return NewIntentMapping(m.entries...)
}

// MarshalJSON encodes the mapping as a JSON object in insertion order.
func (m IntentMapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Pattern)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Intent)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces the mapping with the object in data, keeping the
// key order of the document.
func (m *IntentMapping) UnmarshalJSON(data []byte) error {
	*m = IntentMapping{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("intent mapping: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		pattern, ok := tok.(string)
		if !ok {
			return fmt.Errorf("intent mapping: unexpected key %v", tok)
		}
		var intent string
		if err := dec.Decode(&intent); err != nil {
			return fmt.Errorf("intent mapping: value for %q: %w", pattern, err)
		}
		m.Set(pattern, intent)
	}
	_, err = dec.Token()
	return err
}
