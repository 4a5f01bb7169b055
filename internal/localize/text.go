// Package localize resolves language-keyed text bundles to display strings.
package localize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FallbackLanguage is always tried after the caller's preferences.
const FallbackLanguage = "en-US"

// Entry is one translation of a Text.
type Entry struct {
	Language string
	Value    string
}

// Text is either a plain string or an ordered set of translations keyed by
// language tag. Insertion order is kept; it decides the last-resort fallback.
type Text struct {
	plain   string
	entries []Entry
	keyed   bool
}

// Plain returns a Text that renders the same in every language.
func Plain(s string) Text {
	return Text{plain: s}
}

// Translations returns a language-keyed Text. Later duplicates of a language
// are ignored.
func Translations(entries ...Entry) Text {
	t := Text{keyed: true}
	for _, e := range entries {
		if _, ok := t.lookup(e.Language); ok {
			continue
		}
		t.entries = append(t.entries, e)
	}
	return t
}

// IsPlain reports whether the text is a single untranslated string.
func (t Text) IsPlain() bool { return !t.keyed }

// Entries returns the translations in insertion order.
func (t Text) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

func (t Text) lookup(language string) (string, bool) {
	for _, e := range t.entries {
		if e.Language == language {
			return e.Value, true
		}
	}
	return "", false
}

// Localize renders text for the first matching language. Each candidate
// (preferences, then FallbackLanguage) is tried as an exact key and then by
// its prefix before any '-' or '_'. With no match the first translation wins.
func Localize(text Text, languages ...string) string {
	if text.IsPlain() {
		return text.plain
	}
	candidates := make([]string, 0, len(languages)+1)
	candidates = append(candidates, languages...)
	candidates = append(candidates, FallbackLanguage)

	for _, language := range candidates {
		if v, ok := text.lookup(language); ok {
			return v
		}
		if i := strings.IndexAny(language, "-_"); i >= 0 {
			if v, ok := text.lookup(language[:i]); ok {
				return v
			}
		}
	}
	if len(text.entries) > 0 {
		return text.entries[0].Value
	}
	return ""
}

// LocalizeAll renders a list of texts with the same preferences.
func LocalizeAll(texts []Text, languages ...string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = Localize(t, languages...)
	}
	return out
}

// MarshalJSON writes a string or an object with keys in insertion order.
func (t Text) MarshalJSON() ([]byte, error) {
	if t.IsPlain() {
		return json.Marshal(t.plain)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range t.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Language)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts a string or an object of strings, keeping key order.
func (t *Text) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch v := tok.(type) {
	case string:
		*t = Plain(v)
		return nil
	case json.Delim:
		if v != '{' {
			return fmt.Errorf("localized text: unexpected %q", v)
		}
	default:
		return fmt.Errorf("localized text: unexpected %T", tok)
	}

	var entries []Entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("localized text %q: %w", keyTok, err)
		}
		entries = append(entries, Entry{Language: keyTok.(string), Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*t = Translations(entries...)
	return nil
}

// UnmarshalYAML accepts a scalar or a mapping of scalars, keeping key order.
func (t *Text) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*t = Plain(node.Value)
		return nil
	case yaml.AliasNode:
		return t.UnmarshalYAML(node.Alias)
	case yaml.MappingNode:
		entries := make([]Entry, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if value.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: localized text %q must be a string", value.Line, key.Value)
			}
			entries = append(entries, Entry{Language: key.Value, Value: value.Value})
		}
		*t = Translations(entries...)
		return nil
	default:
		return fmt.Errorf("line %d: localized text must be a string or a mapping", node.Line)
	}
}
