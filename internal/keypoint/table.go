// Package keypoint maps a patient's four category values onto the ordered
// key-point messages shown to them. The table is hand-authored data in
// keypoints.yaml; combinations without an entry produce no message.
package keypoint

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/drfirst/go-hfcore/internal/category"
	"github.com/drfirst/go-hfcore/internal/localize"
)

//go:embed keypoints.yaml
var defaultTable []byte

// ErrDuplicateKey is returned when two entries share a category combination.
var ErrDuplicateKey = errors.New("duplicate key-point entry")

// Entry is one authored row of the decision table.
type Entry struct {
	Key   category.Set
	Texts []localize.Text
}

// Table is an immutable key-point decision table.
type Table struct {
	entries []Entry
	index   map[category.Set]int
}

type document struct {
	Fragments yaml.Node   `yaml:"fragments"`
	Entries   []entryYAML `yaml:"entries"`
}

type entryYAML struct {
	category.Set `yaml:",inline"`
	Texts        []localize.Text `yaml:"texts"`
}

// Load reads a table document. Unknown categories, entries without texts and
// duplicate keys are rejected.
func Load(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode key-point table: %w", err)
	}

	t := &Table{
		entries: make([]Entry, 0, len(doc.Entries)),
		index:   make(map[category.Set]int, len(doc.Entries)),
	}
	for i, e := range doc.Entries {
		if err := e.Set.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if len(e.Texts) == 0 {
			return nil, fmt.Errorf("entry %d (%s): no texts", i, e.Set)
		}
		if prev, ok := t.index[e.Set]; ok {
			return nil, fmt.Errorf("entry %d (%s) repeats entry %d: %w", i, e.Set, prev, ErrDuplicateKey)
		}
		t.index[e.Set] = len(t.entries)
		t.entries = append(t.entries, Entry{Key: e.Set, Texts: e.Texts})
	}
	return t, nil
}

// MustLoad is like Load but panics on error.
func MustLoad(data []byte) *Table {
	t, err := Load(bytes.NewReader(data))
	if err != nil {
		panic(err)
	}
	return t
}

var (
	defaultOnce sync.Once
	defaultTbl  *Table
)

// Default returns the embedded table, decoded on first use.
func Default() *Table {
	defaultOnce.Do(func() {
		defaultTbl = MustLoad(defaultTable)
	})
	return defaultTbl
}

// Lookup returns the texts for the exact category combination. There is no
// partial matching; a missing combination returns false.
func (t *Table) Lookup(key category.Set) ([]localize.Text, bool) {
	i, ok := t.index[key]
	if !ok {
		return nil, false
	}
	return append([]localize.Text(nil), t.entries[i].Texts...), true
}

// Lookup queries the default table.
func Lookup(m category.Medication, s category.Symptom, d category.Dizziness, w category.Weight) ([]localize.Text, bool) {
	return Default().Lookup(category.Set{Medication: m, Symptom: s, Dizziness: d, Weight: w})
}

// Len returns the number of authored entries.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns the authored entries in table order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = Entry{Key: e.Key, Texts: append([]localize.Text(nil), e.Texts...)}
	}
	return out
}

// Coverage lists which of the theoretical combinations are authored.
type Coverage struct {
	Authored   []category.Set
	Unauthored []category.Set
}

// Total is the size of the theoretical category space.
func (c Coverage) Total() int { return len(c.Authored) + len(c.Unauthored) }

// Coverage reports authored and unauthored combinations in category.All order.
func (t *Table) Coverage() Coverage {
	var c Coverage
	for _, key := range category.All() {
		if _, ok := t.index[key]; ok {
			c.Authored = append(c.Authored, key)
		} else {
			c.Unauthored = append(c.Unauthored, key)
		}
	}
	return c
}
