// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package conditions maps condition identifiers to hand-curated PubMed
// search expressions. Each table entry combines a disease vocabulary term
// with a treatment vocabulary term; lookup misses fall back to a generic
// free-text expression so mapping never fails.
package conditions

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

//go:embed table.yaml
var embeddedTable []byte

// tableFile is the on-disk format of a condition table.
type tableFile struct {
	// FallbackQualifier is ANDed with the raw identifier when the table
	// has no entry for it.
	FallbackQualifier string `yaml:"fallback_qualifier"`

	// Conditions maps identifier → search expression.
	Conditions map[string]string `yaml:"conditions"`
}

// Mapper resolves condition identifiers to search expressions. The table is
// fixed at construction; Map never mutates it, so a Mapper is safe for
// concurrent use.
type Mapper struct {
	entries           map[string]string
	fallbackQualifier string
}

// NewMapper builds a Mapper from an explicit table. Keys are matched
// case-insensitively. An empty fallbackQualifier keeps the built-in one.
func NewMapper(entries map[string]string, fallbackQualifier string) *Mapper {
	m := &Mapper{
		entries:           make(map[string]string, len(entries)),
		fallbackQualifier: fallbackQualifier,
	}
	for k, v := range entries {
		m.entries[normalize(k)] = v
	}
	if m.fallbackQualifier == "" {
		m.fallbackQualifier = defaultFallback()
	}
	return m
}

// DefaultMapper returns a Mapper loaded from the embedded table.
func DefaultMapper() (*Mapper, error) {
	return parseTable(embeddedTable)
}

// LoadMapper reads a condition table from a YAML file. Used when the
// config points at a custom table.
func LoadMapper(path string) (*Mapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading condition table %s: %w", path, err)
	}
	m, err := parseTable(data)
	if err != nil {
		return nil, fmt.Errorf("parsing condition table %s: %w", path, err)
	}
	return m, nil
}

func parseTable(data []byte) (*Mapper, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("unmarshalling condition table: %w", err)
	}
	if len(tf.Conditions) == 0 {
		return nil, fmt.Errorf("condition table has no entries")
	}
	return NewMapper(tf.Conditions, tf.FallbackQualifier), nil
}

func defaultFallback() string {
	var tf tableFile
	if err := yaml.Unmarshal(embeddedTable, &tf); err != nil || tf.FallbackQualifier == "" {
		// The embedded table is part of the build; reaching here means it
		// is broken, so hard-code the qualifier rather than fail Map.
		return "(complementary therapies[MeSH] OR dietary supplements[MeSH] OR phytotherapy[MeSH])"
	}
	return tf.FallbackQualifier
}

// Map returns the search expression for a condition identifier. Unknown
// identifiers produce the identifier as a free-text term ANDed with the
// fallback qualifier. The result is always non-empty for non-empty input.
func (m *Mapper) Map(condition string) string {
	key := normalize(condition)
	if expr, ok := m.entries[key]; ok {
		return expr
	}
	return fmt.Sprintf("(%s[tiab]) AND %s", key, m.fallbackQualifier)
}

// Known reports whether the identifier has a curated table entry.
func (m *Mapper) Known(condition string) bool {
	_, ok := m.entries[normalize(condition)]
	return ok
}

// Len returns the number of curated entries.
func (m *Mapper) Len() int { return len(m.entries) }

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
