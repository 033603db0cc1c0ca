// Package i18n provides locale dictionaries for report column labels and
// validation messages. Bundles are flat YAML key/value files per locale;
// lookups fall back to the en_US bundle and finally to the key itself, so a
// missing translation is visible but never fatal.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultLocale is the fallback locale for unknown or missing tags.
const DefaultLocale = "en_US"

// builtin en_US entries. Deployments extend or override these with bundles.
var builtin = map[string]string{
	"label.field.id":               "ID",
	"label.field.createdDate":      "Created Date",
	"label.field.lastModifiedDate": "Last Modified Date",

	"reports.no.properties.selected":             "No properties or groupings selected",
	"reports.basetype.unknown":                   "The report's base type does not exist",
	"reports.property.unknown":                   "A selected property does not exist on the base type",
	"reports.alias.duplicate":                    "Two report columns use the same alias",
	"dal.aggr.function.not.applicable.to.datatype": "Aggregate function cannot be applied to this field type",
	"dal.aggr.function.unknown":                  "Unknown aggregate function",
	"reports.property.not.grouped.or.aggr":       "Every selected property must be grouped or aggregated",
	"reports.reporttypename.empty":               "Report name is required",
	"reports.basetype.not.selected":              "The report has no base type selected",
	"auth.type.not.readable":                     "You do not have permission to read this type",
	"auth.field.not.readable":                    "You do not have permission to read this field",
}

// Dictionary resolves i18n keys for one locale.
type Dictionary struct {
	tag      language.Tag
	entries  map[string]string
	fallback *Dictionary
}

// Default returns the built-in en_US dictionary.
func Default() *Dictionary {
	return &Dictionary{tag: language.AmericanEnglish, entries: builtin}
}

// Load parses a YAML bundle for a locale. The bundle is a flat string map;
// lookups missing from it fall back to the default dictionary.
func Load(locale string, bundle []byte) (*Dictionary, error) {
	tag, err := ParseLocale(locale)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]string)
	if len(bundle) > 0 {
		if err := yaml.Unmarshal(bundle, &entries); err != nil {
			return nil, fmt.Errorf("parse %s bundle: %w", locale, err)
		}
	}
	return &Dictionary{tag: tag, entries: entries, fallback: Default()}, nil
}

// ParseLocale canonicalizes a locale string like "pl_PL" or "en-US".
func ParseLocale(locale string) (language.Tag, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	// platform locale ids use underscores, BCP 47 uses hyphens
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return language.Tag{}, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return tag, nil
}

// Locale returns the dictionary's language tag.
func (d *Dictionary) Locale() language.Tag { return d.tag }

// Get resolves a key. Unknown keys return the key itself.
func (d *Dictionary) Get(key string) string {
	if v, ok := d.entries[key]; ok {
		return v
	}
	if d.fallback != nil {
		return d.fallback.Get(key)
	}
	return key
}

// GetAll resolves a list of keys in order.
func (d *Dictionary) GetAll(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = d.Get(k)
	}
	return out
}

// Store holds dictionaries by locale with best-match lookup.
type Store struct {
	matcher language.Matcher
	tags    []language.Tag
	dicts   []*Dictionary
}

// NewStore builds a store from dictionaries. The default dictionary is
// always present as the first (preferred fallback) entry.
func NewStore(dicts ...*Dictionary) *Store {
	all := append([]*Dictionary{Default()}, dicts...)
	tags := make([]language.Tag, len(all))
	for i, d := range all {
		tags[i] = d.tag
	}
	return &Store{matcher: language.NewMatcher(tags), tags: tags, dicts: all}
}

// For returns the best dictionary for a locale string.
func (s *Store) For(locale string) *Dictionary {
	tag, err := ParseLocale(locale)
	if err != nil {
		return s.dicts[0]
	}
	_, idx, _ := s.matcher.Match(tag)
	return s.dicts[idx]
}
