package jcr

import (
	"github.com/kommetio/reportgrid/internal/dal"
	"github.com/kommetio/reportgrid/internal/meta"
)

// Validation error keys. Callers localize them through the i18n dictionary;
// the validator itself never produces display text.
const (
	ErrNoPropertiesSelected   = "reports.no.properties.selected"
	ErrBaseTypeUnknown        = "reports.basetype.unknown"
	ErrPropertyUnknown        = "reports.property.unknown"
	ErrDuplicateAlias         = "reports.alias.duplicate"
	ErrAggrNotApplicable      = "dal.aggr.function.not.applicable.to.datatype"
	ErrAggrUnknown            = "dal.aggr.function.unknown"
	ErrPropertyNotGroupedAggr = "reports.property.not.grouped.or.aggr"
)

// Validate checks a JCR against the schema before compilation. Returns all
// error keys found (does not fail-fast); an empty slice means the JCR is
// valid. Pure function of the JCR and the schema provider.
func Validate(j *JCR, prov meta.Provider) []string {
	var errs []string

	if len(j.Properties) == 0 && len(j.Groupings) == 0 {
		errs = append(errs, ErrNoPropertiesSelected)
	}

	base, err := j.BaseType(prov)
	if err != nil {
		// nothing else is checkable without a base type
		return append(errs, ErrBaseTypeUnknown)
	}

	seenAliases := make(map[string]bool)
	duplicateAlias := false
	noteAlias := func(alias string) {
		if alias == "" {
			return
		}
		if seenAliases[alias] {
			duplicateAlias = true
		}
		seenAliases[alias] = true
	}

	// plain properties are those neither aggregated nor grouped; if any
	// remain while groupings or aggregates are present, the query is not a
	// valid grouped report
	plain := make(map[string]bool)
	hasAggregates := false

	for _, prop := range j.Properties {
		noteAlias(prop.Alias)

		path, err := prop.Path(prov, base)
		if err != nil {
			errs = append(errs, ErrPropertyUnknown)
			continue
		}

		if prop.AggregateFunction == "" {
			plain[path] = true
			continue
		}

		hasAggregates = true
		fn, ok := dal.ParseAggregateFunc(string(prop.AggregateFunction))
		if !ok {
			errs = append(errs, ErrAggrUnknown)
			continue
		}
		field, err := meta.FieldAt(prov, base, path)
		if err != nil {
			errs = append(errs, ErrPropertyUnknown)
			continue
		}
		if !dal.CanAggregate(fn, field.Kind) {
			errs = append(errs, ErrAggrNotApplicable)
		}
	}

	for _, g := range j.Groupings {
		noteAlias(g.Alias)
		path, err := g.Path(prov, base)
		if err != nil {
			errs = append(errs, ErrPropertyUnknown)
			continue
		}
		delete(plain, path)
	}

	if duplicateAlias {
		errs = append(errs, ErrDuplicateAlias)
	}
	if len(plain) > 0 && (hasAggregates || len(j.Groupings) > 0) {
		errs = append(errs, ErrPropertyNotGroupedAggr)
	}

	return errs
}
