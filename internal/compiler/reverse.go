package compiler

import (
	"github.com/kommetio/reportgrid/internal/dal"
	"github.com/kommetio/reportgrid/internal/jcr"
	"github.com/kommetio/reportgrid/internal/meta"
)

// DeriveJCR builds the structured specification for a DAL query, letting the
// report builder open a hand-written query for editing. Properties carry both
// the PIR and the dotted name.
//
// A plain select whose path is also a GROUP BY term derives as a grouping,
// not a property, mirroring how Compile selects grouping columns. Auxiliary
// default-field columns added for relationship groupings are indistinguishable
// from ordinary groupings here and derive as such; the augmentation is
// one-directional and is never undone.
func (c *Compiler) DeriveJCR(q *dal.Query) (*jcr.JCR, *meta.Type, error) {
	base, err := c.prov.Type(q.From)
	if err != nil {
		return nil, nil, err
	}

	grouped := make(map[string]bool, len(q.GroupBy))
	for _, g := range q.GroupBy {
		grouped[g] = true
	}
	// grouping aliases come from the matching select column
	aliases := make(map[string]string)

	j := &jcr.JCR{BaseTypeID: base.ID, BaseTypeName: base.Name}

	for _, s := range q.Select {
		pir, err := meta.ResolvePIR(c.prov, base, s.Path)
		if err != nil {
			return nil, nil, err
		}
		if s.Func == "" && grouped[s.Path] {
			if s.Alias != "" {
				aliases[s.Path] = s.Alias
			}
			continue
		}
		j.Properties = append(j.Properties, jcr.Property{
			ID:                pir,
			Name:              s.Path,
			Alias:             s.Alias,
			AggregateFunction: s.Func,
		})
	}

	for _, path := range q.GroupBy {
		pir, err := meta.ResolvePIR(c.prov, base, path)
		if err != nil {
			return nil, nil, err
		}
		j.Groupings = append(j.Groupings, jcr.Grouping{
			PropertyID:   pir,
			PropertyName: path,
			Alias:        aliases[path],
		})
	}

	for _, r := range q.Where {
		pir, err := meta.ResolvePIR(c.prov, base, r.Path)
		if err != nil {
			return nil, nil, err
		}
		j.Restrictions = append(j.Restrictions, jcr.Restriction{
			PropertyID:   pir,
			PropertyName: r.Path,
			Operator:     string(r.Op),
			Value:        r.Value,
		})
	}

	for _, o := range q.OrderBy {
		pir, err := meta.ResolvePIR(c.prov, base, o.Path)
		if err != nil {
			return nil, nil, err
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		j.Orderings = append(j.Orderings, jcr.Ordering{
			PropertyID:    pir,
			PropertyName:  o.Path,
			SortDirection: dir,
		})
	}

	j.Limit = cloneInt(q.Limit)
	j.Offset = cloneInt(q.Offset)
	return j, base, nil
}

// DeriveJCRFromText parses DAL query text and derives its JCR.
func (c *Compiler) DeriveJCRFromText(text string) (*jcr.JCR, *meta.Type, error) {
	q, err := dal.Parse(text)
	if err != nil {
		return nil, nil, err
	}
	return c.DeriveJCR(q)
}
