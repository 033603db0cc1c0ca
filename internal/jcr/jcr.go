// Package jcr defines the structured query specification exchanged with
// client-side query and report builders, and its validation rules. A JCR is
// the serializable twin of a DAL query: the compiler keeps the two
// representations semantically equivalent in both directions.
package jcr

import (
	"encoding/json"
	"fmt"

	"github.com/kommetio/reportgrid/internal/dal"
	"github.com/kommetio/reportgrid/internal/meta"
)

// JCR is a query specification. Properties and groupings reference fields
// either by PIR (stable across field renames) or by dotted property name;
// when both are present they must agree.
type JCR struct {
	BaseTypeID   meta.KID      `json:"baseTypeId,omitempty"`
	BaseTypeName string        `json:"baseTypeName,omitempty"`
	Properties   []Property    `json:"properties,omitempty"`
	Groupings    []Grouping    `json:"groupings,omitempty"`
	Restrictions []Restriction `json:"restrictions,omitempty"`
	Orderings    []Ordering    `json:"orderings,omitempty"`
	Limit        *int          `json:"limit,omitempty"`
	Offset       *int          `json:"offset,omitempty"`
}

// Property is one selected column.
type Property struct {
	ID                meta.PIR          `json:"id,omitempty"`
	Name              string            `json:"name,omitempty"`
	Alias             string            `json:"alias,omitempty"`
	AggregateFunction dal.AggregateFunc `json:"aggregateFunction,omitempty"`
}

// Grouping is one GROUP BY term. A grouping never carries an aggregate
// function; that invariant is structural.
type Grouping struct {
	PropertyID   meta.PIR `json:"propertyId,omitempty"`
	PropertyName string   `json:"propertyName,omitempty"`
	Alias        string   `json:"alias,omitempty"`
}

// Ordering is one ORDER BY term. SortDirection is "ASC" or "DESC".
type Ordering struct {
	PropertyID    meta.PIR `json:"propertyId,omitempty"`
	PropertyName  string   `json:"propertyName,omitempty"`
	SortDirection string   `json:"sortDirection,omitempty"`
}

// Restriction is one filter condition; restrictions combine with AND.
type Restriction struct {
	PropertyID   meta.PIR `json:"propertyId,omitempty"`
	PropertyName string   `json:"propertyName,omitempty"`
	Operator     string   `json:"operator"`
	Value        any      `json:"value"`
}

// Deserialize reads a JCR from its JSON form. Unknown JSON properties are
// ignored: builder components attach auxiliary keys (e.g. table search
// state) that are not part of the query.
func Deserialize(data []byte) (*JCR, error) {
	var j JCR
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("deserialize JCR: %w", err)
	}
	return &j, nil
}

// Serialize writes the JCR to its JSON form.
func Serialize(j *JCR) ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("serialize JCR: %w", err)
	}
	return data, nil
}

// BaseType resolves the JCR's base type by id first, then by name.
func (j *JCR) BaseType(prov meta.Provider) (*meta.Type, error) {
	if j.BaseTypeID != "" {
		return prov.Type(j.BaseTypeID.String())
	}
	if j.BaseTypeName != "" {
		return prov.Type(j.BaseTypeName)
	}
	return nil, fmt.Errorf("neither base type id nor name set in JCR")
}

// resolvePath returns the dotted property name for a name/PIR pair. When
// both are set the name must match the path the PIR resolves to.
func resolvePath(name string, pir meta.PIR, prov meta.Provider, base *meta.Type) (string, error) {
	if pir == "" {
		if name == "" {
			return "", fmt.Errorf("neither property name nor PIR set")
		}
		// resolve to verify the path exists
		if _, err := meta.ResolvePIR(prov, base, name); err != nil {
			return "", err
		}
		return name, nil
	}
	path, _, err := pir.Resolve(prov, base)
	if err != nil {
		return "", err
	}
	if name != "" && name != path {
		return "", fmt.Errorf("property name %q does not match PIR %s (path %q)", name, pir, path)
	}
	return path, nil
}

// Path resolves the property to its dotted field path.
func (p Property) Path(prov meta.Provider, base *meta.Type) (string, error) {
	return resolvePath(p.Name, p.ID, prov, base)
}

// Path resolves the grouping to its dotted field path.
func (g Grouping) Path(prov meta.Provider, base *meta.Type) (string, error) {
	return resolvePath(g.PropertyName, g.PropertyID, prov, base)
}

// Path resolves the ordering to its dotted field path.
func (o Ordering) Path(prov meta.Provider, base *meta.Type) (string, error) {
	return resolvePath(o.PropertyName, o.PropertyID, prov, base)
}

// Path resolves the restriction to its dotted field path.
func (r Restriction) Path(prov meta.Provider, base *meta.Type) (string, error) {
	return resolvePath(r.PropertyName, r.ID(), prov, base)
}

// ID returns the restriction's PIR.
func (r Restriction) ID() meta.PIR { return r.PropertyID }
