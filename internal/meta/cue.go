package meta

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// LoadRegistry parses a CUE schema definition into a Registry.
// Uses the CUE SDK's Go API directly (not CLI subprocess).
//
// The expected shape:
//
//	types: {
//		Account: {
//			label:        "Account"
//			prefix:       "010"
//			defaultField: "name"
//			fields: {
//				name:  {type: "text", label: "Name", required: true}
//				owner: {type: "reference", to: "User"}
//			}
//		}
//	}
//
// Field declaration order in the CUE source is preserved; it drives the
// column order offered to report builders.
func LoadRegistry(source string) (*Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(source)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil, fmt.Errorf("schema has no \"types\" struct")
	}

	reg := NewRegistry()
	iter, err := typesVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterate types: %w", err)
	}
	for iter.Next() {
		t, err := parseType(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		if err := reg.AddType(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func parseType(name string, v cue.Value) (*Type, error) {
	t := &Type{Name: name}

	var err error
	if t.Label, err = optString(v, "label"); err != nil {
		return nil, fmt.Errorf("type %s: %w", name, err)
	}
	if t.PluralLabel, err = optString(v, "plural"); err != nil {
		return nil, fmt.Errorf("type %s: %w", name, err)
	}
	if t.KeyPrefix, err = optString(v, "prefix"); err != nil {
		return nil, fmt.Errorf("type %s: %w", name, err)
	}
	if t.Table, err = optString(v, "table"); err != nil {
		return nil, fmt.Errorf("type %s: %w", name, err)
	}
	if t.DefaultField, err = optString(v, "defaultField"); err != nil {
		return nil, fmt.Errorf("type %s: %w", name, err)
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, fmt.Errorf("type %s has no fields", name)
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("type %s: iterate fields: %w", name, err)
	}
	for iter.Next() {
		f, err := parseField(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", name, err)
		}
		if err := t.AddField(f); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func parseField(name string, v cue.Value) (*Field, error) {
	f := &Field{Name: name}

	var err error
	if f.Label, err = optString(v, "label"); err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	if f.Label == "" {
		f.Label = name
	}
	if f.LabelKey, err = optString(v, "labelKey"); err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}

	reqVal := v.LookupPath(cue.ParsePath("required"))
	if reqVal.Exists() {
		if f.Required, err = reqVal.Bool(); err != nil {
			return nil, fmt.Errorf("field %s: required: %w", name, err)
		}
	}

	kindName, err := optString(v, "type")
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	if kindName == "" {
		return nil, fmt.Errorf("field %s has no type", name)
	}
	if f.Kind, err = parseKind(kindName, v); err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	return f, nil
}

func parseKind(kindName string, v cue.Value) (Kind, error) {
	switch kindName {
	case "text", "number", "date", "datetime", "bool":
		return Scalar{Base: ScalarType(kindName)}, nil
	case "enum":
		values, err := stringList(v, "values")
		if err != nil {
			return nil, err
		}
		return Scalar{Base: EnumType, Values: values}, nil
	case "reference":
		to, err := reqString(v, "to")
		if err != nil {
			return nil, err
		}
		return Reference{Type: to}, nil
	case "inverse":
		to, err := reqString(v, "to")
		if err != nil {
			return nil, err
		}
		mappedBy, err := reqString(v, "mappedBy")
		if err != nil {
			return nil, err
		}
		return Inverse{Type: to, MappedBy: mappedBy}, nil
	case "association":
		to, err := reqString(v, "to")
		if err != nil {
			return nil, err
		}
		through, err := reqString(v, "through")
		if err != nil {
			return nil, err
		}
		return Association{Type: to, Through: through}, nil
	case "formula":
		expr, err := reqString(v, "expr")
		if err != nil {
			return nil, err
		}
		result, err := reqString(v, "result")
		if err != nil {
			return nil, err
		}
		return Formula{Expr: expr, Result: ScalarType(result)}, nil
	case "autonumber":
		format, err := reqString(v, "format")
		if err != nil {
			return nil, err
		}
		return AutoNumber{Format: format}, nil
	default:
		return nil, fmt.Errorf("unknown field type %q", kindName)
	}
}

func optString(v cue.Value, path string) (string, error) {
	field := v.LookupPath(cue.ParsePath(path))
	if !field.Exists() {
		return "", nil
	}
	s, err := field.String()
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func reqString(v cue.Value, path string) (string, error) {
	s, err := optString(v, path)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%q is required", path)
	}
	return s, nil
}

func stringList(v cue.Value, path string) ([]string, error) {
	field := v.LookupPath(cue.ParsePath(path))
	if !field.Exists() {
		return nil, nil
	}
	iter, err := field.List()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, s)
	}
	return out, nil
}
