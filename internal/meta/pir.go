package meta

import (
	"fmt"
	"strings"
)

// PIR - Property Identifier Reference. The stable identifier for a field
// path rooted at a base type: the KIDs of each field on the path joined with
// dots, e.g. "003ab12cd34ef.00398765fedcb" for "owner.name". Field api names
// can be renamed by users; the PIR survives renames.
type PIR string

// MaxPathDepth bounds the number of relationship hops a property path may
// traverse. The schema itself imposes no limit, so an explicit bound guards
// against pathological queries.
const MaxPathDepth = 5

// ErrTooManyHops is returned when a path crosses more than MaxPathDepth
// relationship hops.
var ErrTooManyHops = fmt.Errorf("property path exceeds %d relationship hops", MaxPathDepth)

func (p PIR) String() string { return string(p) }

// ResolvePIR builds a PIR from a dotted property name rooted at base.
// Every hop except the last must be a Reference field; to-many collections
// cannot be traversed in a report column.
func ResolvePIR(prov Provider, base *Type, path string) (PIR, error) {
	segments := strings.Split(path, ".")
	if len(segments)-1 > MaxPathDepth {
		return "", fmt.Errorf("%w: %q", ErrTooManyHops, path)
	}

	ids := make([]string, 0, len(segments))
	t := base
	for i, seg := range segments {
		f, err := t.Field(seg)
		if err != nil {
			return "", err
		}
		ids = append(ids, f.ID.String())
		if i == len(segments)-1 {
			break
		}
		ref, ok := f.Kind.(Reference)
		if !ok {
			return "", fmt.Errorf("cannot traverse field %q on type %s: kind %s is not a reference", seg, t.Name, KindName(f.Kind))
		}
		t, err = prov.Type(ref.Type)
		if err != nil {
			return "", err
		}
	}
	return PIR(strings.Join(ids, ".")), nil
}

// Resolve translates a PIR back to its dotted property name and terminal
// field. Inverse of ResolvePIR for any PIR minted against the same schema.
func (p PIR) Resolve(prov Provider, base *Type) (string, *Field, error) {
	if p == "" {
		return "", nil, fmt.Errorf("empty PIR")
	}
	ids := strings.Split(string(p), ".")
	if len(ids)-1 > MaxPathDepth {
		return "", nil, fmt.Errorf("%w: %s", ErrTooManyHops, p)
	}

	names := make([]string, 0, len(ids))
	t := base
	var field *Field
	for i, id := range ids {
		f, err := t.FieldByID(KID(id))
		if err != nil {
			return "", nil, err
		}
		names = append(names, f.Name)
		field = f
		if i == len(ids)-1 {
			break
		}
		ref, ok := f.Kind.(Reference)
		if !ok {
			return "", nil, fmt.Errorf("PIR %s traverses field %q on type %s which is not a reference", p, f.Name, t.Name)
		}
		t, err = prov.Type(ref.Type)
		if err != nil {
			return "", nil, err
		}
	}
	return strings.Join(names, "."), field, nil
}

// FieldAt resolves the terminal field of a dotted property name without
// minting a PIR. Used where only the field metadata is needed.
func FieldAt(prov Provider, base *Type, path string) (*Field, error) {
	pir, err := ResolvePIR(prov, base, path)
	if err != nil {
		return nil, err
	}
	_, f, err := pir.Resolve(prov, base)
	return f, err
}
