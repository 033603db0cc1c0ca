package meta

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
)

// System fields present on every type. They are injected by the registry
// when a type is added, so schema definitions never declare them.
const (
	IDField           = "id"
	CreatedDateField  = "createdDate"
	ModifiedDateField = "lastModifiedDate"
)

// IsSystemField reports whether the field name is a platform-managed field.
// System fields get localized column labels instead of schema labels.
func IsSystemField(name string) bool {
	switch name {
	case IDField, CreatedDateField, ModifiedDateField:
		return true
	default:
		return false
	}
}

// SystemFieldLabelKey returns the i18n key for a system field label,
// e.g. "label.field.id".
func SystemFieldLabelKey(name string) string {
	return "label.field." + name
}

// Field is a runtime schema field. Fields are store-resident metadata and
// may change between requests; nothing in the engine caches them beyond a
// single request.
type Field struct {
	ID       KID
	Name     string // api name, e.g. "owner"
	Label    string
	LabelKey string // optional i18n key overriding Label
	Kind     Kind
	Required bool
}

// Type is a runtime schema type.
type Type struct {
	ID          KID
	Name        string // qualified api name, e.g. "Account"
	Label       string
	PluralLabel string // defaults to the inflected plural of Label
	KeyPrefix   string // 3-character record KID prefix
	Table       string // storage table name, defaults to lowercased Name
	// DefaultField names the field used as the human-readable representative
	// of a record when it is reached through a relationship. Every type has
	// exactly one.
	DefaultField string

	fields  []*Field
	byName  map[string]*Field
	byID    map[KID]*Field
}

// AddField appends a field, keeping declaration order. Order matters: it is
// the column order offered by the report builder.
func (t *Type) AddField(f *Field) error {
	if t.byName == nil {
		t.byName = make(map[string]*Field)
		t.byID = make(map[KID]*Field)
	}
	if _, dup := t.byName[f.Name]; dup {
		return fmt.Errorf("type %s: duplicate field %q", t.Name, f.Name)
	}
	if f.ID == "" {
		f.ID = NewKID(FieldKIDPrefix)
	}
	t.fields = append(t.fields, f)
	t.byName[f.Name] = f
	t.byID[f.ID] = f
	return nil
}

// Field resolves a field by api name.
func (t *Type) Field(name string) (*Field, error) {
	if f, ok := t.byName[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: field %q on type %s", ErrNoSuchField, name, t.Name)
}

// FieldByID resolves a field by its KID.
func (t *Type) FieldByID(id KID) (*Field, error) {
	if f, ok := t.byID[id]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: field id %s on type %s", ErrNoSuchField, id, t.Name)
}

// Fields returns all fields in declaration order.
func (t *Type) Fields() []*Field {
	return t.fields
}

// Sentinel lookup errors. Callers treat these as client errors.
var (
	ErrNoSuchType  = fmt.Errorf("no such type")
	ErrNoSuchField = fmt.Errorf("no such field")
)

// Provider resolves schema metadata. The engine depends on this interface
// only; Registry is the in-process implementation.
type Provider interface {
	// Type resolves a type by KID, qualified name, or 3-character key prefix.
	Type(ref string) (*Type, error)
	// Types lists all known types sorted by label.
	Types() []*Type
}

// Registry is the in-memory schema provider. It is immutable after loading
// and safe for concurrent reads.
type Registry struct {
	byID     map[KID]*Type
	byName   map[string]*Type
	byPrefix map[string]*Type
	ordered  []*Type
}

func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[KID]*Type),
		byName:   make(map[string]*Type),
		byPrefix: make(map[string]*Type),
	}
}

// AddType registers a type. System fields are injected, labels defaulted and
// the default-field invariant checked here, so every registered type is
// complete.
func (r *Registry) AddType(t *Type) error {
	if t.Name == "" {
		return fmt.Errorf("type has no name")
	}
	if _, dup := r.byName[t.Name]; dup {
		return fmt.Errorf("duplicate type %q", t.Name)
	}
	if t.ID == "" {
		t.ID = NewKID(TypeKIDPrefix)
	}
	if t.Label == "" {
		t.Label = t.Name
	}
	if t.PluralLabel == "" {
		t.PluralLabel = inflection.Plural(t.Label)
	}
	if t.Table == "" {
		t.Table = strings.ToLower(t.Name)
	}

	if err := injectSystemFields(t); err != nil {
		return err
	}

	if t.DefaultField == "" {
		return fmt.Errorf("type %s has no default field", t.Name)
	}
	if _, err := t.Field(t.DefaultField); err != nil {
		return fmt.Errorf("type %s: default field: %w", t.Name, err)
	}

	r.byID[t.ID] = t
	r.byName[t.Name] = t
	if t.KeyPrefix != "" {
		if _, dup := r.byPrefix[t.KeyPrefix]; dup {
			return fmt.Errorf("duplicate key prefix %q", t.KeyPrefix)
		}
		r.byPrefix[t.KeyPrefix] = t
	}
	r.ordered = append(r.ordered, t)
	return nil
}

func injectSystemFields(t *Type) error {
	system := []*Field{
		{Name: IDField, Label: "ID", LabelKey: SystemFieldLabelKey(IDField), Kind: Scalar{Base: TextType}},
		{Name: CreatedDateField, Label: "Created Date", LabelKey: SystemFieldLabelKey(CreatedDateField), Kind: Scalar{Base: DateTimeType}},
		{Name: ModifiedDateField, Label: "Last Modified Date", LabelKey: SystemFieldLabelKey(ModifiedDateField), Kind: Scalar{Base: DateTimeType}},
	}
	for _, f := range system {
		if _, ok := t.byName[f.Name]; ok {
			return fmt.Errorf("type %s declares reserved field %q", t.Name, f.Name)
		}
		if err := t.AddField(f); err != nil {
			return err
		}
	}
	return nil
}

// Type resolves a type by KID, qualified name, or key prefix.
func (r *Registry) Type(ref string) (*Type, error) {
	if len(ref) == kidLen {
		if t, ok := r.byID[KID(ref)]; ok {
			return t, nil
		}
	}
	if t, ok := r.byName[ref]; ok {
		return t, nil
	}
	if len(ref) == 3 {
		if t, ok := r.byPrefix[ref]; ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoSuchType, ref)
}

// Types lists all registered types sorted by label.
func (r *Registry) Types() []*Type {
	out := make([]*Type, len(r.ordered))
	copy(out, r.ordered)
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// RelatedType resolves the type a relationship field points at. Returns an
// error for non-relationship kinds.
func RelatedType(p Provider, f *Field) (*Type, error) {
	switch kind := f.Kind.(type) {
	case Reference:
		return p.Type(kind.Type)
	case Inverse:
		return p.Type(kind.Type)
	case Association:
		return p.Type(kind.Type)
	default:
		return nil, fmt.Errorf("field %q is not a relationship (kind %s)", f.Name, KindName(f.Kind))
	}
}
