package meta

// Kind describes what a field holds.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern forces every consumer (compiler, planner,
// encoders) to handle each variant in an exhaustive type switch instead of
// probing an open-ended type hierarchy.
//
// Variants:
//   - Scalar: a primitive value (text, number, date, datetime, bool, enum)
//   - Reference: relationship to one record of another type
//   - Inverse: to-many collection mapped by a Reference on the other type
//   - Association: many-to-many relationship through a linking type
//   - Formula: computed scalar expression
//   - AutoNumber: store-generated sequence value
type Kind interface {
	kindNode() // Marker method - seals interface to this package
}

// ScalarType enumerates the primitive value types.
type ScalarType string

const (
	TextType     ScalarType = "text"
	NumberType   ScalarType = "number"
	DateType     ScalarType = "date"
	DateTimeType ScalarType = "datetime"
	BoolType     ScalarType = "bool"
	EnumType     ScalarType = "enum"
)

// Scalar is a primitive-valued field.
type Scalar struct {
	Base ScalarType
	// Values holds the allowed values for EnumType scalars.
	Values []string
}

func (Scalar) kindNode() {}

// Reference is a relationship-to-one field. It stores the KID of a record of
// the referenced type and is the only kind a PIR may traverse through.
type Reference struct {
	Type string // qualified name of the referenced type
}

func (Reference) kindNode() {}

// Inverse is a to-many collection of records of another type, mapped by a
// Reference field on that type pointing back here.
type Inverse struct {
	Type     string // qualified name of the collection's record type
	MappedBy string // name of the Reference field on that type
}

func (Inverse) kindNode() {}

// Association is a many-to-many relationship materialized through a linking
// type.
type Association struct {
	Type    string // qualified name of the associated type
	Through string // qualified name of the linking type
}

func (Association) kindNode() {}

// Formula is a computed field. Its value is derived at read time and has a
// scalar result type.
type Formula struct {
	Expr   string
	Result ScalarType
}

func (Formula) kindNode() {}

// AutoNumber is a store-generated sequence field rendered with a format
// pattern, e.g. "INV-{0}".
type AutoNumber struct {
	Format string
}

func (AutoNumber) kindNode() {}

// KindName returns a stable lowercase name for a kind, used in serialized
// type descriptions and error messages.
func KindName(k Kind) string {
	switch kind := k.(type) {
	case Scalar:
		return string(kind.Base)
	case Reference:
		return "reference"
	case Inverse:
		return "inverse"
	case Association:
		return "association"
	case Formula:
		return "formula"
	case AutoNumber:
		return "autonumber"
	default:
		return "unknown"
	}
}

// IsRelationship reports whether the kind points at other records in any
// form (to-one, to-many or many-to-many).
func IsRelationship(k Kind) bool {
	switch k.(type) {
	case Reference, Inverse, Association:
		return true
	default:
		return false
	}
}

// scalarBase returns the primitive type behind a kind, if it has one.
// Formula fields count as scalars of their result type.
func scalarBase(k Kind) (ScalarType, bool) {
	switch kind := k.(type) {
	case Scalar:
		return kind.Base, true
	case Formula:
		return kind.Result, true
	default:
		return "", false
	}
}

// IsScalar reports whether a kind holds a primitive value. Aggregate
// functions apply to scalar kinds only.
func IsScalar(k Kind) bool {
	_, ok := scalarBase(k)
	return ok
}
