package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kommetio/reportgrid/internal/record"
)

func TestSetField_Nested(t *testing.T) {
	r := record.New()
	r.SetField("name", "Acme")
	r.SetField("owner.name", "Jane")
	r.SetField("owner.manager.email", "boss@example.com")

	v, ok := r.Field("name")
	require.True(t, ok)
	assert.Equal(t, "Acme", v)

	v, ok = r.Field("owner.name")
	require.True(t, ok)
	assert.Equal(t, "Jane", v)

	v, ok = r.Field("owner.manager.email")
	require.True(t, ok)
	assert.Equal(t, "boss@example.com", v)

	_, ok = r.Field("owner.email")
	assert.False(t, ok)
	_, ok = r.Field("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"name", "owner"}, r.FieldNames())
}

func TestSetField_ReferenceIdAndNestedCoexist(t *testing.T) {
	// a query may select "owner" alongside "owner.name"; the raw id folds
	// into the nested record instead of one value clobbering the other
	r := record.New()
	r.SetField("owner", "0050000000abc")
	r.SetField("owner.name", "Bob")

	v, ok := r.Field("owner.id")
	require.True(t, ok)
	assert.Equal(t, "0050000000abc", v)
	v, ok = r.Field("owner.name")
	require.True(t, ok)
	assert.Equal(t, "Bob", v)

	// same outcome with the nested path set first
	r = record.New()
	r.SetField("owner.name", "Bob")
	r.SetField("owner", "0050000000abc")

	v, ok = r.Field("owner.id")
	require.True(t, ok)
	assert.Equal(t, "0050000000abc", v)
	v, ok = r.Field("owner.name")
	require.True(t, ok)
	assert.Equal(t, "Bob", v)

	assert.Equal(t, []string{"owner"}, r.FieldNames())
}

func TestField_NilValueIsSet(t *testing.T) {
	r := record.New()
	r.SetField("revenue", nil)

	v, ok := r.Field("revenue")
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.True(t, r.IsSet("revenue"))
}

func TestProjection_PlainThenAggregate(t *testing.T) {
	r := record.New()
	r.SetField("owner.name", "Jane")
	r.SetAggregate("COUNT(id)", int64(7))

	p := record.Project(r)

	v, err := p.Value("owner.name")
	require.NoError(t, err)
	assert.Equal(t, "Jane", v)

	v, err = p.Value("COUNT(id)")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

func TestProjection_UnknownColumn(t *testing.T) {
	r := record.New()
	r.SetField("name", "Acme")

	_, err := record.Project(r).Value("SUM(revenue)")
	require.Error(t, err)
	assert.ErrorIs(t, err, record.ErrUnknownColumn)
}

func TestProjection_PlainWinsOverAggregate(t *testing.T) {
	// when a row has both, the plain field value takes precedence
	r := record.New()
	r.SetField("name", "plain")
	r.SetAggregate("name", "aggregate")

	v, err := record.Project(r).Value("name")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)
}
