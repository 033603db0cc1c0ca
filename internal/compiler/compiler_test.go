package compiler_test

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kommetio/reportgrid/internal/auth"
	"github.com/kommetio/reportgrid/internal/compiler"
	"github.com/kommetio/reportgrid/internal/dal"
	"github.com/kommetio/reportgrid/internal/jcr"
	"github.com/kommetio/reportgrid/internal/meta"
	"github.com/kommetio/reportgrid/internal/testenv"
)

func newCompiler(t *testing.T) (*compiler.Compiler, *meta.Registry) {
	t.Helper()
	reg := testenv.Registry(t)
	return compiler.New(reg, nil), reg
}

func intp(v int) *int { return &v }

func TestCompile_Simple(t *testing.T) {
	c, _ := newCompiler(t)

	j := &jcr.JCR{
		BaseTypeName: "Account",
		Properties: []jcr.Property{
			{Name: "name", Alias: "accountName"},
			{Name: "revenue"},
		},
		Restrictions: []jcr.Restriction{{PropertyName: "revenue", Operator: "gt", Value: float64(1000)}},
		Orderings:    []jcr.Ordering{{PropertyName: "name", SortDirection: "DESC"}},
		Limit:        intp(10),
		Offset:       intp(5),
	}

	res, err := c.Compile(auth.System(), j)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT name AS accountName, revenue FROM Account WHERE revenue > 1000 ORDER BY name DESC LIMIT 10 OFFSET 5",
		res.Text)
	assert.Equal(t, "Account", res.BaseType.Name)
	assert.False(t, res.Grouped)

	require.Len(t, res.Columns, 2)
	assert.Equal(t, "accountName", res.Columns[0].Label)
	assert.Equal(t, "Annual Revenue", res.Columns[1].Label)
	assert.False(t, res.Columns[0].Aux)
}

func TestCompile_RelationshipGrouping(t *testing.T) {
	c, _ := newCompiler(t)

	j := &jcr.JCR{
		BaseTypeName: "Account",
		Properties:   []jcr.Property{{Name: "id", AggregateFunction: dal.Count}},
		Groupings:    []jcr.Grouping{{PropertyName: "owner"}},
	}

	res, err := c.Compile(auth.System(), j)
	require.NoError(t, err)

	// grouping on a reference pulls in the related default field
	assert.Equal(t,
		"SELECT COUNT(id), owner, owner.name FROM Account GROUP BY owner, owner.name",
		res.Text)
	assert.True(t, res.Grouped)

	require.Len(t, res.Columns, 3)
	assert.Equal(t, "COUNT(id)", res.Columns[0].Key())
	assert.False(t, res.Columns[0].Aux)
	assert.Equal(t, "owner", res.Columns[1].Path)
	assert.True(t, res.Columns[1].Aux)
	assert.Equal(t, "owner.name", res.Columns[2].Path)
	assert.True(t, res.Columns[2].Aux)
}

func TestCompile_GroupingOnID_NoAuxiliaryColumn(t *testing.T) {
	c, _ := newCompiler(t)

	j := &jcr.JCR{
		BaseTypeName: "Account",
		Properties:   []jcr.Property{{Name: "id", AggregateFunction: dal.Count}},
		Groupings:    []jcr.Grouping{{PropertyName: "owner.id"}},
	}

	res, err := c.Compile(auth.System(), j)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(id), owner.id FROM Account GROUP BY owner.id", res.Text)
}

func TestCompile_ScalarGrouping_NoAuxiliaryColumn(t *testing.T) {
	c, _ := newCompiler(t)

	j := &jcr.JCR{
		BaseTypeName: "Account",
		Properties:   []jcr.Property{{Name: "id", AggregateFunction: dal.Count, Alias: "total"}},
		Groupings:    []jcr.Grouping{{PropertyName: "industry"}},
	}

	res, err := c.Compile(auth.System(), j)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(id) AS total, industry FROM Account GROUP BY industry", res.Text)

	require.Len(t, res.Columns, 2)
	assert.Equal(t, "total", res.Columns[0].Label)
	assert.Equal(t, "Industry", res.Columns[1].Label)
}

func TestCompile_GroupingAlreadySelected(t *testing.T) {
	c, _ := newCompiler(t)

	j := &jcr.JCR{
		BaseTypeName: "Account",
		Properties: []jcr.Property{
			{Name: "industry"},
			{Name: "id", AggregateFunction: dal.Count},
		},
		Groupings: []jcr.Grouping{{PropertyName: "industry"}},
	}

	res, err := c.Compile(auth.System(), j)
	require.NoError(t, err)
	// industry is selected once, as the property
	assert.Equal(t, "SELECT industry, COUNT(id) FROM Account GROUP BY industry", res.Text)
	require.Len(t, res.Columns, 2)
}

func TestCompile_SystemFieldLabel(t *testing.T) {
	c, _ := newCompiler(t)

	j := &jcr.JCR{
		BaseTypeName: "Account",
		Properties:   []jcr.Property{{Name: "name"}, {Name: "createdDate"}},
	}

	res, err := c.Compile(auth.System(), j)
	require.NoError(t, err)
	require.Len(t, res.Columns, 2)
	assert.Equal(t, "Created Date", res.Columns[1].Label)
}

func TestCompile_ValidationFailure(t *testing.T) {
	c, _ := newCompiler(t)

	_, err := c.Compile(auth.System(), &jcr.JCR{BaseTypeName: "Account"})
	var verr *compiler.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Keys, jcr.ErrNoPropertiesSelected)
}

func TestCompile_FieldNotReadable(t *testing.T) {
	c, reg := newCompiler(t)
	account, err := reg.Type("Account")
	require.NoError(t, err)
	revenue, err := account.Field("revenue")
	require.NoError(t, err)

	caller := &auth.Data{UserID: "005testuser00", Perms: auth.NewDenySet().DenyField(revenue.ID)}

	j := &jcr.JCR{
		BaseTypeName: "Account",
		Properties:   []jcr.Property{{Name: "name"}, {Name: "revenue"}},
	}
	_, err = c.Compile(caller, j)
	var perr *compiler.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, compiler.KeyFieldNotReadable, perr.Key)
	assert.Equal(t, "Account.revenue", perr.Subject)
}

func TestCompile_TraversedTypeNotReadable(t *testing.T) {
	c, reg := newCompiler(t)
	user, err := reg.Type("User")
	require.NoError(t, err)

	caller := &auth.Data{UserID: "005testuser00", Perms: auth.NewDenySet().DenyType(user.ID)}

	j := &jcr.JCR{
		BaseTypeName: "Account",
		Properties:   []jcr.Property{{Name: "owner.name"}},
	}
	_, err = c.Compile(caller, j)
	var perr *compiler.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, compiler.KeyTypeNotReadable, perr.Key)
	assert.Equal(t, "User", perr.Subject)
}

func TestCompile_BaseTypeNotReadable(t *testing.T) {
	c, reg := newCompiler(t)
	account, err := reg.Type("Account")
	require.NoError(t, err)

	caller := &auth.Data{UserID: "005testuser00", Perms: auth.NewDenySet().DenyType(account.ID)}

	j := &jcr.JCR{BaseTypeName: "Account", Properties: []jcr.Property{{Name: "name"}}}
	_, err = c.Compile(caller, j)
	var perr *compiler.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, compiler.KeyTypeNotReadable, perr.Key)
}

func TestDeriveJCR_RoundTrip(t *testing.T) {
	c, _ := newCompiler(t)

	j := &jcr.JCR{
		BaseTypeName: "Account",
		Properties: []jcr.Property{
			{Name: "name", Alias: "accountName"},
			{Name: "owner.email"},
		},
		Restrictions: []jcr.Restriction{{PropertyName: "active", Operator: "=", Value: true}},
		Orderings:    []jcr.Ordering{{PropertyName: "name", SortDirection: "ASC"}},
		Limit:        intp(50),
	}

	first, err := c.Compile(auth.System(), j)
	require.NoError(t, err)

	derived, base, err := c.DeriveJCR(first.Query)
	require.NoError(t, err)
	assert.Equal(t, "Account", base.Name)
	require.Len(t, derived.Properties, 2)
	assert.Equal(t, "name", derived.Properties[0].Name)
	assert.Equal(t, "accountName", derived.Properties[0].Alias)
	assert.NotEmpty(t, derived.Properties[0].ID)
	assert.Equal(t, "owner.email", derived.Properties[1].Name)

	// compiling the derived JCR reproduces the query text
	second, err := c.Compile(auth.System(), derived)
	require.NoError(t, err)
	assert.Equal(t, first.Text, second.Text)
}

func TestDeriveJCR_GroupedSelectBecomesGrouping(t *testing.T) {
	c, _ := newCompiler(t)

	derived, _, err := c.DeriveJCRFromText("SELECT COUNT(id), industry FROM Account GROUP BY industry")
	require.NoError(t, err)

	require.Len(t, derived.Properties, 1)
	assert.Equal(t, dal.Count, derived.Properties[0].AggregateFunction)
	require.Len(t, derived.Groupings, 1)
	assert.Equal(t, "industry", derived.Groupings[0].PropertyName)

	res, err := c.Compile(auth.System(), derived)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(id), industry FROM Account GROUP BY industry", res.Text)
}

func TestRelationshipGrouping_IsNotUndone(t *testing.T) {
	c, _ := newCompiler(t)

	j := &jcr.JCR{
		BaseTypeName: "Account",
		Properties:   []jcr.Property{{Name: "id", AggregateFunction: dal.Count}},
		Groupings:    []jcr.Grouping{{PropertyName: "owner"}},
	}

	first, err := c.Compile(auth.System(), j)
	require.NoError(t, err)

	// the auxiliary owner.name column derives as an ordinary grouping
	derived, _, err := c.DeriveJCR(first.Query)
	require.NoError(t, err)
	require.Len(t, derived.Groupings, 2)
	assert.Equal(t, "owner", derived.Groupings[0].PropertyName)
	assert.Equal(t, "owner.name", derived.Groupings[1].PropertyName)

	// recompiling is a fixed point, not a second augmentation
	second, err := c.Compile(auth.System(), derived)
	require.NoError(t, err)
	assert.Equal(t, first.Text, second.Text)
}

func TestCountJCR_Ungrouped(t *testing.T) {
	c, _ := newCompiler(t)

	j := &jcr.JCR{
		BaseTypeName: "Account",
		Properties:   []jcr.Property{{Name: "name"}},
		Restrictions: []jcr.Restriction{{PropertyName: "active", Operator: "=", Value: true}},
		Orderings:    []jcr.Ordering{{PropertyName: "name", SortDirection: "DESC"}},
		Limit:        intp(10),
		Offset:       intp(20),
	}

	res, err := c.CompileCount(auth.System(), j)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(id) FROM Account WHERE active = true", res.Text)
	assert.False(t, res.Grouped)
	assert.Equal(t, "COUNT(id)", compiler.CountKey)
}

func TestCountJCR_GroupedKeepsGroupings(t *testing.T) {
	c, _ := newCompiler(t)

	j := &jcr.JCR{
		BaseTypeName: "Account",
		Properties:   []jcr.Property{{Name: "id", AggregateFunction: dal.Count}},
		Groupings:    []jcr.Grouping{{PropertyName: "industry"}},
		Limit:        intp(10),
	}

	res, err := c.CompileCount(auth.System(), j)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(id), industry FROM Account GROUP BY industry", res.Text)
	assert.True(t, res.Grouped)
}

func TestCompile_Golden(t *testing.T) {
	c, _ := newCompiler(t)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	cases := []struct {
		name string
		j    *jcr.JCR
	}{
		{
			name: "simple_select",
			j: &jcr.JCR{
				BaseTypeName: "Account",
				Properties:   []jcr.Property{{Name: "name"}, {Name: "owner.name"}},
				Restrictions: []jcr.Restriction{{PropertyName: "name", Operator: "like", Value: "Acme%"}},
				Orderings:    []jcr.Ordering{{PropertyName: "name"}},
				Limit:        intp(100),
			},
		},
		{
			name: "grouped_relationship",
			j: &jcr.JCR{
				BaseTypeName: "Account",
				Properties:   []jcr.Property{{Name: "revenue", AggregateFunction: dal.Sum, Alias: "totalRevenue"}},
				Groupings:    []jcr.Grouping{{PropertyName: "owner"}},
			},
		},
		{
			name: "grouped_scalar",
			j: &jcr.JCR{
				BaseTypeName: "Account",
				Properties:   []jcr.Property{{Name: "id", AggregateFunction: dal.Count, Alias: "accounts"}},
				Groupings:    []jcr.Grouping{{PropertyName: "industry"}, {PropertyName: "active"}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := c.Compile(auth.System(), tc.j)
			require.NoError(t, err)
			g.Assert(t, tc.name, []byte(res.Text))
		})
	}
}
