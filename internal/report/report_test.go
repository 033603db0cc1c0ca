package report_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kommetio/reportgrid/internal/compiler"
	"github.com/kommetio/reportgrid/internal/jcr"
	"github.com/kommetio/reportgrid/internal/meta"
	"github.com/kommetio/reportgrid/internal/report"
	"github.com/kommetio/reportgrid/internal/store"
	"github.com/kommetio/reportgrid/internal/testenv"
)

func newService(t *testing.T) (*report.Service, *meta.Registry) {
	t.Helper()
	reg := testenv.Registry(t)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return report.NewService(s, reg), reg
}

const validJCR = `{"baseTypeName": "Account", "properties": [{"name": "name"}, {"name": "revenue"}]}`

func TestSave_MintsIDAndDerivesBaseType(t *testing.T) {
	svc, reg := newService(t)
	ctx := context.Background()

	rt := &report.ReportType{Name: "All accounts", SerializedJCR: validJCR}
	require.NoError(t, svc.Save(ctx, rt))

	assert.Equal(t, meta.ReportTypeKIDPrefix, rt.ID.Prefix())
	account, err := reg.Type("Account")
	require.NoError(t, err)
	assert.Equal(t, account.ID, rt.BaseTypeID)
	assert.False(t, rt.CreatedDate.IsZero())
}

func TestSave_Update(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	rt := &report.ReportType{Name: "All accounts", SerializedJCR: validJCR}
	require.NoError(t, svc.Save(ctx, rt))
	created := rt.CreatedDate

	rt.Description = "every account on file"
	require.NoError(t, svc.Save(ctx, rt))

	got, err := svc.Get(ctx, rt.ID)
	require.NoError(t, err)
	assert.Equal(t, "every account on file", got.Description)
	assert.Equal(t, created.Unix(), got.CreatedDate.Unix())
}

func TestSave_EmptyName(t *testing.T) {
	svc, _ := newService(t)

	err := svc.Save(context.Background(), &report.ReportType{SerializedJCR: validJCR})
	var verr *compiler.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Keys, report.ErrNameEmpty)
}

func TestSave_NoBaseType(t *testing.T) {
	svc, _ := newService(t)

	rt := &report.ReportType{Name: "broken", SerializedJCR: `{"properties": [{"name": "name"}]}`}
	err := svc.Save(context.Background(), rt)
	var verr *compiler.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Keys, report.ErrBaseTypeNotSelected)
}

func TestSave_RevalidatesJCR(t *testing.T) {
	svc, _ := newService(t)

	// field no longer present in the schema
	rt := &report.ReportType{
		Name:          "stale",
		SerializedJCR: `{"baseTypeName": "Account", "properties": [{"name": "discontinuedField"}]}`,
	}
	err := svc.Save(context.Background(), rt)
	var verr *compiler.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Keys, jcr.ErrPropertyUnknown)
}

func TestGetByName_And_List(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, &report.ReportType{Name: "zeta", SerializedJCR: validJCR}))
	require.NoError(t, svc.Save(ctx, &report.ReportType{Name: "alpha", SerializedJCR: validJCR}))

	got, err := svc.GetByName(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)

	parsed, err := got.JCR()
	require.NoError(t, err)
	assert.Equal(t, "Account", parsed.BaseTypeName)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "zeta", all[1].Name)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Get(context.Background(), "00r0000000000")
	assert.ErrorIs(t, err, report.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	rt := &report.ReportType{Name: "doomed", SerializedJCR: validJCR}
	require.NoError(t, svc.Save(ctx, rt))
	require.NoError(t, svc.Delete(ctx, rt.ID))

	_, err := svc.Get(ctx, rt.ID)
	assert.ErrorIs(t, err, report.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, rt.ID), report.ErrNotFound)
}
