package service_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kommetio/reportgrid/internal/auth"
	"github.com/kommetio/reportgrid/internal/compiler"
	"github.com/kommetio/reportgrid/internal/dal"
	"github.com/kommetio/reportgrid/internal/export"
	"github.com/kommetio/reportgrid/internal/jcr"
	"github.com/kommetio/reportgrid/internal/meta"
	"github.com/kommetio/reportgrid/internal/record"
	"github.com/kommetio/reportgrid/internal/service"
	"github.com/kommetio/reportgrid/internal/store"
	"github.com/kommetio/reportgrid/internal/testenv"
)

// newEngine builds an engine over a seeded store: two users, three accounts
// (Acme and Globex owned by Jane, Initech by Bob).
func newEngine(t *testing.T) (*service.Engine, *meta.Registry) {
	t.Helper()
	reg := testenv.Registry(t)

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.EnsureTypeTables(ctx, reg))

	userType, err := reg.Type("User")
	require.NoError(t, err)
	accountType, err := reg.Type("Account")
	require.NoError(t, err)

	insert := func(tp *meta.Type, fields map[string]any) meta.KID {
		r := record.New()
		for k, v := range fields {
			r.SetField(k, v)
		}
		id, err := s.Insert(ctx, tp, r)
		require.NoError(t, err)
		return id
	}
	jane := insert(userType, map[string]any{"name": "Jane", "email": "jane@example.com"})
	bob := insert(userType, map[string]any{"name": "Bob", "email": "bob@example.com"})
	insert(accountType, map[string]any{"name": "Acme", "revenue": float64(1000), "active": true, "owner": jane.String()})
	insert(accountType, map[string]any{"name": "Globex", "revenue": float64(2000), "active": true, "owner": jane.String()})
	insert(accountType, map[string]any{"name": "Initech", "revenue": float64(500), "active": false, "owner": bob.String()})

	comp := compiler.New(reg, nil)
	exec := store.NewExecutor(s, reg)
	return service.NewEngine(reg, comp, exec, nil, nil), reg
}

func intp(v int) *int { return &v }

func TestRun_JSON(t *testing.T) {
	engine, _ := newEngine(t)

	resp, err := engine.Run(context.Background(), auth.System(), service.Request{
		JCR: &jcr.JCR{
			BaseTypeName: "Account",
			Properties:   []jcr.Property{{Name: "name"}, {Name: "owner.name"}},
			Orderings:    []jcr.Ordering{{PropertyName: "name"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json; charset=utf-8", resp.ContentType)
	assert.Empty(t, resp.FileName)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(resp.Body, &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "Acme", rows[0]["name"])
	owner := rows[0]["owner"].(map[string]any)
	assert.Equal(t, "Jane", owner["name"])
}

func TestRun_DataSourceCountsBeyondWindow(t *testing.T) {
	engine, _ := newEngine(t)

	resp, err := engine.Run(context.Background(), auth.System(), service.Request{
		JCR: &jcr.JCR{
			BaseTypeName: "Account",
			Properties:   []jcr.Property{{Name: "name"}},
			Orderings:    []jcr.Ordering{{PropertyName: "name"}},
			Limit:        intp(1),
		},
		Mode: service.ModeDataSource,
	})
	require.NoError(t, err)

	var envelope struct {
		Data        []map[string]any `json:"data"`
		RecordCount int64            `json:"recordCount"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &envelope))
	assert.Len(t, envelope.Data, 1)
	assert.EqualValues(t, 3, envelope.RecordCount)
}

func TestRun_GroupedDataSourceCountsGroups(t *testing.T) {
	engine, _ := newEngine(t)

	resp, err := engine.Run(context.Background(), auth.System(), service.Request{
		JCR: &jcr.JCR{
			BaseTypeName: "Account",
			Properties:   []jcr.Property{{Name: "id", AggregateFunction: dal.Count}},
			Groupings:    []jcr.Grouping{{PropertyName: "owner"}},
		},
		Mode: service.ModeDataSource,
	})
	require.NoError(t, err)

	var envelope struct {
		Data        []map[string]any `json:"data"`
		RecordCount int64            `json:"recordCount"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &envelope))
	assert.Len(t, envelope.Data, 2)
	assert.EqualValues(t, 2, envelope.RecordCount)
}

func TestRun_QueryText(t *testing.T) {
	engine, _ := newEngine(t)

	resp, err := engine.Run(context.Background(), auth.System(), service.Request{
		Query: "SELECT name FROM Account WHERE active = true ORDER BY name ASC",
	})
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(resp.Body, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme", rows[0]["name"])
}

func TestRun_CSVDownload(t *testing.T) {
	engine, _ := newEngine(t)

	resp, err := engine.Run(context.Background(), auth.System(), service.Request{
		JCR: &jcr.JCR{
			BaseTypeName: "Account",
			Properties:   []jcr.Property{{Name: "name"}, {Name: "revenue"}},
			Orderings:    []jcr.Ordering{{PropertyName: "name"}},
		},
		Format: export.FormatCSV,
	})
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", resp.ContentType)
	assert.Equal(t, "Accounts.csv", resp.FileName)
	assert.Contains(t, string(resp.Body), "Acme;1000")
}

func TestRun_XLSXDownloadWithExportName(t *testing.T) {
	engine, _ := newEngine(t)

	resp, err := engine.Run(context.Background(), auth.System(), service.Request{
		JCR: &jcr.JCR{
			BaseTypeName: "Account",
			Properties:   []jcr.Property{{Name: "name"}},
		},
		Format:     export.FormatXLSX,
		ExportName: "pipeline",
	})
	require.NoError(t, err)
	assert.Equal(t, "pipeline.xlsx", resp.FileName)
	assert.NotEmpty(t, resp.Body)
}

func TestRun_ExactlyOneInput(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	_, err := engine.Run(ctx, auth.System(), service.Request{})
	var cerr *service.ClientError
	require.ErrorAs(t, err, &cerr)

	_, err = engine.Run(ctx, auth.System(), service.Request{
		JCR:   &jcr.JCR{BaseTypeName: "Account", Properties: []jcr.Property{{Name: "name"}}},
		Query: "SELECT name FROM Account",
	})
	require.ErrorAs(t, err, &cerr)
}

func TestRun_ValidationMessagesLocalized(t *testing.T) {
	engine, _ := newEngine(t)

	_, err := engine.Run(context.Background(), auth.System(), service.Request{
		JCR: &jcr.JCR{BaseTypeName: "Account"},
	})
	var cerr *service.ClientError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Messages, "No properties or groupings selected")
}

func TestRun_PermissionDenied(t *testing.T) {
	engine, reg := newEngine(t)
	account, err := reg.Type("Account")
	require.NoError(t, err)
	revenue, err := account.Field("revenue")
	require.NoError(t, err)

	caller := &auth.Data{UserID: "005testuser00", Locale: "en_US", Perms: auth.NewDenySet().DenyField(revenue.ID)}

	_, err = engine.Run(context.Background(), caller, service.Request{
		JCR: &jcr.JCR{BaseTypeName: "Account", Properties: []jcr.Property{{Name: "revenue"}}},
	})
	var cerr *service.ClientError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Messages, "You do not have permission to read this field")
}

func TestRun_CallerResolvedFromContext(t *testing.T) {
	// identity installed on the context gates the request when no explicit
	// caller is passed, as the HTTP handler does
	engine, reg := newEngine(t)
	account, err := reg.Type("Account")
	require.NoError(t, err)
	revenue, err := account.Field("revenue")
	require.NoError(t, err)

	caller := &auth.Data{UserID: "005testuser00", Locale: "en_US", Perms: auth.NewDenySet().DenyField(revenue.ID)}
	ctx := auth.NewContext(context.Background(), caller)

	_, err = engine.Run(ctx, nil, service.Request{
		JCR: &jcr.JCR{BaseTypeName: "Account", Properties: []jcr.Property{{Name: "revenue"}}},
	})
	var cerr *service.ClientError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Messages, "You do not have permission to read this field")
}

func TestRun_MalformedQueryText(t *testing.T) {
	engine, _ := newEngine(t)

	_, err := engine.Run(context.Background(), auth.System(), service.Request{
		Query: "SELECT FROM WHERE",
	})
	var cerr *service.ClientError
	assert.ErrorAs(t, err, &cerr)
}
