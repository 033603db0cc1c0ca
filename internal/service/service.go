// Package service orchestrates report requests: compile, execute, count,
// encode. It is the one layer that sees a whole request; everything below it
// takes explicit inputs.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kommetio/reportgrid/internal/auth"
	"github.com/kommetio/reportgrid/internal/compiler"
	"github.com/kommetio/reportgrid/internal/export"
	"github.com/kommetio/reportgrid/internal/i18n"
	"github.com/kommetio/reportgrid/internal/jcr"
	"github.com/kommetio/reportgrid/internal/meta"
	"github.com/kommetio/reportgrid/internal/record"
	"github.com/kommetio/reportgrid/internal/store"
)

// ModeDataSource wraps JSON output in the {data, recordCount} envelope
// consumed by table components.
const ModeDataSource = "datasource"

// Request is one report query request. Exactly one of JCR and Query must be
// set.
type Request struct {
	JCR        *jcr.JCR
	Query      string // DAL query text
	Format     export.Format
	Mode       string
	ExportName string
}

// Response is the encoded result.
type Response struct {
	ContentType string
	FileName    string // set for downloadable formats
	Body        []byte
}

// ClientError marks a request the caller can fix: bad input, unknown fields,
// failed validation. Messages are localized for the caller.
type ClientError struct {
	Messages []string
}

func (e *ClientError) Error() string {
	if len(e.Messages) == 1 {
		return e.Messages[0]
	}
	return fmt.Sprintf("invalid request: %v", e.Messages)
}

// Engine runs report requests end to end.
type Engine struct {
	prov  meta.Provider
	comp  *compiler.Compiler
	exec  *store.Executor
	dicts *i18n.Store
	log   *zap.Logger
}

func NewEngine(prov meta.Provider, comp *compiler.Compiler, exec *store.Executor, dicts *i18n.Store, log *zap.Logger) *Engine {
	if dicts == nil {
		dicts = i18n.NewStore()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{prov: prov, comp: comp, exec: exec, dicts: dicts, log: log}
}

// Run executes one request. A nil caller is resolved from the request
// context; absent there too, the request runs unrestricted.
func (e *Engine) Run(ctx context.Context, caller *auth.Data, req Request) (*Response, error) {
	if caller == nil {
		caller = auth.FromContext(ctx)
	}
	dict := e.dicts.For(callerLocale(caller))

	j, err := e.resolveJCR(req, dict)
	if err != nil {
		return nil, err
	}

	res, err := e.comp.Compile(caller, j)
	if err != nil {
		return nil, e.classify(err, dict)
	}

	exq, err := e.exec.ParseQuery(res.Query)
	if err != nil {
		return nil, err
	}
	e.log.Debug("running report query",
		zap.String("user", string(callerID(caller))),
		zap.String("baseType", res.BaseType.Name),
		zap.String("dal", res.Text),
		zap.String("sql", exq.SQL()))

	recs, err := exq.List(ctx)
	if err != nil {
		return nil, err
	}

	format := req.Format
	if format == "" {
		format = export.FormatJSON
	}

	switch format {
	case export.FormatJSON:
		return e.encodeJSON(ctx, caller, req, j, res, recs)
	case export.FormatCSV:
		var buf bytes.Buffer
		enc := &export.CSV{Prov: e.prov}
		if err := enc.Encode(caller, res.BaseType, res.Columns, recs, &buf); err != nil {
			return nil, err
		}
		return &Response{
			ContentType: "text/csv; charset=utf-8",
			FileName:    export.FileName(req.ExportName, res.BaseType, export.FormatCSV),
			Body:        buf.Bytes(),
		}, nil
	case export.FormatXLSX:
		var buf bytes.Buffer
		enc := &export.XLSX{Prov: e.prov}
		if err := enc.Encode(caller, res.BaseType, res.Columns, recs, &buf); err != nil {
			return nil, err
		}
		return &Response{
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			FileName:    export.FileName(req.ExportName, res.BaseType, export.FormatXLSX),
			Body:        buf.Bytes(),
		}, nil
	default:
		return nil, &ClientError{Messages: []string{fmt.Sprintf("unknown export format %q", format)}}
	}
}

func (e *Engine) encodeJSON(ctx context.Context, caller *auth.Data, req Request, j *jcr.JCR, res *compiler.Result, recs []*record.Record) (*Response, error) {
	enc := &export.JSON{Prov: e.prov}

	var body []byte
	var err error
	if req.Mode == ModeDataSource {
		count, cerr := e.Count(ctx, caller, j)
		if cerr != nil {
			return nil, cerr
		}
		body, err = enc.EncodeDataSource(caller, res.BaseType, recs, count)
	} else {
		body, err = enc.EncodeRecords(caller, res.BaseType, recs)
	}
	if err != nil {
		return nil, err
	}
	return &Response{ContentType: "application/json; charset=utf-8", Body: body}, nil
}

// Count returns the total matching record count for a query, ignoring its
// limit/offset window. Grouped queries count their groups.
func (e *Engine) Count(ctx context.Context, caller *auth.Data, j *jcr.JCR) (int64, error) {
	if caller == nil {
		caller = auth.FromContext(ctx)
	}
	res, err := e.comp.CompileCount(caller, j)
	if err != nil {
		return 0, e.classify(err, e.dicts.For(callerLocale(caller)))
	}
	exq, err := e.exec.ParseQuery(res.Query)
	if err != nil {
		return 0, err
	}
	if res.Grouped {
		rows, err := exq.List(ctx)
		if err != nil {
			return 0, err
		}
		return int64(len(rows)), nil
	}
	return exq.Count(ctx)
}

// resolveJCR turns the request into a JCR: either the structured one sent by
// the caller, or one derived from DAL query text.
func (e *Engine) resolveJCR(req Request, dict *i18n.Dictionary) (*jcr.JCR, error) {
	hasJCR := req.JCR != nil
	hasQuery := req.Query != ""
	if hasJCR == hasQuery {
		return nil, &ClientError{Messages: []string{"exactly one of jcr and query must be set"}}
	}
	if hasJCR {
		return req.JCR, nil
	}
	j, _, err := e.comp.DeriveJCRFromText(req.Query)
	if err != nil {
		// malformed query text is always the caller's to fix
		classified := e.classify(err, dict)
		var cerr *ClientError
		if errors.As(classified, &cerr) {
			return nil, classified
		}
		return nil, &ClientError{Messages: []string{err.Error()}}
	}
	return j, nil
}

// classify maps engine errors to client errors where the caller is at fault,
// localizing message keys.
func (e *Engine) classify(err error, dict *i18n.Dictionary) error {
	var verr *compiler.ValidationError
	if errors.As(err, &verr) {
		return &ClientError{Messages: dict.GetAll(verr.Keys)}
	}
	var perr *compiler.PermissionError
	if errors.As(err, &perr) {
		return &ClientError{Messages: []string{dict.Get(perr.Key)}}
	}
	if errors.Is(err, meta.ErrNoSuchType) || errors.Is(err, meta.ErrNoSuchField) || errors.Is(err, meta.ErrTooManyHops) {
		return &ClientError{Messages: []string{err.Error()}}
	}
	return err
}

func callerLocale(caller *auth.Data) string {
	if caller == nil {
		return ""
	}
	return caller.Locale
}

func callerID(caller *auth.Data) meta.KID {
	if caller == nil {
		return ""
	}
	return caller.UserID
}
