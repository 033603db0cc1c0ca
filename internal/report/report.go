// Package report manages saved report definitions. A report type pairs a
// name with a serialized JCR; the JCR is re-validated against the current
// schema on every save, because the schema can change between saves.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kommetio/reportgrid/internal/compiler"
	"github.com/kommetio/reportgrid/internal/jcr"
	"github.com/kommetio/reportgrid/internal/meta"
	"github.com/kommetio/reportgrid/internal/store"
)

// Validation error keys specific to report definitions.
const (
	ErrNameEmpty           = "reports.reporttypename.empty"
	ErrBaseTypeNotSelected = "reports.basetype.not.selected"
)

// ErrNotFound is returned when no report definition matches a lookup.
var ErrNotFound = errors.New("report type not found")

// ReportType is a saved report definition.
type ReportType struct {
	ID               meta.KID
	Name             string
	Description      string
	BaseTypeID       meta.KID
	SerializedJCR    string
	CreatedDate      time.Time
	LastModifiedDate time.Time
}

// JCR deserializes the report's query specification.
func (rt *ReportType) JCR() (*jcr.JCR, error) {
	return jcr.Deserialize([]byte(rt.SerializedJCR))
}

// Service persists report definitions on the platform store.
type Service struct {
	store *store.Store
	prov  meta.Provider
}

func NewService(s *store.Store, prov meta.Provider) *Service {
	return &Service{store: s, prov: prov}
}

// Save validates and persists a report definition. A missing id mints a new
// one; an existing id updates in place, preserving the creation date. The
// base type id is derived from the JCR, not trusted from the caller.
func (s *Service) Save(ctx context.Context, rt *ReportType) error {
	var keys []string
	if rt.Name == "" {
		keys = append(keys, ErrNameEmpty)
	}

	parsed, err := rt.JCR()
	if err != nil {
		return fmt.Errorf("report %q: %w", rt.Name, err)
	}
	if parsed.BaseTypeID == "" && parsed.BaseTypeName == "" {
		keys = append(keys, ErrBaseTypeNotSelected)
		return &compiler.ValidationError{Keys: keys}
	}
	keys = append(keys, jcr.Validate(parsed, s.prov)...)
	if len(keys) > 0 {
		return &compiler.ValidationError{Keys: keys}
	}

	base, err := parsed.BaseType(s.prov)
	if err != nil {
		return err
	}
	rt.BaseTypeID = base.ID

	now := time.Now().UTC()
	if rt.ID == "" {
		rt.ID = meta.NewKID(meta.ReportTypeKIDPrefix)
		rt.CreatedDate = now
	}
	rt.LastModifiedDate = now

	_, err = s.store.DB().ExecContext(ctx, `
		INSERT INTO reporttype (id, name, description, basetypeid, serializedjcr, createddate, lastmodifieddate)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			basetypeid = excluded.basetypeid,
			serializedjcr = excluded.serializedjcr,
			lastmodifieddate = excluded.lastmodifieddate`,
		rt.ID.String(), rt.Name, rt.Description, rt.BaseTypeID.String(), rt.SerializedJCR,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save report %q: %w", rt.Name, err)
	}
	return nil
}

// Get fetches a report definition by id.
func (s *Service) Get(ctx context.Context, id meta.KID) (*ReportType, error) {
	return s.get(ctx, "id = ?", id.String())
}

// GetByName fetches a report definition by its unique name.
func (s *Service) GetByName(ctx context.Context, name string) (*ReportType, error) {
	return s.get(ctx, "name = ?", name)
}

func (s *Service) get(ctx context.Context, cond string, arg any) (*ReportType, error) {
	row := s.store.DB().QueryRowContext(ctx,
		"SELECT id, name, description, basetypeid, serializedjcr, createddate, lastmodifieddate FROM reporttype WHERE "+cond, arg)
	rt, err := scanReportType(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, arg)
	}
	return rt, err
}

// List returns all report definitions ordered by name.
func (s *Service) List(ctx context.Context) ([]*ReportType, error) {
	rows, err := s.store.Query(ctx,
		"SELECT id, name, description, basetypeid, serializedjcr, createddate, lastmodifieddate FROM reporttype ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []*ReportType
	for rows.Next() {
		rt, err := scanReportType(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// Delete removes a report definition.
func (s *Service) Delete(ctx context.Context, id meta.KID) error {
	res, err := s.store.DB().ExecContext(ctx, "DELETE FROM reporttype WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanReportType(scan func(...any) error) (*ReportType, error) {
	var rt ReportType
	var id, baseID, created, modified string
	if err := scan(&id, &rt.Name, &rt.Description, &baseID, &rt.SerializedJCR, &created, &modified); err != nil {
		return nil, err
	}
	rt.ID = meta.KID(id)
	rt.BaseTypeID = meta.KID(baseID)

	var err error
	if rt.CreatedDate, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("report %s: parse created date: %w", id, err)
	}
	if rt.LastModifiedDate, err = time.Parse(time.RFC3339, modified); err != nil {
		return nil, fmt.Errorf("report %s: parse modified date: %w", id, err)
	}
	return &rt, nil
}
