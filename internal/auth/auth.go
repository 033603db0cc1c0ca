// Package auth carries the caller identity and permissions through a
// request. The engine never consults ambient state: every compiler, planner
// and encoder call takes a *Data parameter, and the HTTP layer scopes one to
// the request via context.Context so it is released on every exit path.
package auth

import (
	"context"

	"github.com/kommetio/reportgrid/internal/meta"
)

// Permissions answers read checks for types and fields. Implementations are
// immutable per request.
type Permissions interface {
	CanReadType(id meta.KID) bool
	CanReadField(id meta.KID) bool
}

// Data is the caller identity for one request.
type Data struct {
	UserID meta.KID
	Locale string
	Perms  Permissions
}

// System returns an unrestricted caller, used by the CLI and by internal
// maintenance paths.
func System() *Data {
	return &Data{UserID: "000sys0000000", Locale: "en_US", Perms: allowAll{}}
}

// CanReadType reports whether the caller may read any field of the type.
func (d *Data) CanReadType(t *meta.Type) bool {
	if d == nil || d.Perms == nil {
		return true
	}
	return d.Perms.CanReadType(t.ID)
}

// CanReadField reports whether the caller may read the field.
func (d *Data) CanReadField(f *meta.Field) bool {
	if d == nil || d.Perms == nil {
		return true
	}
	return d.Perms.CanReadField(f.ID)
}

type allowAll struct{}

func (allowAll) CanReadType(meta.KID) bool  { return true }
func (allowAll) CanReadField(meta.KID) bool { return true }

// DenySet is a Permissions implementation that allows everything except the
// listed type and field ids.
type DenySet struct {
	types  map[meta.KID]bool
	fields map[meta.KID]bool
}

func NewDenySet() *DenySet {
	return &DenySet{types: make(map[meta.KID]bool), fields: make(map[meta.KID]bool)}
}

func (s *DenySet) DenyType(id meta.KID) *DenySet {
	s.types[id] = true
	return s
}

func (s *DenySet) DenyField(id meta.KID) *DenySet {
	s.fields[id] = true
	return s
}

func (s *DenySet) CanReadType(id meta.KID) bool  { return !s.types[id] }
func (s *DenySet) CanReadField(id meta.KID) bool { return !s.fields[id] }

type ctxKey struct{}

// NewContext installs the caller identity on a request context. The identity
// lives exactly as long as the request: there is no global slot to clear, so
// a reused worker can never observe another caller's identity.
func NewContext(ctx context.Context, d *Data) context.Context {
	return context.WithValue(ctx, ctxKey{}, d)
}

// FromContext retrieves the caller identity installed by NewContext, or nil.
func FromContext(ctx context.Context) *Data {
	d, _ := ctx.Value(ctxKey{}).(*Data)
	return d
}
