package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/kommetio/reportgrid/internal/compiler"
	"github.com/kommetio/reportgrid/internal/jcr"
	"github.com/kommetio/reportgrid/internal/meta"
	"github.com/kommetio/reportgrid/internal/service"
	"github.com/kommetio/reportgrid/internal/store"
)

// loadRegistry reads and compiles the CUE schema file.
func loadRegistry(path string) (*meta.Registry, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("read schema %s", path), Err: err}
	}
	reg, err := meta.LoadRegistry(string(source))
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("load schema %s", path), Err: err}
	}
	return reg, nil
}

// loadJCRFile reads and deserializes a JCR JSON file.
func loadJCRFile(path string) (*jcr.JCR, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("read JCR %s", path), Err: err}
	}
	j, err := jcr.Deserialize(data)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("parse JCR %s", path), Err: err}
	}
	return j, nil
}

// openEngine wires the full stack: schema, store, executor, compiler.
// The caller closes the returned store.
func openEngine(opts *RootOptions) (*service.Engine, *store.Store, error) {
	reg, err := loadRegistry(opts.Schema)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(opts.DB)
	if err != nil {
		return nil, nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("open database %s", opts.DB), Err: err}
	}
	if err := s.EnsureTypeTables(context.Background(), reg); err != nil {
		s.Close()
		return nil, nil, &ExitError{Code: ExitCommandError, Message: "create type tables", Err: err}
	}
	engine := service.NewEngine(reg, compiler.New(reg, nil), store.NewExecutor(s, reg), nil, nil)
	return engine, s, nil
}
