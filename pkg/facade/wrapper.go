package facade

import (
	"context"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Wrapper binds one Facade to one Backend and implements Tool.
type Wrapper struct {
	facade  Facade
	backend Backend
	schema  *gojsonschema.Schema
}

// NewWrapper creates a wrapper. The facade's definition must be flat.
func NewWrapper(f Facade, backend Backend) (*Wrapper, error) {
	if f == nil {
		return nil, fmt.Errorf("facade is required")
	}
	if backend == nil {
		return nil, fmt.Errorf("backend is required for %s", f.ToolName())
	}

	def := f.Definition()
	if err := ValidateFlat(def); err != nil {
		return nil, err
	}
	schema, err := compileSchema(def)
	if err != nil {
		return nil, err
	}

	return &Wrapper{facade: f, backend: backend, schema: schema}, nil
}

// Name returns the provider-facing tool name
func (w *Wrapper) Name() string {
	return w.facade.ToolName()
}

// Definition returns the facade's flat definition
func (w *Wrapper) Definition() Definition {
	return w.facade.Definition()
}

// Provider returns the facade's provider
func (w *Wrapper) Provider() Provider {
	return w.facade.Provider()
}

// Facade returns the bound facade
func (w *Wrapper) Facade() Facade {
	return w.facade
}

// MapParams validates args against the definition and maps them to internal params.
func (w *Wrapper) MapParams(args map[string]interface{}) (Params, error) {
	if err := validateArgs(w.schema, w.Name(), args); err != nil {
		return nil, err
	}
	return w.facade.MapParams(args)
}

// Call maps args through the facade and forwards them to the backend,
// returning the backend result unchanged.
func (w *Wrapper) Call(ctx context.Context, args map[string]interface{}) (Result, error) {
	params, err := w.MapParams(args)
	if err != nil {
		return Result{}, err
	}
	return w.backend.Execute(ctx, params)
}
