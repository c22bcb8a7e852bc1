// Package facade presents one tool contract to several LLM providers.
//
// A Facade owns the provider-facing name, a flat parameter schema and a pure
// mapping from provider arguments to the tool's internal Params. A Wrapper
// binds one Facade to one Backend and implements Tool, so the provider layer
// only ever sees Wrapper.Name, Wrapper.Definition and Wrapper.Call.
//
// Invariants:
// - Definitions are flat: properties are scalars or arrays of scalars, never oneOf/anyOf/allOf.
// - MapParams has no side effects; all effects happen inside the Backend.
// - Registry keys are (provider, tool name) and are unique.
//
// Usage:
//
//	reg, _ := facade.NewRegistry()
//	wrappers, _ := reg.Bind(facade.Gemini, facade.Backends{facade.FamilyLs: lsBackend})
//	res, err := wrappers[0].Call(ctx, map[string]any{"path": "src"})
package facade
