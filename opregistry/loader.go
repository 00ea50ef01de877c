package opregistry

import (
	"fmt"
	"os"
	"plugin"
)

// OperatorLoader is the "capability parameter" spec §9 asks for: a way to
// load a symbol without the kernel linking to any particular dynamic
// loader. The kernel only ever calls through this interface, never
// package plugin directly, so a future backend-specific loader (e.g. one
// that fetches operator modules from the distributed KV store) can be
// substituted without touching opregistry's resolution logic.
type OperatorLoader interface {
	// Open loads the module at path and returns an opaque handle.
	Open(path string) (interface{}, error)
	// Lookup resolves symbol within an already-open module handle and
	// returns it as a Func.
	Lookup(handle interface{}, symbol string) (Func, error)
	// Close unloads a module handle.
	Close(handle interface{}) error
}

// PluginLoader is the default OperatorLoader, backed by Go's native
// plugin package, the same mechanism the pack's dynamic provider loader
// uses (plugin.Open / Lookup) to load .so modules at runtime.
type PluginLoader struct{}

// Open loads the plugin at path.
func (PluginLoader) Open(path string) (interface{}, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opregistry: operator module %s does not exist: %w", path, err)
	}
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opregistry: failed to open operator module %s: %w", path, err)
	}
	return p, nil
}

// Lookup resolves symbol as a Func within the given plugin handle. The
// module must export the symbol as a variable of type opregistry.Func
// (or a pointer to one), matching the pack's convention of exporting a
// single well-known symbol per plugin.
func (PluginLoader) Lookup(handle interface{}, symbol string) (Func, error) {
	p, ok := handle.(*plugin.Plugin)
	if !ok {
		return nil, fmt.Errorf("opregistry: handle is not a loaded plugin")
	}
	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("opregistry: symbol %s not found: %w", symbol, err)
	}
	switch fn := sym.(type) {
	case Func:
		return fn, nil
	case *Func:
		return *fn, nil
	default:
		return nil, fmt.Errorf("opregistry: symbol %s is not an opregistry.Func", symbol)
	}
}

// Close is a no-op: Go's plugin package provides no unload mechanism, so
// an "unloaded" dynamic operator simply stops being resolvable once its
// OpEntry is removed from the registry's chain; the process keeps the
// .so mapped until exit, which matches the documented limitation of
// plugin.Open.
func (PluginLoader) Close(interface{}) error { return nil }

// LoadOperator opens path via loader, resolves symbol, and returns an
// OpEntry ready to Register. This is the concrete realization of the
// "reference to a dynamically loaded symbol" operator variant of spec
// §4.4.
func LoadOperator(loader OperatorLoader, name, path, symbol string) (*OpEntry, error) {
	handle, err := loader.Open(path)
	if err != nil {
		return nil, err
	}
	fn, err := loader.Lookup(handle, symbol)
	if err != nil {
		return nil, err
	}
	return &OpEntry{
		Name:         name,
		Kind:         KindDynamic,
		Fn:           fn,
		ModuleHandle: handle,
		Symbol:       symbol,
		loader:       loader,
	}, nil
}
