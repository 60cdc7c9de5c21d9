package strategy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"plugin"
	"strings"
)

// symbols is the subset of *plugin.Plugin the loader needs.
type symbols interface {
	Lookup(name string) (plugin.Symbol, error)
}

type opener func(path string) (symbols, error)

func openPlugin(path string) (symbols, error) {
	return plugin.Open(path)
}

// PluginExt is the file extension of loadable strategy plugins.
const PluginExt = ".so"

func (r *Registry) resolvePath(locator, name string) (Factory, error) {
	info, err := os.Stat(locator)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: no strategy source at %s", ErrStrategyNotFound, locator)
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %v", ErrStrategyLoad, locator, err)
	case info.IsDir():
		return nil, fmt.Errorf("%w: %s is a directory", ErrStrategyLoad, locator)
	case !strings.HasSuffix(locator, PluginExt):
		return nil, fmt.Errorf("%w: %s is not a Go plugin (build with -buildmode=plugin)", ErrStrategyLoad, locator)
	}

	p, err := r.open(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStrategyLoad, locator, err)
	}
	sym, err := p.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s does not export %s", ErrStrategyNotFound, locator, name)
	}
	factory, err := asFactory(sym)
	if err != nil {
		return nil, fmt.Errorf("%s in %s: %w", name, locator, err)
	}
	return factory, nil
}

// asFactory accepts exported factory functions and variables.
func asFactory(sym any) (Factory, error) {
	var f Factory
	switch v := sym.(type) {
	case Factory:
		f = v
	case func(int, FairSource) (Strategy, error):
		f = v
	case *Factory:
		if v != nil {
			f = *v
		}
	case *func(int, FairSource) (Strategy, error):
		if v != nil {
			f = *v
		}
	default:
		return nil, fmt.Errorf("%w: %T is not a strategy factory", ErrStrategyInvalid, sym)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: nil factory", ErrStrategyInvalid)
	}
	return f, nil
}
