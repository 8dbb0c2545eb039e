// Package starlark runs Starlark scripts whose global values become
// references for rendering.
package starlark

import (
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/neurodesk/datatpl/pkg/value"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Evaluator executes Starlark scripts with helpers for writing reference
// values: ref(name, attr), include(name), derive_from(name) and struct(...).
type Evaluator struct {
	thread   *starlark.Thread
	builtins starlark.StringDict
	globals  starlark.StringDict

	fsys    fs.FS
	modules map[string]*module
	logger  *slog.Logger
}

type module struct {
	globals starlark.StringDict
	err     error
}

// NewEvaluator creates an Evaluator. When fsys is not nil, scripts may
// load() other scripts from it.
func NewEvaluator(fsys fs.FS, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Evaluator{
		builtins: createBuiltins(),
		globals:  make(starlark.StringDict),
		fsys:     fsys,
		modules:  make(map[string]*module),
		logger:   logger,
	}
	e.thread = &starlark.Thread{
		Name: "datatpl",
		Print: func(_ *starlark.Thread, msg string) {
			logger.Info("starlark", "msg", msg)
		},
		Load: e.load,
	}
	return e
}

// SetGlobal makes a Go value visible to scripts under name.
func (e *Evaluator) SetGlobal(name string, v any) error {
	sv, err := ToStarlark(v)
	if err != nil {
		return fmt.Errorf("setting global %q: %w", name, err)
	}
	e.globals[name] = sv
	return nil
}

func (e *Evaluator) predeclared() starlark.StringDict {
	predeclared := make(starlark.StringDict, len(e.builtins)+len(e.globals))
	maps.Copy(predeclared, e.builtins)
	maps.Copy(predeclared, e.globals)
	return predeclared
}

// Eval evaluates a single expression.
func (e *Evaluator) Eval(expr string) (any, error) {
	val, err := starlark.Eval(e.thread, "<eval>", expr, e.predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark evaluation error: %w", err)
	}
	return FromStarlark(val)
}

// ExecFile executes a script and returns its exported globals as
// references. Names starting with an underscore and callables are not
// exported.
func (e *Evaluator) ExecFile(filename string, src any) (map[string]any, error) {
	globals, err := starlark.ExecFile(e.thread, filename, src, e.predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark execution error: %w", err)
	}
	maps.Copy(e.globals, globals)
	return export(filename, globals, e.logger)
}

// ExecString executes a script held in a string.
func (e *Evaluator) ExecString(script string) (map[string]any, error) {
	return e.ExecFile("<script>", script)
}

// load implements the load() statement against the evaluator's fs.FS.
func (e *Evaluator) load(thread *starlark.Thread, name string) (starlark.StringDict, error) {
	if e.fsys == nil {
		return nil, fmt.Errorf("load(%q): loading is not enabled", name)
	}
	if m, ok := e.modules[name]; ok {
		if m == nil {
			return nil, fmt.Errorf("load(%q): cycle in load graph", name)
		}
		return m.globals, m.err
	}

	e.modules[name] = nil
	src, err := fs.ReadFile(e.fsys, name)
	if err != nil {
		e.modules[name] = &module{err: err}
		return nil, err
	}
	globals, err := starlark.ExecFile(thread, name, src, e.builtins)
	e.modules[name] = &module{globals: globals, err: err}
	return globals, err
}

func export(filename string, globals starlark.StringDict, logger *slog.Logger) (map[string]any, error) {
	out := make(map[string]any, len(globals))
	for _, name := range slices.Sorted(maps.Keys(globals)) {
		if !isExportableKey(name) {
			continue
		}
		v := globals[name]
		if _, ok := v.(starlark.Callable); ok {
			logger.Debug("skipping callable global", "file", filename, "name", name)
			continue
		}
		gv, err := FromStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("%s: global %q: %w", filename, name, err)
		}
		out[name] = gv
	}
	return out, nil
}

func isExportableKey(key string) bool {
	return key != "" && !strings.HasPrefix(key, "_")
}

func createBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"ref": starlark.NewBuiltin("ref", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name, attr string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &name, &attr); err != nil {
				return nil, err
			}
			return starlark.String(value.RefAttrString(name, attr)), nil
		}),
		"include": starlark.NewBuiltin("include", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &name); err != nil {
				return nil, err
			}
			return starlark.String(value.AllInclusionString(name)), nil
		}),
		"derive_from": starlark.NewBuiltin("derive_from", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &name); err != nil {
				return nil, err
			}
			return starlark.String(value.DeriveFromString(name)), nil
		}),
	}
}
