package reference

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
)

// MaxNesting bounds how deep nested reference sets are followed while
// flattening. Holders that cannot be identified by pointer are only
// protected from cycles by this limit.
const MaxNesting = 64

// Namespace selects one of the cache's two reference sets.
type Namespace int

const (
	// Internal references are bound when a template is constructed.
	Internal Namespace = iota
	// External references are supplied at render time and take priority.
	External
)

func (n Namespace) String() string {
	if n == External {
		return "external"
	}
	return "internal"
}

// Cache holds the flattened internal and external references for one
// render call. It is not modified after Build returns.
type Cache struct {
	internal map[string]Accessor
	external map[string]Accessor
}

// Build flattens both reference sets. A reference that carries its own
// references (a ReferenceHolder) contributes them to the same namespace,
// so a template can name its dependencies' dependencies without
// redeclaring them. Names declared closer to the top win over names
// discovered further down.
func Build(internal, external map[string]any) (*Cache, error) {
	c := &Cache{
		internal: make(map[string]Accessor),
		external: make(map[string]Accessor),
	}
	if err := flatten(c.internal, internal); err != nil {
		return nil, fmt.Errorf("flattening internal references: %w", err)
	}
	if err := flatten(c.external, external); err != nil {
		return nil, fmt.Errorf("flattening external references: %w", err)
	}
	return c, nil
}

// Lookup returns the accessor registered under name in ns.
func (c *Cache) Lookup(ns Namespace, name string) (Accessor, bool) {
	a, ok := c.namespace(ns)[name]
	return a, ok
}

// Names returns the sorted reference names in ns.
func (c *Cache) Names(ns Namespace) []string {
	return sortedKeys(c.namespace(ns))
}

func (c *Cache) namespace(ns Namespace) map[string]Accessor {
	if ns == External {
		return c.external
	}
	return c.internal
}

func flatten(dest map[string]Accessor, refs map[string]any) error {
	if err := checkCycles(refs, nil, make(map[identity]visit)); err != nil {
		return err
	}

	expanded := make(map[identity]bool)
	queue := []map[string]any{refs}
	for len(queue) > 0 {
		level := queue[0]
		queue = queue[1:]
		for _, name := range sortedKeys(level) {
			v := level[name]
			if _, ok := dest[name]; !ok {
				dest[name] = Wrap(v)
			}
			holder, ok := v.(ReferenceHolder)
			if !ok {
				continue
			}
			if id, ok := identify(v); ok {
				if expanded[id] {
					continue
				}
				expanded[id] = true
			}
			queue = append(queue, holder.TemplateReferences())
		}
	}
	return nil
}

type visit int

const (
	visiting visit = iota + 1
	visited
)

// checkCycles walks the holder graph depth first. A holder met again while
// it is still being visited closes a loop.
func checkCycles(refs map[string]any, chain []string, state map[identity]visit) error {
	for _, name := range sortedKeys(refs) {
		v := refs[name]
		holder, ok := v.(ReferenceHolder)
		if !ok {
			continue
		}
		next := append(slices.Clone(chain), name)
		if len(next) > MaxNesting {
			return &CycleError{Chain: next}
		}
		id, tracked := identify(v)
		if tracked {
			switch state[id] {
			case visiting:
				return &CycleError{Chain: next}
			case visited:
				continue
			}
			state[id] = visiting
		}
		if err := checkCycles(holder.TemplateReferences(), next, state); err != nil {
			return err
		}
		if tracked {
			state[id] = visited
		}
	}
	return nil
}

type identity struct {
	t reflect.Type
	p uintptr
}

// identify returns a stable identity for reference values with pointer
// semantics.
func identify(v any) (identity, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{t: rv.Type(), p: rv.Pointer()}, true
	}
	return identity{}, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
