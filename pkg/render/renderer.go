// Package render materialises template content against a reference cache.
//
// Each value is chased to its terminal form: reference-attributes are
// resolved until they stop pointing at other references, all-inclusions
// are replaced by the fully rendered mapping they name, and a derive-from
// marker makes the enclosing mapping inherit the rendered mapping it names,
// with the mapping's own entries overlaid on top.
//
// A Renderer holds no per-call state and may be shared between goroutines
// as long as the referenced objects are not mutated during a render.
package render

import (
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strconv"

	"github.com/neurodesk/datatpl/pkg/reference"
	"github.com/neurodesk/datatpl/pkg/value"
)

const (
	// DefaultMaxChain is the number of reference-attribute hops a single
	// value may take before rendering fails.
	DefaultMaxChain = 20

	// DefaultMaxNesting bounds how deeply mappings and sequences may nest,
	// including mappings pulled in by reference.
	DefaultMaxNesting = 64
)

// Options configures a Renderer. Zero values select the defaults.
type Options struct {
	MaxChain   int
	MaxNesting int
	Logger     *slog.Logger
}

// Renderer renders mappings against one reference cache.
type Renderer struct {
	cache      *reference.Cache
	maxChain   int
	maxNesting int
	logger     *slog.Logger
}

// NewRenderer returns a Renderer resolving references through cache.
func NewRenderer(cache *reference.Cache, opts Options) *Renderer {
	r := &Renderer{
		cache:      cache,
		maxChain:   opts.MaxChain,
		maxNesting: opts.MaxNesting,
		logger:     opts.Logger,
	}
	if r.maxChain <= 0 {
		r.maxChain = DefaultMaxChain
	}
	if r.maxNesting <= 0 {
		r.maxNesting = DefaultMaxNesting
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Render resolves every entry. When extendWith is non-empty it is rendered
// through the same cache and the entries' output is overlaid on it, so a
// generic set of values can be combined with a specific one without either
// referring to the other.
func (r *Renderer) Render(entries, extendWith map[string]any) (map[string]any, error) {
	r.logger.Debug("rendering",
		"internal", r.cache.Names(reference.Internal),
		"external", r.cache.Names(reference.External),
		"entries", len(entries),
		"extend", len(extendWith),
	)

	p := &pass{Renderer: r}
	out, err := p.mapping(entries, "")
	if err != nil {
		return nil, err
	}
	if len(extendWith) == 0 {
		return out, nil
	}

	base, err := p.mapping(extendWith, "")
	if err != nil {
		return nil, fmt.Errorf("extension: %w", err)
	}
	return overlay(base, out), nil
}

// pass carries the state of one Render call.
type pass struct {
	*Renderer

	// expanding lists the references currently being expanded by
	// all-inclusion or derive-from, outermost first.
	expanding []string
	depth     int
}

// scope tracks the single derive-from base a mapping or sequence may have.
type scope struct {
	captured bool
	key      string
	base     map[string]any
}

func (s *scope) capture(key string, base map[string]any) error {
	if s.captured {
		return fmt.Errorf("%w: %q and %q", ErrMultipleDeriveFrom, s.key, key)
	}
	s.captured = true
	s.key = key
	s.base = base
	return nil
}

func (p *pass) enter() error {
	p.depth++
	if p.depth > p.maxNesting {
		return fmt.Errorf("%w: nesting deeper than %d", ErrResolutionDepthExceeded, p.maxNesting)
	}
	return nil
}

func (p *pass) leave() { p.depth-- }

func (p *pass) mapping(entries map[string]any, path string) (map[string]any, error) {
	if err := p.enter(); err != nil {
		return nil, wrap(path, err)
	}
	defer p.leave()

	var s scope
	out := make(map[string]any, len(entries))
	for _, key := range slices.Sorted(maps.Keys(entries)) {
		keyPath := joinKey(path, key)
		v, derived, err := p.hunt(entries[key], keyPath)
		if err != nil {
			return nil, wrap(keyPath, err)
		}
		if derived {
			if err := s.capture(key, v.(map[string]any)); err != nil {
				return nil, wrap(keyPath, err)
			}
			continue
		}
		out[key] = v
	}

	if !s.captured {
		return out, nil
	}
	return overlay(s.base, out), nil
}

func (p *pass) sequence(items []any, path string) ([]any, error) {
	if err := p.enter(); err != nil {
		return nil, wrap(path, err)
	}
	defer p.leave()

	var s scope
	out := make([]any, 0, len(items))
	for i, item := range items {
		itemPath := path + "[" + strconv.Itoa(i) + "]"
		v, derived, err := p.hunt(item, itemPath)
		if err != nil {
			return nil, wrap(itemPath, err)
		}
		if derived {
			// Inside a sequence there is nothing to overlay, so the element
			// becomes the base itself.
			if err := s.capture("["+strconv.Itoa(i)+"]", v.(map[string]any)); err != nil {
				return nil, wrap(itemPath, err)
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// hunt chases v to its terminal value. derived is true when v was a
// derive-from marker, in which case the returned value is the rendered base
// mapping.
func (p *pass) hunt(v any, path string) (_ any, derived bool, _ error) {
	for hop := 0; ; hop++ {
		parsed := value.Parse(v)
		switch parsed.Kind {
		case value.RefAttr:
			if hop >= p.maxChain {
				return nil, false, fmt.Errorf("%w: %q still unresolved after %d hops", ErrResolutionDepthExceeded, v, p.maxChain)
			}
			resolved, err := p.cache.Resolve(parsed.Reference, parsed.Attribute)
			if err != nil {
				return nil, false, err
			}
			p.logger.Debug("resolved reference",
				"path", path,
				"reference", parsed.Reference,
				"attribute", parsed.Attribute,
				"hop", hop+1,
			)
			v = resolved

		case value.AllInclusion:
			obj, err := p.cache.ResolveObject(parsed.Reference)
			if err != nil {
				return nil, false, err
			}
			m, ok := reference.AsMapping(obj)
			if !ok {
				p.logger.Debug("including non-mapping reference as is",
					"path", path, "reference", parsed.Reference, "type", fmt.Sprintf("%T", obj))
				return obj, false, nil
			}
			out, err := p.expand(parsed.Reference, m, path)
			return out, false, err

		case value.DeriveFrom:
			obj, err := p.cache.ResolveObject(parsed.Reference)
			if err != nil {
				return nil, false, err
			}
			m, ok := reference.AsMapping(obj)
			if !ok {
				return nil, false, fmt.Errorf("%w: %q is %T", ErrDeriveFromTargetInvalid, parsed.Reference, obj)
			}
			base, err := p.expand(parsed.Reference, m, path)
			if err != nil {
				return nil, false, err
			}
			return base, true, nil

		default:
			out, err := p.literal(v, path)
			return out, false, err
		}
	}
}

// expand renders the mapping behind reference as a child scope.
func (p *pass) expand(ref string, m map[string]any, path string) (map[string]any, error) {
	if slices.Contains(p.expanding, ref) {
		chain := append(slices.Clone(p.expanding), ref)
		return nil, &reference.CycleError{Chain: chain}
	}
	p.logger.Debug("expanding reference", "path", path, "reference", ref)

	p.expanding = append(p.expanding, ref)
	defer func() { p.expanding = p.expanding[:len(p.expanding)-1] }()
	return p.mapping(m, path)
}

// literal descends into mappings and sequences; every other value is
// returned unchanged.
func (p *pass) literal(v any, path string) (any, error) {
	if m, ok := reference.AsMapping(v); ok {
		return p.mapping(m, path)
	}
	if items, ok := asSequence(v); ok {
		return p.sequence(items, path)
	}
	return v, nil
}

// asSequence reports whether v is an ordered collection other than a
// string or byte slice.
func asSequence(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

func overlay(base, top map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(top))
	maps.Copy(out, base)
	maps.Copy(out, top)
	return out
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
