package reference

import (
	"fmt"
	"reflect"
)

// Accessor is the uniform has/get view over a registered reference.
type Accessor interface {
	// Has reports whether attribute can be read.
	Has(attribute string) bool
	// Get returns the attribute, or an error wrapping ErrAttributeNotFound.
	Get(attribute string) (any, error)
	// Value returns the object the accessor was built from.
	Value() any
}

// ContentHolder is implemented by template-like wrappers. Lookups go to
// the inner content, never to the wrapper's own fields.
type ContentHolder interface {
	TemplateContent() map[string]any
}

// ReferenceHolder is implemented by references that carry their own
// reference set, which the cache flattens into the same namespace.
type ReferenceHolder interface {
	TemplateReferences() map[string]any
}

// Wrap selects the accessor for v. It is called once per reference when
// the cache is built.
func Wrap(v any) Accessor {
	switch t := v.(type) {
	case Accessor:
		return t
	case map[string]any:
		return mapAccessor(t)
	case ContentHolder:
		return contentAccessor{holder: t}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		return reflectMapAccessor{rv: rv}
	}
	return objectAccessor{v: v}
}

// AsMapping returns v as a string-keyed mapping if it is mapping-like: a
// map with string keys or a ContentHolder. Maps that are not
// map[string]any are copied.
func AsMapping(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case ContentHolder:
		return t.TemplateContent(), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	it := rv.MapRange()
	for it.Next() {
		out[it.Key().String()] = it.Value().Interface()
	}
	return out, true
}

func notFound(attribute string) error {
	return fmt.Errorf("%w: %q", ErrAttributeNotFound, attribute)
}

type mapAccessor map[string]any

func (m mapAccessor) Has(attribute string) bool {
	_, ok := m[attribute]
	return ok
}

func (m mapAccessor) Get(attribute string) (any, error) {
	if v, ok := m[attribute]; ok {
		return v, nil
	}
	return nil, notFound(attribute)
}

func (m mapAccessor) Value() any { return map[string]any(m) }

type contentAccessor struct {
	holder ContentHolder
}

func (c contentAccessor) Has(attribute string) bool {
	_, ok := c.holder.TemplateContent()[attribute]
	return ok
}

func (c contentAccessor) Get(attribute string) (any, error) {
	if v, ok := c.holder.TemplateContent()[attribute]; ok {
		return v, nil
	}
	return nil, notFound(attribute)
}

func (c contentAccessor) Value() any { return c.holder }

type reflectMapAccessor struct {
	rv reflect.Value
}

func (r reflectMapAccessor) lookup(attribute string) (reflect.Value, bool) {
	if r.rv.IsNil() {
		return reflect.Value{}, false
	}
	key := reflect.ValueOf(attribute).Convert(r.rv.Type().Key())
	v := r.rv.MapIndex(key)
	return v, v.IsValid()
}

func (r reflectMapAccessor) Has(attribute string) bool {
	_, ok := r.lookup(attribute)
	return ok
}

func (r reflectMapAccessor) Get(attribute string) (any, error) {
	if v, ok := r.lookup(attribute); ok {
		return v.Interface(), nil
	}
	return nil, notFound(attribute)
}

func (r reflectMapAccessor) Value() any { return r.rv.Interface() }

// objectAccessor reads struct fields, matching the `ref` tag first and the
// exported field name second.
type objectAccessor struct {
	v any
}

func (o objectAccessor) field(attribute string) (reflect.Value, bool) {
	rv := reflect.ValueOf(o.v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if tag := sf.Tag.Get("ref"); tag != "" && sf.IsExported() && tag == attribute {
			return rv.Field(i), true
		}
	}
	sf, ok := rt.FieldByName(attribute)
	if !ok || !sf.IsExported() {
		return reflect.Value{}, false
	}
	f, err := rv.FieldByIndexErr(sf.Index)
	if err != nil || !f.CanInterface() {
		return reflect.Value{}, false
	}
	return f, true
}

func (o objectAccessor) Has(attribute string) bool {
	_, ok := o.field(attribute)
	return ok
}

func (o objectAccessor) Get(attribute string) (any, error) {
	if f, ok := o.field(attribute); ok {
		return f.Interface(), nil
	}
	return nil, notFound(attribute)
}

func (o objectAccessor) Value() any { return o.v }
