package starlark

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/neurodesk/datatpl/pkg/reference"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Object is a Starlark struct exported as a reference. Its fields are the
// attributes reference values can read.
type Object struct {
	Fields map[string]any
}

func (o *Object) Has(attribute string) bool {
	_, ok := o.Fields[attribute]
	return ok
}

func (o *Object) Get(attribute string) (any, error) {
	v, ok := o.Fields[attribute]
	if !ok {
		return nil, fmt.Errorf("%w: struct has no field %q", reference.ErrAttributeNotFound, attribute)
	}
	return v, nil
}

func (o *Object) Value() any { return o }

// TemplateContent lets an Object be included or derived from like a
// mapping.
func (o *Object) TemplateContent() map[string]any { return o.Fields }

func (o *Object) MarshalJSON() ([]byte, error) { return json.Marshal(o.Fields) }

func (o *Object) MarshalYAML() (any, error) { return o.Fields, nil }

func (o *Object) MarshalCBOR() ([]byte, error) { return cbor.Marshal(o.Fields) }

func (o *Object) String() string { return fmt.Sprintf("struct(%v)", o.Fields) }

var (
	_ reference.Accessor      = (*Object)(nil)
	_ reference.ContentHolder = (*Object)(nil)
)

// ToStarlark converts a Go value to a Starlark value.
func ToStarlark(val any) (starlark.Value, error) {
	switch v := val.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return v, nil
	case bool:
		return starlark.Bool(v), nil
	case string:
		return starlark.String(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case uint64:
		return starlark.MakeUint64(v), nil
	case float64:
		return starlark.Float(v), nil
	case *Object:
		members := make(starlark.StringDict, len(v.Fields))
		for k, field := range v.Fields {
			sv, err := ToStarlark(field)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			members[k] = sv
		}
		return starlarkstruct.FromStringDict(starlarkstruct.Default, members), nil
	}

	if m, ok := reference.AsMapping(val); ok {
		dict := starlark.NewDict(len(m))
		for _, k := range slices.Sorted(maps.Keys(m)) {
			sv, err := ToStarlark(m[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]starlark.Value, rv.Len())
		for i := range items {
			sv, err := ToStarlark(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return starlark.MakeInt64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return starlark.MakeUint64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return starlark.Float(rv.Float()), nil
	}
	return nil, fmt.Errorf("cannot convert %T to starlark", val)
}

// FromStarlark converts a Starlark value to plain Go data: dicts become
// map[string]any, lists and tuples become []any and structs become
// *Object.
func FromStarlark(val starlark.Value) (any, error) {
	if val == nil || val == starlark.None {
		return nil, nil
	}

	switch v := val.(type) {
	case starlark.String:
		return string(v), nil
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return int(i), nil
		}
		// Too large for int; keep the digits.
		return v.String(), nil
	case starlark.Float:
		return float64(v), nil
	case starlark.Bool:
		return bool(v), nil
	case *starlark.List:
		return fromIterable(v, v.Len())
	case starlark.Tuple:
		return fromIterable(v, v.Len())
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key %s is %s, want string", item[0], item[0].Type())
			}
			gv, err := FromStarlark(item[1])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", string(key), err)
			}
			out[string(key)] = gv
		}
		return out, nil
	case *starlarkstruct.Struct:
		fields, err := fromMembers(v.AttrNames(), v.Attr)
		if err != nil {
			return nil, err
		}
		return &Object{Fields: fields}, nil
	case *starlarkstruct.Module:
		fields, err := fromMembers(slices.Collect(maps.Keys(v.Members)), v.Attr)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", v.Name, err)
		}
		return &Object{Fields: fields}, nil
	default:
		return nil, fmt.Errorf("cannot export starlark %s", val.Type())
	}
}

func fromIterable(it starlark.Iterable, n int) ([]any, error) {
	out := make([]any, 0, n)
	iter := it.Iterate()
	defer iter.Done()
	var x starlark.Value
	for i := 0; iter.Next(&x); i++ {
		gv, err := FromStarlark(x)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out = append(out, gv)
	}
	return out, nil
}

func fromMembers(names []string, attr func(string) (starlark.Value, error)) (map[string]any, error) {
	out := make(map[string]any, len(names))
	for _, name := range names {
		sv, err := attr(name)
		if err != nil {
			return nil, err
		}
		gv, err := FromStarlark(sv)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = gv
	}
	return out, nil
}
