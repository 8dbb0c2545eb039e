package starlark

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"go.starlark.net/starlark"

	"github.com/neurodesk/datatpl/pkg/reference"
	"github.com/neurodesk/datatpl/pkg/render"
)

func TestToStarlark(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{name: "string value", input: "hello", expected: `"hello"`},
		{name: "int value", input: 42, expected: "42"},
		{name: "int32 value", input: int32(7), expected: "7"},
		{name: "float value", input: 3.14, expected: "3.14"},
		{name: "bool value", input: true, expected: "True"},
		{name: "nil value", input: nil, expected: "None"},
		{name: "list", input: []any{"a", 1}, expected: `["a", 1]`},
		{name: "typed list", input: []string{"a", "b"}, expected: `["a", "b"]`},
		{name: "dict", input: map[string]any{"b": 2, "a": 1}, expected: `{"a": 1, "b": 2}`},
		{name: "object", input: &Object{Fields: map[string]any{"x": 1}}, expected: "struct(x = 1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ToStarlark(tt.input)
			if err != nil {
				t.Fatalf("ToStarlark: %v", err)
			}
			if result.String() != tt.expected {
				t.Errorf("ToStarlark() = %v, want %v", result, tt.expected)
			}
		})
	}

	if _, err := ToStarlark(make(chan int)); err == nil {
		t.Error("ToStarlark(chan) succeeded, want error")
	}
}

func TestFromStarlark(t *testing.T) {
	tests := []struct {
		name     string
		input    starlark.Value
		expected any
	}{
		{name: "string value", input: starlark.String("hello"), expected: "hello"},
		{name: "int value", input: starlark.MakeInt64(42), expected: 42},
		{name: "float value", input: starlark.Float(3.14), expected: 3.14},
		{name: "bool value", input: starlark.Bool(false), expected: false},
		{name: "none value", input: starlark.None, expected: nil},
		{name: "tuple", input: starlark.Tuple{starlark.String("a"), starlark.MakeInt(1)}, expected: []any{"a", 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := FromStarlark(tt.input)
			if err != nil {
				t.Fatalf("FromStarlark: %v", err)
			}
			if diff := cmp.Diff(tt.expected, result); diff != "" {
				t.Errorf("FromStarlark mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDictKeysMustBeStrings(t *testing.T) {
	d := starlark.NewDict(1)
	if err := d.SetKey(starlark.MakeInt(1), starlark.String("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := FromStarlark(d); err == nil {
		t.Error("FromStarlark accepted an int dict key")
	}
}

func TestEvaluatorBasic(t *testing.T) {
	eval := NewEvaluator(nil, nil)

	result, err := eval.Eval("2 + 3")
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if result != 5 {
		t.Errorf("Expected 5, got %v", result)
	}

	if _, err := eval.Eval("undefined_name"); err == nil {
		t.Error("Eval of an undefined name succeeded")
	}
}

func TestEvaluatorWithGlobals(t *testing.T) {
	eval := NewEvaluator(nil, nil)
	if err := eval.SetGlobal("env", map[string]any{"region": "eu"}); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}

	result, err := eval.Eval(`env["region"] + "-1"`)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if result != "eu-1" {
		t.Errorf("Expected eu-1, got %v", result)
	}
}

func TestExecFileExportsReferences(t *testing.T) {
	eval := NewEvaluator(nil, nil)
	refs, err := eval.ExecString(`
common = {"timeout": 42, "ports": [80, 443]}
machine = struct(hostname = "bob", size = 2048)
host = {
    "timeout": ref("common", "timeout"),
    "all": include("common"),
    "base": derive_from("machine"),
}
_private = 1

def helper():
    return 1
`)
	if err != nil {
		t.Fatalf("ExecString: %v", err)
	}

	want := map[string]any{
		"common":  map[string]any{"timeout": 42, "ports": []any{80, 443}},
		"machine": &Object{Fields: map[string]any{"hostname": "bob", "size": 2048}},
		"host": map[string]any{
			"timeout": "common.$.timeout",
			"all":     "common.*",
			"base":    "derivefrom.[machine]",
		},
	}
	if diff := cmp.Diff(want, refs); diff != "" {
		t.Errorf("exported references mismatch (-want +got):\n%s", diff)
	}
}

func TestObjectAsReference(t *testing.T) {
	eval := NewEvaluator(nil, nil)
	refs, err := eval.ExecString(`
machine = struct(hostname = "bob", port = 22)
`)
	if err != nil {
		t.Fatalf("ExecString: %v", err)
	}

	cache, err := reference.Build(nil, refs)
	if err != nil {
		t.Fatalf("reference.Build: %v", err)
	}
	got, err := render.NewRenderer(cache, render.Options{}).Render(map[string]any{
		"host": "machine.$.hostname",
		"copy": "machine.*",
		"base": "derivefrom.[machine]",
		"port": 2222,
	}, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := map[string]any{
		"host":     "bob",
		"copy":     map[string]any{"hostname": "bob", "port": 22},
		"hostname": "bob",
		"port":     2222,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render mismatch (-want +got):\n%s", diff)
	}

	if _, err := cache.Resolve("machine", "missing"); !errors.Is(err, reference.ErrAttributeNotFound) {
		t.Errorf("missing field error = %v, want ErrAttributeNotFound", err)
	}
}

func TestObjectMarshalling(t *testing.T) {
	o := &Object{Fields: map[string]any{"a": 1}}
	data, err := o.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("MarshalJSON = %s", data)
	}
	y, err := o.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"a": 1}, y); diff != "" {
		t.Errorf("MarshalYAML mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"lib/defaults.star": {Data: []byte(`defaults = {"timeout": 30}`)},
		"loop.star":         {Data: []byte(`load("loop.star", "x")`)},
	}
	eval := NewEvaluator(fsys, nil)
	refs, err := eval.ExecString(`
load("lib/defaults.star", "defaults")
service = dict(defaults, name = "api")
`)
	if err != nil {
		t.Fatalf("ExecString: %v", err)
	}
	want := map[string]any{"service": map[string]any{"timeout": 30, "name": "api"}}
	if diff := cmp.Diff(want, refs); diff != "" {
		t.Errorf("refs mismatch (-want +got):\n%s", diff)
	}

	if _, err := eval.ExecString(`load("loop.star", "x")`); err == nil {
		t.Error("cyclic load succeeded")
	}
	if _, err := NewEvaluator(nil, nil).ExecString(`load("lib/defaults.star", "defaults")`); err == nil {
		t.Error("load without a filesystem succeeded")
	}
}
