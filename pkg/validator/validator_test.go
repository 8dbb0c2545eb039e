package validator

import (
	"errors"
	"strings"
	"testing"
)

func TestAll(t *testing.T) {
	first := errors.New("first")
	if err := All(nil, first, errors.New("second")); err != first {
		t.Errorf("All = %v, want first error", err)
	}
	if err := All(nil, nil); err != nil {
		t.Errorf("All(nil, nil) = %v", err)
	}
}

func TestMapDictReportsFirstKeyInOrder(t *testing.T) {
	items := map[string]string{"b": "", "a": "", "c": "ok"}
	err := MapDict(items, func(key, item string) error {
		return NotEmpty(item, key)
	}, "entries")
	if err == nil {
		t.Fatal("MapDict returned nil")
	}
	if got, want := err.Error(), "entries: a must not be empty"; got != want {
		t.Errorf("MapDict error = %q, want %q", got, want)
	}
}

func TestMap(t *testing.T) {
	err := Map([]string{"x", ""}, func(item, desc string) error {
		return NotEmpty(item, desc)
	}, "names")
	if err == nil || !strings.Contains(err.Error(), "names[1]") {
		t.Errorf("Map error = %v, want mention of names[1]", err)
	}
}

func TestHasNoMarker(t *testing.T) {
	tests := []struct {
		field   string
		wantErr bool
	}{
		{field: "common"},
		{field: "machines.common"},
		{field: "a$b"},
		{field: "a.$.b", wantErr: true},
		{field: "base.*", wantErr: true},
		{field: "derivefrom.[x]", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			err := HasNoMarker(tt.field, "name")
			if (err != nil) != tt.wantErr {
				t.Errorf("HasNoMarker(%q) = %v, wantErr %v", tt.field, err, tt.wantErr)
			}
		})
	}
}

func TestSmallChecks(t *testing.T) {
	if err := NoDuplicates([]string{"a", "b", "a"}, "list"); err == nil {
		t.Error("NoDuplicates accepted a duplicate")
	}
	if err := MatchesAllowed("xml", []string{"yaml", "json"}, "format"); err == nil {
		t.Error("MatchesAllowed accepted xml")
	}
	if err := SliceHasElements([]string{"yaml", "json"}, []string{"yaml", "json"}, "formats"); err != nil {
		t.Errorf("SliceHasElements: %v", err)
	}
	if err := NotNil(nil, "ref"); err == nil {
		t.Error("NotNil accepted nil")
	}
	if err := Positive(0, "max_chain"); err == nil {
		t.Error("Positive accepted 0")
	}
}
