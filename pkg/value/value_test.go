package value

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Parsed
	}{
		{name: "int", input: 1, want: Parsed{Kind: Literal}},
		{name: "nil", input: nil, want: Parsed{Kind: Literal}},
		{name: "float", input: 1.02, want: Parsed{Kind: Literal}},
		{name: "empty string", input: "", want: Parsed{Kind: Literal}},
		{name: "plain string", input: "bob", want: Parsed{Kind: Literal}},
		{name: "dotted", input: "abc.efg", want: Parsed{Kind: Literal}},
		{name: "dollar no dots", input: "abc$efg", want: Parsed{Kind: Literal}},
		{name: "dollar dot", input: "abc$.efg", want: Parsed{Kind: Literal}},
		{name: "dot dollar", input: "abc.$efg", want: Parsed{Kind: Literal}},
		{name: "missing attribute", input: "reference.$.", want: Parsed{Kind: Literal}},
		{name: "missing reference", input: ".$.attribute", want: Parsed{Kind: Literal}},
		{name: "slice", input: []any{"a.$.b"}, want: Parsed{Kind: Literal}},
		{
			name:  "ref attr",
			input: "abc.$.efg",
			want:  Parsed{Kind: RefAttr, Reference: "abc", Attribute: "efg"},
		},
		{
			name:  "dotted reference",
			input: "settings.host.$.timeout",
			want:  Parsed{Kind: RefAttr, Reference: "settings.host", Attribute: "timeout"},
		},
		{
			name:  "split at last marker",
			input: "a.$.b.$.c",
			want:  Parsed{Kind: RefAttr, Reference: "a.$.b", Attribute: "c"},
		},
		{
			name:  "all inclusion",
			input: "base.*",
			want:  Parsed{Kind: AllInclusion, Reference: "base"},
		},
		{name: "bare all inclusion suffix", input: ".*", want: Parsed{Kind: Literal}},
		{
			name:  "all inclusion wins over ref attr",
			input: "a.$.b.*",
			want:  Parsed{Kind: AllInclusion, Reference: "a.$.b"},
		},
		{
			name:  "derive from",
			input: "derivefrom.[base]",
			want:  Parsed{Kind: DeriveFrom, Reference: "base"},
		},
		{
			name:  "derive from wins over ref attr",
			input: "derivefrom.[a.$.b]",
			want:  Parsed{Kind: DeriveFrom, Reference: "a.$.b"},
		},
		{name: "derive from empty", input: "derivefrom.[]", want: Parsed{Kind: Literal}},
		{name: "derive from unterminated", input: "derivefrom.[base", want: Parsed{Kind: Literal}},
		{name: "derive from wrong case", input: "DeriveFrom.[base]", want: Parsed{Kind: Literal}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got != tt.want {
				t.Errorf("Parse(%#v) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	if p := Parse(RefAttrString("common", "timeout")); p.Kind != RefAttr || p.Reference != "common" || p.Attribute != "timeout" {
		t.Errorf("RefAttrString did not parse back: %+v", p)
	}
	if p := Parse(AllInclusionString("base")); p.Kind != AllInclusion || p.Reference != "base" {
		t.Errorf("AllInclusionString did not parse back: %+v", p)
	}
	if p := Parse(DeriveFromString("base")); p.Kind != DeriveFrom || p.Reference != "base" {
		t.Errorf("DeriveFromString did not parse back: %+v", p)
	}
}

func TestContainsMarker(t *testing.T) {
	for _, s := range []string{"a.$.b", "a.*", "derivefrom.[x]"} {
		if !ContainsMarker(s) {
			t.Errorf("ContainsMarker(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"common", "machines.common", "a*", "x.$"} {
		if ContainsMarker(s) {
			t.Errorf("ContainsMarker(%q) = true, want false", s)
		}
	}
}
