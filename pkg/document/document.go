// Package document reads and writes the data files templates and
// references are stored in: YAML, JSON, JSON with comments, and CBOR.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	YAML  Format = "yaml"
	JSON  Format = "json"
	JSONC Format = "jsonc"
	CBOR  Format = "cbor"
)

// OutputFormats are the formats Encode can write.
var OutputFormats = []Format{YAML, JSON, CBOR}

var (
	ErrUnknownFormat = errors.New("unknown document format")
	ErrNotMapping    = errors.New("document is not a mapping")
)

var extensions = map[string]Format{
	".yaml":  YAML,
	".yml":   YAML,
	".json":  JSON,
	".jsonc": JSONC,
	".cbor":  CBOR,
}

// FormatFromPath picks a format from the file extension of name.
func FormatFromPath(name string) (Format, error) {
	ext := strings.ToLower(path.Ext(name))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// IsDocument reports whether name has a recognised extension.
func IsDocument(name string) bool {
	_, err := FormatFromPath(name)
	return err == nil
}

var (
	cborEnc       cbor.EncMode
	cborDec       cbor.DecMode
	cborStrictDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("document: CBOR encoder initialization failed: " + err.Error())
	}

	opts := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}
	cborDec, err = opts.DecMode()
	if err != nil {
		panic("document: CBOR decoder initialization failed: " + err.Error())
	}
	opts.ExtraReturnErrors = cbor.ExtraDecErrorUnknownField
	cborStrictDec, err = opts.DecMode()
	if err != nil {
		panic("document: CBOR decoder initialization failed: " + err.Error())
	}
}

// Decode parses data as a mapping.
func Decode(data []byte, f Format) (map[string]any, error) {
	var v any
	if err := unmarshal(data, f, &v, false); err != nil {
		return nil, err
	}
	m, ok := Normalize(v).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level is %T", ErrNotMapping, v)
	}
	return m, nil
}

// DecodeStrict parses data into the struct pointed to by v, rejecting
// fields v does not declare.
func DecodeStrict(data []byte, f Format, v any) error {
	return unmarshal(data, f, v, true)
}

func unmarshal(data []byte, f Format, v any, strict bool) error {
	switch f {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(strict)
		if err := dec.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("decoding yaml: %w: empty document", ErrNotMapping)
			}
			return fmt.Errorf("decoding yaml: %w", err)
		}
	case JSON, JSONC:
		if f == JSONC {
			data = jsonc.ToJSON(data)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		if strict {
			dec.DisallowUnknownFields()
		}
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("decoding %s: %w", f, err)
		}
	case CBOR:
		mode := cborDec
		if strict {
			mode = cborStrictDec
		}
		if err := mode.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decoding cbor: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	return nil
}

// ReadFile decodes the named file of fsys, choosing the format by
// extension.
func ReadFile(fsys fs.FS, name string) (map[string]any, error) {
	f, err := FormatFromPath(name)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	m, err := Decode(data, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return m, nil
}

// Encode writes v to w.
func Encode(w io.Writer, v any, f Format) error {
	switch f {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	case CBOR:
		if err := cborEnc.NewEncoder(w).Encode(v); err != nil {
			return fmt.Errorf("encoding cbor: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// Normalize converts maps with non-string keys, as produced by some YAML
// and CBOR inputs, into map[string]any, recursing into sequences.
func Normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, item := range v {
			v[k] = Normalize(item)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[fmt.Sprint(k)] = Normalize(item)
		}
		return out
	case []any:
		for i, item := range v {
			v[i] = Normalize(item)
		}
		return v
	default:
		return v
	}
}
