// Package templates pairs content with the references it resolves against
// and keeps named templates in a registry loaded from documents.
package templates

import (
	"errors"
	"fmt"

	"github.com/neurodesk/datatpl/pkg/reference"
	"github.com/neurodesk/datatpl/pkg/render"
	v "github.com/neurodesk/datatpl/pkg/validator"
)

var (
	ErrContentType      = errors.New("template content is not a mapping")
	ErrTemplateNotFound = errors.New("template not found")
)

// Template is a mapping whose values may refer to other data by name.
//
// References bound here are the template's internal references. They may
// be plain mappings, other templates, or any struct whose exported fields
// should be readable as attributes.
type Template struct {
	Name       string
	Content    map[string]any
	References map[string]any
}

// New creates a template. content must be mapping-like.
func New(name string, content any, references map[string]any) (*Template, error) {
	m, ok := reference.AsMapping(content)
	if !ok {
		return nil, fmt.Errorf("template %q: %w: got %T", name, ErrContentType, content)
	}
	if references == nil {
		references = map[string]any{}
	}
	return &Template{Name: name, Content: m, References: references}, nil
}

// TemplateContent implements reference.ContentHolder.
func (t *Template) TemplateContent() map[string]any {
	if t == nil {
		return nil
	}
	return t.Content
}

// TemplateReferences implements reference.ReferenceHolder.
func (t *Template) TemplateReferences() map[string]any {
	if t == nil {
		return nil
	}
	return t.References
}

var (
	_ reference.ContentHolder   = (*Template)(nil)
	_ reference.ReferenceHolder = (*Template)(nil)
)

// Render produces the template's content with every reference resolved.
//
// A non-empty references map replaces the stored references for this
// call. extendWith, when non-empty, is rendered too and the template's
// output is laid over it.
func (t *Template) Render(references, extendWith map[string]any) (map[string]any, error) {
	return t.RenderWith(render.Options{}, references, extendWith)
}

// RenderWith is Render with explicit renderer options.
func (t *Template) RenderWith(opts render.Options, references, extendWith map[string]any) (map[string]any, error) {
	var (
		cache *reference.Cache
		err   error
	)
	if len(references) > 0 {
		cache, err = reference.Build(nil, references)
	} else {
		cache, err = reference.Build(t.References, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", t.Name, err)
	}

	out, err := render.NewRenderer(cache, opts).Render(t.Content, extendWith)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", t.Name, err)
	}
	return out, nil
}

func (t *Template) Validate() error {
	if t == nil {
		return errors.New("template is nil")
	}
	return v.All(
		v.NotEmpty(t.Name, "name"),
		v.HasNoMarker(t.Name, "name"),
		v.MapDict(t.References, func(alias string, ref any) error {
			return v.All(
				v.NotEmpty(alias, "reference alias"),
				v.HasNoMarker(alias, "reference alias"),
				v.NotNil(ref, fmt.Sprintf("reference %q", alias)),
			)
		}, fmt.Sprintf("template %q references", t.Name)),
	)
}

func (t *Template) String() string {
	return fmt.Sprintf("Template <%s>: %v", t.Name, t.Content)
}
