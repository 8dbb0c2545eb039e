package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/neurodesk/datatpl/pkg/document"
	v "github.com/neurodesk/datatpl/pkg/validator"
)

//go:embed builtin/*.yaml
var builtin embed.FS

// Builtin holds the templates shipped with the package.
var Builtin fs.FS = mustSub(builtin, "builtin")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// file is the on-disk shape of a template document.
type file struct {
	Name       string            `yaml:"name" json:"name" cbor:"name"`
	References map[string]string `yaml:"references,omitempty" json:"references,omitempty" cbor:"references,omitempty"`
	Content    map[string]any    `yaml:"content" json:"content" cbor:"content"`
}

// Registry holds named templates. References between registered templates
// are declared by name in their documents and linked once loading is
// complete.
//
// A Registry is not safe for concurrent modification.
type Registry struct {
	templates map[string]*Template
	links     map[string]map[string]string // template -> alias -> template
	logger    *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		templates: make(map[string]*Template),
		links:     make(map[string]map[string]string),
		logger:    logger,
	}
}

// Add registers t, replacing any template of the same name.
func (r *Registry) Add(t *Template) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	if _, ok := r.templates[t.Name]; ok {
		r.logger.Debug("overriding template", "name", t.Name)
	}
	r.templates[t.Name] = t
	delete(r.links, t.Name)
	return nil
}

func (r *Registry) Get(name string) (*Template, error) {
	if t, ok := r.templates[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
}

// Names returns the registered template names in order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.templates))
}

// LoadDir loads every template document below dir.
func (r *Registry) LoadDir(dir string) error {
	if err := r.LoadFS(os.DirFS(dir)); err != nil {
		return fmt.Errorf("loading templates from %s: %w", dir, err)
	}
	return nil
}

// LoadFS loads every template document in fsys, then links references
// across all registered templates. Templates loaded here replace earlier
// ones of the same name.
func (r *Registry) LoadFS(fsys fs.FS) error {
	var loaded []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !document.IsDocument(p) {
			return nil
		}
		t, links, err := readTemplate(fsys, p)
		if err != nil {
			return err
		}
		if err := r.Add(t); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if len(links) > 0 {
			r.links[t.Name] = links
		}
		loaded = append(loaded, t.Name)
		return nil
	})
	if err != nil {
		return err
	}
	r.logger.Debug("loaded templates", "count", len(loaded), "names", loaded)
	return r.link()
}

func readTemplate(fsys fs.FS, p string) (*Template, map[string]string, error) {
	format, err := document.FormatFromPath(p)
	if err != nil {
		return nil, nil, err
	}
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return nil, nil, err
	}

	var f file
	if err := document.DecodeStrict(data, format, &f); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", p, err)
	}
	if f.Name == "" {
		base := path.Base(p)
		f.Name = strings.TrimSuffix(base, path.Ext(base))
	}
	if f.Content == nil {
		f.Content = map[string]any{}
	}
	content, _ := document.Normalize(f.Content).(map[string]any)

	t, err := New(f.Name, content, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", p, err)
	}
	return t, f.References, nil
}

// link points every declared alias at the registered template it names.
func (r *Registry) link() error {
	for _, name := range slices.Sorted(maps.Keys(r.links)) {
		t := r.templates[name]
		refs := make(map[string]any, len(r.links[name]))
		for alias, target := range r.links[name] {
			dep, ok := r.templates[target]
			if !ok {
				return fmt.Errorf("template %q: reference %q: %w: %q", name, alias, ErrTemplateNotFound, target)
			}
			refs[alias] = dep
		}
		t.References = refs
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	return nil
}

// Validate checks every registered template.
func (r *Registry) Validate() error {
	all := make([]*Template, 0, len(r.templates))
	for _, name := range r.Names() {
		all = append(all, r.templates[name])
	}
	return v.Each(all)
}
