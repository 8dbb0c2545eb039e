package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/neurodesk/datatpl/pkg/document"
	"github.com/neurodesk/datatpl/pkg/netcache"
	"github.com/neurodesk/datatpl/pkg/starlark"
	v "github.com/neurodesk/datatpl/pkg/validator"
)

// sources loads reference documents from disk, URLs and Starlark files.
type sources struct {
	cache *netcache.Cache
}

// references builds the external reference set. Starlark globals are
// loaded first so an explicit --ref of the same name replaces them.
func (s *sources) references(ctx context.Context, refs, stars []string) (map[string]any, error) {
	if err := v.SliceHasElements(extensions(stars), []string{".star"}, "--star file extension"); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for _, file := range stars {
		globals, err := s.script(file)
		if err != nil {
			return nil, err
		}
		for name, ref := range globals {
			out[name] = ref
		}
	}
	aliases := make([]string, 0, len(refs))
	for _, arg := range refs {
		alias, location, err := parseRefFlag(arg)
		if err != nil {
			return nil, err
		}
		if err := v.NoDuplicates(append(aliases, alias), "--ref aliases"); err != nil {
			return nil, err
		}
		aliases = append(aliases, alias)
		doc, err := s.document(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("reference %q: %w", alias, err)
		}
		out[alias] = doc
	}
	return out, nil
}

func (s *sources) script(file string) (map[string]any, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	eval := starlark.NewEvaluator(os.DirFS(filepath.Dir(file)), nil)
	globals, err := eval.ExecFile(filepath.Base(file), src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return globals, nil
}

// document loads the mapping at location, fetching URLs through the cache.
func (s *sources) document(ctx context.Context, location string) (map[string]any, error) {
	path := location
	if isURL(location) {
		p, fromCache, err := s.cache.Get(ctx, location)
		if err != nil {
			return nil, err
		}
		slog.Debug("fetched reference document", "url", location, "path", p, "cached", fromCache)
		path = p
	}
	return document.ReadFile(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

func parseRefFlag(arg string) (alias, location string, err error) {
	alias, location, ok := strings.Cut(arg, "=")
	if !ok {
		return "", "", fmt.Errorf("--ref %q: want ALIAS=PATH or ALIAS=URL", arg)
	}
	if err := v.All(
		v.NotEmpty(alias, "--ref alias"),
		v.HasNoMarker(alias, "--ref alias"),
		v.NotEmpty(location, "--ref location"),
	); err != nil {
		return "", "", err
	}
	return alias, location, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func extensions(files []string) []string {
	exts := make([]string, len(files))
	for i, f := range files {
		exts[i] = filepath.Ext(f)
	}
	return exts
}
