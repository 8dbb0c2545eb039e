package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neurodesk/datatpl/pkg/document"
	"github.com/neurodesk/datatpl/pkg/netcache"
	"github.com/neurodesk/datatpl/pkg/templates"
)

type renderRequest struct {
	Name   string
	Refs   []string // alias=PATH|URL
	Stars  []string
	Extend string
	Merge  bool
}

// renderTemplate renders one registered template and writes it to w.
func renderTemplate(ctx context.Context, cfg datatplConfig, reg *templates.Registry, req renderRequest, w io.Writer) error {
	tpl, err := reg.Get(req.Name)
	if err != nil {
		return err
	}

	src := &sources{cache: netcache.New(cfg.CacheDir, slog.Default())}
	supplied, err := src.references(ctx, req.Refs, req.Stars)
	if err != nil {
		return err
	}
	if req.Merge && len(supplied) > 0 {
		merged := make(map[string]any, len(tpl.References)+len(supplied))
		maps.Copy(merged, tpl.References)
		maps.Copy(merged, supplied)
		supplied = merged
	}

	var extend map[string]any
	if req.Extend != "" {
		extend, err = src.document(ctx, req.Extend)
		if err != nil {
			return fmt.Errorf("loading extension: %w", err)
		}
	}

	out, err := tpl.RenderWith(cfg.renderOptions(), supplied, extend)
	if err != nil {
		return err
	}
	return document.Encode(w, out, document.Format(cfg.Format))
}

var renderCmd = cobra.Command{
	Use:   "render NAME",
	Short: "Render a template with every reference resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		refs, _ := flags.GetStringArray("ref")
		stars, _ := flags.GetStringArray("star")
		extend, _ := flags.GetString("extend")
		merge, _ := flags.GetBool("merge")
		output, _ := flags.GetString("output")

		reg, err := config.loadRegistry()
		if err != nil {
			return err
		}

		w := io.Writer(os.Stdout)
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output: %w", err)
			}
			defer f.Close()
			w = f
		}

		return renderTemplate(cmd.Context(), config, reg, renderRequest{
			Name:   args[0],
			Refs:   refs,
			Stars:  stars,
			Extend: extend,
			Merge:  merge,
		}, w)
	},
}

func init() {
	flags := renderCmd.Flags()
	flags.StringArray("ref", nil, "Supply an external reference as ALIAS=PATH or ALIAS=URL; may be repeated")
	flags.StringArray("star", nil, "Starlark file whose globals become external references; may be repeated")
	flags.String("extend", "", "Document (PATH or URL) the rendered output is laid over")
	flags.Bool("merge", false, "Keep the template's own references alongside the supplied ones")
	flags.StringP("output", "o", "", "Write output to a file instead of stdout")
	flags.StringP("format", "f", "", "Output format: yaml, json or cbor")
	bindFlags(viper.GetViper(), flags, map[string]string{"format": "format"})
}
