package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/neurodesk/datatpl/pkg/templates"
	v "github.com/neurodesk/datatpl/pkg/validator"
)

// checkTemplates renders each named template with its stored references
// and reports the outcome per template.
func checkTemplates(cfg datatplConfig, reg *templates.Registry, names []string, w io.Writer) error {
	if len(names) == 0 {
		names = reg.Names()
	}
	if err := v.NoDuplicates(names, "template names"); err != nil {
		return err
	}

	var (
		success int
		failed  int
	)

	for _, name := range names {
		fmt.Fprintf(w, "Checking template: %s\n", name)
		tpl, err := reg.Get(name)
		if err != nil {
			failed++
			fmt.Fprintf(w, "\033[31m  %v\033[0m\n", err)
			continue
		}
		if _, err := tpl.RenderWith(cfg.renderOptions(), nil, nil); err != nil {
			failed++
			fmt.Fprintf(w, "\033[31m  Failed to render: %v\033[0m\n", err)
			continue
		}
		success++
		fmt.Fprintf(w, "\033[32m  Rendered successfully\033[0m\n")
	}

	fmt.Fprintf(w, "Checked %d templates: %d succeeded, %d failed\n", len(names), success, failed)
	if failed > 0 {
		return fmt.Errorf("%d templates failed", failed)
	}
	return nil
}

var checkCmd = cobra.Command{
	Use:   "check [NAME...]",
	Short: "Render every (or each named) template and report failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.loadRegistry()
		if err != nil {
			return err
		}
		return checkTemplates(config, reg, args, os.Stdout)
	},
}
