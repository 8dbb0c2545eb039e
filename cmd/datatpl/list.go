package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neurodesk/datatpl/pkg/templates"
)

func listTemplates(reg *templates.Registry, w io.Writer) error {
	for _, name := range reg.Names() {
		tpl, err := reg.Get(name)
		if err != nil {
			return err
		}
		aliases := slices.Sorted(maps.Keys(tpl.References))
		if len(aliases) == 0 {
			fmt.Fprintln(w, name)
			continue
		}
		fmt.Fprintf(w, "%s (%s)\n", name, strings.Join(aliases, ", "))
	}
	return nil
}

var listCmd = cobra.Command{
	Use:   "list",
	Short: "List registered templates and the references they declare",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.loadRegistry()
		if err != nil {
			return err
		}
		return listTemplates(reg, os.Stdout)
	},
}
