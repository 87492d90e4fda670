package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kayz/weave/internal/promptgen"
	"github.com/kayz/weave/internal/sources"
)

var compileBundlePath string

var compileCmd = &cobra.Command{
	Use:   "compile <template.json>",
	Short: "Validate a template and lint its data references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read template: %w", err)
		}

		opts := &promptgen.CompileOptions{}
		if compileBundlePath != "" {
			bundle, err := sources.LoadBundle(compileBundlePath)
			if err != nil {
				return err
			}
			reg := sources.NewRegistry()
			bundle.WireInto(reg)
			reg.RegisterOrdered("turns", func(args, ctx any, order string) (any, error) {
				return nil, nil
			})
			opts.AllowedSources = reg.SourceNames()
		}

		tpl, err := promptgen.Compile(raw, opts)
		if err != nil {
			return compileFailure(err)
		}

		fmt.Printf("ok: %s v%d (%d slots)\n", templateLabel(tpl), tpl.Version(), len(tpl.SlotNames()))
		return nil
	},
}

// compileFailure turns the compiler's error kinds into messages that
// point at the offending template location.
func compileFailure(err error) error {
	var se *promptgen.StructureError
	if errors.As(err, &se) {
		return fmt.Errorf("structure error at %s: %s", se.Path, se.Reason)
	}
	var le *promptgen.LintError
	if errors.As(err, &le) {
		return fmt.Errorf("unknown sources: %s", strings.Join(le.UnknownSources, ", "))
	}
	return err
}

func templateLabel(tpl *promptgen.Template) string {
	if id := tpl.ID(); id != "" {
		return id
	}
	return "(unnamed)"
}

func init() {
	compileCmd.Flags().StringVar(&compileBundlePath, "bundle", "",
		"Context bundle to lint source names against")
	rootCmd.AddCommand(compileCmd)
}
