package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/jampass/internal/build"
)

var componentsCmd = &cobra.Command{
	Use:     "components",
	Aliases: []string{"ls"},
	Short:   "List the components each page registers",
	Long: `Compile every page without writing output and list the components
registered by inline templates and component links, with their declared
props and the pages using them.

Examples:
  jampass components             # Table output
  jampass components -f json     # JSON output
  jampass components -f yaml     # YAML output`,
	RunE: runComponents,
}

var componentsFormat string

func init() {
	rootCmd.AddCommand(componentsCmd)

	componentsCmd.Flags().StringVarP(&componentsFormat, "format", "f", "table", "Output format (table|json|yaml)")
	AddFlagValidation(componentsCmd.Flags(), "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"table", "json", "yaml"})
	})
}

func runComponents(cmd *cobra.Command, args []string) error {
	_, builder, _, err := setup(cmd)
	if err != nil {
		return err
	}

	components, err := builder.Components(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list components: %w", err)
	}

	out := cmd.OutOrStdout()
	switch componentsFormat {
	case "json":
		return outputComponentsJSON(out, components)
	case "yaml":
		return outputComponentsYAML(out, components)
	default:
		return outputComponentsTable(out, components)
	}
}

func outputComponentsJSON(w io.Writer, components []build.ComponentInfo) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(components)
}

func outputComponentsYAML(w io.Writer, components []build.ComponentInfo) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	return encoder.Encode(components)
}

func outputComponentsTable(w io.Writer, components []build.ComponentInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tFILE\tPROPS\tUSAGES\tPAGES")
	fmt.Fprintln(tw, "--\t----\t-----\t------\t-----")

	for _, c := range components {
		id := c.ID
		if c.Fragment {
			id += " (fragment)"
		}
		fmt.Fprintf(tw, "%s\t%s:%d\t%s\t%d\t%s\n",
			id, c.File, c.Line, strings.Join(c.Props, ", "), c.Usages, strings.Join(c.Pages, ", "))
	}

	fmt.Fprintf(tw, "\nTotal: %d components\n", len(components))

	return tw.Flush()
}
