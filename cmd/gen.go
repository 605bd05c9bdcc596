package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var genCmd = &cobra.Command{
	Use:     "gen",
	Aliases: []string{"build", "g"},
	Short:   "Compile the site",
	Long: `Compile every page below the source directory into the output directory.
Pages whose content is unchanged since the last run in this process are
skipped; linked assets are copied next to the pages referencing them.

Diagnostics (undefined components, unresolved props, missing assets) are
logged and do not fail the build unless --strict is given.

Examples:
  jampass gen                    # Compile src/ (or the project root) to public/
  jampass gen -o dist            # Compile to dist/
  jampass gen --strict           # Exit non-zero on error diagnostics`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return SetViperBindings(cmd.Flags(), buildFlagBindings)
	},
	RunE: runGen,
}

var genStrict bool

// buildFlagBindings maps the directory flags shared by gen and watch
var buildFlagBindings = map[string]string{
	"src":    "build.src",
	"output": "build.output",
	"data":   "build.data_dir",
}

func init() {
	rootCmd.AddCommand(genCmd)

	addBuildFlags(genCmd)
	genCmd.Flags().BoolVar(&genStrict, "strict", false, "Exit non-zero when any diagnostic is an error")
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("src", "s", "", "Source directory, relative to the root")
	cmd.Flags().StringP("output", "o", "", "Output directory, relative to the root")
	cmd.Flags().String("data", "", "Data directory, relative to the root")
}

func runGen(cmd *cobra.Command, args []string) error {
	_, builder, _, err := setup(cmd)
	if err != nil {
		return err
	}

	report, err := builder.Build(commandContext(cmd))
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if genStrict && report.HasErrors() {
		return fmt.Errorf("build finished with errors: %d diagnostic(s)", len(report.Diagnostics))
	}

	return nil
}
