// Package cmd provides the jampass command-line interface.
//
// Configuration is read, highest priority first, from:
//  1. command-line flags (--root, --output, --log-level, ...)
//  2. JAMPASS_* environment variables, including those set by a .env file
//     in the working directory (JAMPASS_BUILD_OUTPUT, JAMPASS_LOG_LEVEL, ...)
//  3. the configuration file: --config, JAMPASS_CONFIG_FILE, or .jampass.yml
//  4. built-in defaults
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/jampass/internal/build"
	"github.com/conneroisu/jampass/internal/config"
	"github.com/conneroisu/jampass/internal/env"
	"github.com/conneroisu/jampass/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jampass",
	Short: "Compile component-based markup into a static site",
	Long: `jampass compiles HTML pages written with x- components into plain
HTML, CSS and JavaScript.

Components are <template id="x-..."> blocks, declared inline or linked with
<link rel="component" href="..." id="x-...">. Usages take props, slots and
:for-each over data records; their style and script are scoped to the
rendered instance.

Commands:
  jampass gen          Compile the site (default)
  jampass watch        Compile, then recompile on every change
  jampass components   List the components each page registers
  jampass version      Show version information`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return SetViperBindings(cmd.Root().PersistentFlags(), map[string]string{
			"root":       "build.root",
			"log-level":  "log.level",
			"log-format": "log.format",
		})
	},
	RunE: runGen,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .jampass.yml, can also use JAMPASS_CONFIG_FILE env var)")
	flags.String("root", ".", "project root")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	AddFlagValidation(flags, "log-format", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"text", "json"})
	})
}

// initConfig wires viper to the config file and the environment.
func initConfig() {
	// .env first, so JAMPASS_* values it sets are seen below
	if _, err := env.Load(env.FileName); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("JAMPASS_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".jampass")
	}

	viper.SetEnvPrefix("JAMPASS")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.RegisterDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger(cfg *config.Config, w io.Writer) logging.Logger {
	loggerConfig := logging.DefaultConfig()
	loggerConfig.Level = logging.ParseLevel(cfg.Log.Level)
	loggerConfig.Format = cfg.Log.Format
	loggerConfig.Output = w
	return logging.NewLogger(loggerConfig)
}

// setup loads the configuration and creates the builder every command runs
func setup(cmd *cobra.Command) (*config.Config, *build.Builder, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	builder, err := build.NewBuilder(cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create builder: %w", err)
	}

	return cfg, builder, logger, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printReport(w io.Writer, report *build.Report) {
	fmt.Fprintf(w, "Built %d page(s), %d unchanged, %d asset(s) copied in %s",
		report.Pages, report.Skipped, report.Assets, report.Duration.Round(time.Millisecond))
	if report.Removed > 0 {
		fmt.Fprintf(w, ", %d removed", report.Removed)
	}
	if n := len(report.Diagnostics); n > 0 {
		fmt.Fprintf(w, " (%d diagnostic(s))", n)
	}
	fmt.Fprintln(w)
}
