package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(root string)
		expectError bool
		check       func(t *testing.T, config *Config)
	}{
		{
			name:  "defaults",
			setup: func(root string) {},
			check: func(t *testing.T, config *Config) {
				assert.Equal(t, ".", config.Build.Src)
				assert.Equal(t, DefaultOutput, config.Build.Output)
				assert.Equal(t, DefaultDataDir, config.Build.DataDir)
				assert.Equal(t, []string{"node_modules", ".git"}, config.Build.Ignore)
				assert.Equal(t, DefaultDebounceMS, config.Watch.DebounceMS)
				assert.Equal(t, "info", config.Log.Level)
				assert.Equal(t, "text", config.Log.Format)
			},
		},
		{
			name: "src directory is picked up",
			setup: func(root string) {
				require.NoError(t, os.Mkdir(filepath.Join(root, "src"), 0o755))
			},
			check: func(t *testing.T, config *Config) {
				assert.Equal(t, "src", config.Build.Src)
			},
		},
		{
			name: "explicit values",
			setup: func(root string) {
				viper.Set("build.src", "pages")
				viper.Set("build.output", "dist")
				viper.Set("build.data_dir", "records")
				viper.Set("build.ignore", []string{"vendor"})
				viper.Set("watch.debounce_ms", 50)
				viper.Set("log.level", "debug")
				viper.Set("log.format", "json")
			},
			check: func(t *testing.T, config *Config) {
				assert.Equal(t, "pages", config.Build.Src)
				assert.Equal(t, "dist", config.Build.Output)
				assert.Equal(t, "records", config.Build.DataDir)
				assert.Equal(t, []string{"vendor"}, config.Build.Ignore)
				assert.Equal(t, 50, config.Watch.DebounceMS)
				assert.Equal(t, "debug", config.Log.Level)
				assert.Equal(t, "json", config.Log.Format)
			},
		},
		{
			name: "output equal to src",
			setup: func(root string) {
				viper.Set("build.src", "site")
				viper.Set("build.output", "site/")
			},
			expectError: true,
		},
		{
			name: "output at project root",
			setup: func(root string) {
				viper.Set("build.output", ".")
			},
			expectError: true,
		},
		{
			name: "output escapes root",
			setup: func(root string) {
				viper.Set("build.output", "../public")
			},
			expectError: true,
		},
		{
			name: "unknown log format",
			setup: func(root string) {
				viper.Set("log.format", "xml")
			},
			expectError: true,
		},
		{
			name: "negative debounce",
			setup: func(root string) {
				viper.Set("watch.debounce_ms", -1)
			},
			expectError: true,
		},
		{
			name: "malformed ignore pattern",
			setup: func(root string) {
				viper.Set("build.ignore", []string{"[a-"})
			},
			expectError: true,
		},
		{
			name: "unparseable debounce",
			setup: func(root string) {
				viper.Set("watch.debounce_ms", "soon")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)

			root := t.TempDir()
			viper.Set("build.root", root)
			tt.setup(root)

			config, err := Load()

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, config)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, config)
			assert.Equal(t, root, config.Build.Root)
			tt.check(t, config)
		})
	}
}

func TestConfigDirectories(t *testing.T) {
	config := &Config{Build: BuildConfig{
		Root:    "site",
		Src:     "src",
		Output:  "public",
		DataDir: "data",
	}}

	assert.Equal(t, filepath.Join("site", "src"), config.SrcDir())
	assert.Equal(t, filepath.Join("site", "public"), config.OutputDir())
	assert.Equal(t, filepath.Join("site", "data"), config.DataPath())
	assert.Equal(t, filepath.Join("site", ".env"), config.EnvPath())
}

func TestIgnored(t *testing.T) {
	config := &Config{Build: BuildConfig{Ignore: []string{"node_modules", ".git", "*.draft.html"}}}

	tests := []struct {
		name     string
		expected bool
	}{
		{"node_modules", true},
		{".git", true},
		{"post.draft.html", true},
		{"post.html", false},
		{"src", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, config.Ignored(tt.name))
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"public", false},
		{"./public", false},
		{"nested/out", false},
		{"..public", false},
		{"", true},
		{"..", true},
		{"../out", true},
		{"/abs/out", true},
		{"bad\x00path", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegisterDefaultsExposesEnvironment(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("JAMPASS_BUILD_OUTPUT", "dist")
	t.Setenv("JAMPASS_BUILD_ROOT", t.TempDir())
	viper.SetEnvPrefix("JAMPASS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	RegisterDefaults()

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dist", config.Build.Output)
	assert.Equal(t, DefaultDataDir, config.Build.DataDir)
}
