// Package build runs the compiler over a project's source tree. It decides
// which pages need compiling from the fingerprints and dependency graph kept
// in memory.Memory, writes compiled pages and their linked assets to the
// output directory, and maps watch events to the set of pages to rebuild.
package build

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/jampass/internal/compiler"
	"github.com/conneroisu/jampass/internal/config"
	"github.com/conneroisu/jampass/internal/data"
	"github.com/conneroisu/jampass/internal/env"
	"github.com/conneroisu/jampass/internal/errors"
	"github.com/conneroisu/jampass/internal/logging"
	"github.com/conneroisu/jampass/internal/memory"
	"github.com/conneroisu/jampass/internal/paths"
	"github.com/conneroisu/jampass/internal/types"
	"github.com/conneroisu/jampass/internal/watcher"
)

const pageExt = ".html"

// Report summarises one build run
type Report struct {
	// Pages is the number of pages compiled and written
	Pages int
	// Skipped counts pages whose fingerprint was unchanged
	Skipped int
	// Components counts component source files met while walking
	Components int
	// Assets counts linked assets copied to the output directory
	Assets int
	// Removed counts output files deleted after their source went away
	Removed int
	// Failed lists pages that could not be compiled or written
	Failed      []string
	Diagnostics []errors.Diagnostic
	Duration    time.Duration
}

// HasErrors reports whether a page failed or any diagnostic is an error
func (r *Report) HasErrors() bool {
	if len(r.Failed) > 0 {
		return true
	}
	for _, d := range r.Diagnostics {
		if d.Severity >= errors.ErrorSeverityError {
			return true
		}
	}
	return false
}

// Builder compiles a project. Builds are serialised: a watch-mode rebuild
// waits for the build in flight.
type Builder struct {
	config   *config.Config
	memory   *memory.Memory
	source   *FileSource
	data     *data.FileProvider
	resolver *paths.Resolver
	compiler *compiler.Compiler
	metrics  *BuildMetrics
	logger   logging.Logger

	envLoaded bool
	mutex     sync.Mutex
}

// NewBuilder creates a builder for the project described by cfg
func NewBuilder(cfg *config.Config, logger logging.Logger) (*Builder, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	source, err := NewFileSource(DefaultSourceCacheSize)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		config:   cfg,
		memory:   memory.New(),
		source:   source,
		data:     data.NewFileProvider(cfg.DataPath()),
		resolver: paths.NewResolver(cfg.Build.Root),
		metrics:  NewBuildMetrics(),
		logger:   logger.WithComponent("builder"),
	}
	b.compiler = compiler.New(b.memory, b.source, b.resolver, b.data, logger)

	return b, nil
}

// Memory returns the incremental-build state shared by every run
func (b *Builder) Memory() *memory.Memory {
	return b.memory
}

// Metrics returns the run counters
func (b *Builder) Metrics() *BuildMetrics {
	return b.metrics
}

// SourceStats returns the read cache counters
func (b *Builder) SourceStats() SourceStats {
	return b.source.Stats()
}

// Build compiles every page whose content changed since the previous run.
// When the output directory is missing every page is compiled.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.run(ctx, "build", func(report *Report) error {
		if err := b.loadEnv(ctx); err != nil {
			return err
		}
		if !dirExists(b.config.OutputDir()) {
			b.memory.Clear()
		}
		return b.buildAll(ctx, false, report)
	})
}

// Rebuild handles one debounced batch of watch events. Edited pages and
// every page depending on an edited file are recompiled. A .env or data
// file edit, or a missing output directory, recompiles everything.
func (b *Builder) Rebuild(ctx context.Context, events []watcher.ChangeEvent) (*Report, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.run(ctx, "rebuild", func(report *Report) error {
		full := false
		targets := make(map[string]struct{})

		for _, event := range events {
			path := filepath.Clean(event.Path)

			switch {
			case env.IsEnvFile(path):
				if _, err := env.Reload(path); err != nil {
					b.logger.Warn(ctx, err, "Failed to reload dotenv file", "path", path)
				}
				b.memory.Signal(types.SignalEditedEnv)
				full = true

			case data.IsDataFile(path) && paths.Within(b.config.DataPath(), path):
				b.data.Invalidate()
				full = true

			case event.Type.IsRemoval():
				b.remove(ctx, path, report)
				for _, dependent := range b.memory.Dependents(path) {
					targets[dependent] = struct{}{}
				}

			default:
				if b.isPage(path) {
					targets[path] = struct{}{}
				}
				if b.memory.IsLinked(path) {
					b.memory.Signal(editSignal(path))
					for _, dependent := range b.memory.Dependents(path) {
						targets[dependent] = struct{}{}
					}
				}
			}
		}

		if !dirExists(b.config.OutputDir()) {
			b.memory.Clear()
			full = true
		}

		if full {
			return b.buildAll(ctx, true, report)
		}
		return b.buildTargets(ctx, sortedKeys(targets), true, report)
	})
}

func (b *Builder) run(ctx context.Context, operation string, fn func(report *Report) error) (*Report, error) {
	perf := logging.StartOperation(b.logger, operation)
	report := &Report{}
	start := time.Now()

	err := fn(report)
	b.memory.ResetSignals()

	if err == nil && len(report.Failed) > 0 {
		err = errors.NewBuildError(errors.ErrCodeBuildFailed,
			fmt.Sprintf("%d page(s) failed: %s", len(report.Failed), strings.Join(report.Failed, ", ")), nil)
	}

	report.Duration = time.Since(start)
	b.metrics.RecordBuild(report, err)

	if err != nil {
		perf.EndWithError(ctx, err)
		return report, err
	}

	perf.End(ctx,
		"pages", report.Pages,
		"skipped", report.Skipped,
		"assets", report.Assets,
		"diagnostics", len(report.Diagnostics),
	)
	return report, nil
}

func (b *Builder) loadEnv(ctx context.Context) error {
	if b.envLoaded {
		return nil
	}
	values, err := env.Load(b.config.EnvPath())
	if err != nil {
		return fmt.Errorf("loading environment: %w", err)
	}
	b.envLoaded = true
	b.logger.Debug(ctx, "Environment loaded", "path", b.config.EnvPath(), "variables", len(values))
	return nil
}

func (b *Builder) buildAll(ctx context.Context, force bool, report *Report) error {
	pages, err := b.pages()
	if err != nil {
		return err
	}
	return b.buildTargets(ctx, pages, force, report)
}

// buildTargets compiles the given pages in order. Targets that no longer
// exist or are not pages below the source directory are ignored.
func (b *Builder) buildTargets(ctx context.Context, targets []string, force bool, report *Report) error {
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !b.isPage(target) || !b.source.Exists(target) {
			continue
		}
		if err := b.buildPage(ctx, target, force, report); err != nil {
			b.logger.Error(ctx, err, "Page failed", "page", target)
			report.Failed = append(report.Failed, target)
		}
	}
	return nil
}

// pages lists every page below the source directory, sorted
func (b *Builder) pages() ([]string, error) {
	srcDir := filepath.Clean(b.config.SrcDir())
	if !dirExists(srcDir) {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "source directory not found", nil).
			WithLocation(srcDir, 0)
	}

	var pages []string
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != srcDir && b.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if b.isPage(path) {
			pages = append(pages, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeReadFailed, "walking source directory", err).
			WithLocation(srcDir, 0)
	}

	sort.Strings(pages)
	return pages, nil
}

// SkipWatch reports whether the watch loop should not descend into dir.
// The data directory stays watched so record edits trigger a rebuild.
func (b *Builder) SkipWatch(dir string) bool {
	dir = filepath.Clean(dir)
	return b.config.Ignored(filepath.Base(dir)) || paths.Within(b.config.OutputDir(), dir)
}

func (b *Builder) skipDir(dir string) bool {
	return b.config.Ignored(filepath.Base(dir)) ||
		paths.Within(b.config.OutputDir(), dir) ||
		paths.Within(b.config.DataPath(), dir)
}

// isPage reports whether path is an .html file below the source directory
// and outside the ignored and generated directories
func (b *Builder) isPage(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), pageExt) || b.config.Ignored(filepath.Base(path)) {
		return false
	}

	srcDir := filepath.Clean(b.config.SrcDir())
	rel, err := filepath.Rel(srcDir, filepath.Dir(path))
	if err != nil || !paths.Within(srcDir, path) {
		return false
	}

	dir := srcDir
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "." || part == "" {
			continue
		}
		dir = filepath.Join(dir, part)
		if b.skipDir(dir) {
			return false
		}
	}
	return true
}

// IsComponentSource reports whether content is a component file rather
// than a page: its first element is a <template>.
func IsComponentSource(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), "<template")
}

func (b *Builder) buildPage(ctx context.Context, path string, force bool, report *Report) error {
	content, err := b.source.ReadFile(path)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeReadFailed, "reading page", err).WithLocation(path, 0)
	}

	if IsComponentSource(content) {
		report.Components++
		b.memory.Remember(path, content)
		return nil
	}

	target, err := paths.OutputPath(b.config.SrcDir(), b.config.OutputDir(), path)
	if err != nil {
		return fmt.Errorf("mapping %s to the output directory: %w", path, err)
	}

	if !force && !b.memory.Changed(path, content) && fileExists(target) {
		report.Skipped++
		return nil
	}

	output, err := b.compiler.Transform(content, path)
	if err != nil {
		return fmt.Errorf("compiling %s: %w", path, err)
	}
	report.Diagnostics = append(report.Diagnostics, output.Diagnostics...)

	if err := writeFile(target, []byte(output.Code)); err != nil {
		return errors.NewIOError(errors.ErrCodeWriteFailed, "writing page", err).WithLocation(target, 0)
	}

	b.memory.Link(output.Linked)
	b.memory.Remember(path, content)
	report.Pages++
	b.logger.Debug(ctx, "Page written", "page", path, "output", target)

	for _, linked := range output.Linked {
		if linked.IsComponent {
			continue
		}
		b.copyAsset(ctx, linked.Asset, report)
	}

	return nil
}

// copyAsset mirrors a linked asset into the output directory when its
// content changed. Missing assets were already reported by the compiler.
func (b *Builder) copyAsset(ctx context.Context, asset string, report *Report) {
	target, ok := b.assetOutput(asset)
	if !ok {
		b.logger.Debug(ctx, "Linked asset not copied", "asset", asset)
		return
	}

	raw, err := os.ReadFile(asset)
	if err != nil {
		if !os.IsNotExist(err) {
			b.logger.Warn(ctx, err, "Failed to read linked asset", "asset", asset)
		}
		return
	}

	content := string(raw)
	if !b.memory.Changed(asset, content) && fileExists(target) {
		return
	}

	if err := writeFile(target, raw); err != nil {
		b.logger.Warn(ctx, err, "Failed to copy linked asset", "asset", asset, "output", target)
		return
	}

	b.memory.Remember(asset, content)
	report.Assets++
}

// assetOutput maps an asset to its output location: below the source
// directory it keeps its path relative to it, elsewhere in the project its
// path relative to the root.
func (b *Builder) assetOutput(asset string) (string, bool) {
	if paths.Within(b.config.OutputDir(), asset) {
		return "", false
	}

	for _, base := range []string{b.config.SrcDir(), b.config.Build.Root} {
		if !paths.Within(base, asset) {
			continue
		}
		target, err := paths.OutputPath(base, b.config.OutputDir(), asset)
		if err != nil {
			return "", false
		}
		return target, true
	}

	return "", false
}

// remove forgets a deleted file and deletes what was generated from it
func (b *Builder) remove(ctx context.Context, path string, report *Report) {
	b.memory.Forget(path)

	var target string
	switch {
	case b.isPage(path):
		out, err := paths.OutputPath(b.config.SrcDir(), b.config.OutputDir(), path)
		if err != nil {
			return
		}
		target = out
	case b.memory.IsLinked(path):
		out, ok := b.assetOutput(path)
		if !ok {
			return
		}
		target = out
	default:
		return
	}

	if err := os.Remove(target); err != nil {
		if !os.IsNotExist(err) {
			b.logger.Warn(ctx, err, "Failed to remove output", "output", target)
		}
		return
	}
	report.Removed++
	b.logger.Debug(ctx, "Output removed", "source", path, "output", target)
}

func editSignal(path string) types.Signal {
	if strings.EqualFold(filepath.Ext(path), pageExt) {
		return types.SignalEditedComponent
	}
	return types.SignalEditedAsset
}

func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o644)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
