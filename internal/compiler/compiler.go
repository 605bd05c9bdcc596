// Package compiler turns component-oriented markup into plain HTML.
//
// Pages and component files are scanned line by line. Inline
// <template id="x-..."> blocks and rel="component" links register component
// definitions; <x-...> usages are rendered in place with their props, slots
// and :for-each passes resolved. Style and script embedded in a component
// are rewritten so they only apply to the rendered instance, pooled, and
// emitted once per page.
//
// Source formatting is kept: lines that hold no component syntax are copied
// byte for byte, so compiling fully compiled output is a no-op.
package compiler

import (
	"context"

	"github.com/conneroisu/jampass/internal/data"
	"github.com/conneroisu/jampass/internal/errors"
	"github.com/conneroisu/jampass/internal/logging"
	"github.com/conneroisu/jampass/internal/memory"
	"github.com/conneroisu/jampass/internal/types"
)

// Source gives the compiler read access to linked files
type Source interface {
	ReadFile(path string) (string, error)
	Exists(path string) bool
}

// PathResolver maps an href or src found in file to a path Source accepts
type PathResolver interface {
	ResolveLinked(file, ref string) string
}

// Output is the result of compiling one document
type Output struct {
	Code        string
	Linked      []types.LinkedAsset
	Diagnostics []errors.Diagnostic
	// Definitions are the components registered at the top level of the
	// document, sorted by id
	Definitions []*Definition
}

// HasErrors reports whether any diagnostic is at error severity
func (o *Output) HasErrors() bool {
	for _, d := range o.Diagnostics {
		if d.Severity >= errors.ErrorSeverityError {
			return true
		}
	}
	return false
}

// Compiler compiles documents against one Memory. A Compiler must not run
// transforms concurrently.
type Compiler struct {
	memory   *memory.Memory
	source   Source
	resolver PathResolver
	data     data.Provider
	logger   logging.Logger
}

// New creates a compiler. provider may be nil when no :for-each is used;
// a nil logger discards output.
func New(mem *memory.Memory, source Source, resolver PathResolver, provider data.Provider, logger logging.Logger) *Compiler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Compiler{
		memory:   mem,
		source:   source,
		resolver: resolver,
		data:     provider,
		logger:   logger.WithComponent("compiler"),
	}
}

// Transform compiles source, the content of file, and flushes the pooled
// style and script into the page. Only a failure reading an existing
// component file is returned as an error; every other problem is reported
// as a diagnostic and the offending construct is dropped.
func (c *Compiler) Transform(source, file string) (*Output, error) {
	t := &transform{
		ctx:         context.Background(),
		compiler:    c,
		diagnostics: errors.NewDiagnosticCollector(),
		inProgress:  make(map[string]bool),
	}

	root := newScope(nil)
	code, err := t.compile(source, file, 1, root, modeDocument)
	if err != nil {
		// drop what this transform pooled so the next page starts clean
		c.memory.FlushStyles()
		c.memory.FlushScripts()
		return nil, err
	}
	t.reportUnused(root)

	code = flush(code, c.memory.FlushStyles(), c.memory.FlushScripts())

	out := &Output{
		Code:        code,
		Linked:      t.linked,
		Diagnostics: t.diagnostics.Diagnostics(),
		Definitions: root.definitions(),
	}

	c.logger.Debug(t.ctx, "compiled document",
		"file", file,
		"linked", len(out.Linked),
		"diagnostics", len(out.Diagnostics))

	return out, nil
}

// transform is the state of one Transform call tree
type transform struct {
	ctx         context.Context
	compiler    *Compiler
	diagnostics *errors.DiagnosticCollector
	linked      []types.LinkedAsset
	// inProgress holds "file#id" of components being compiled
	inProgress map[string]bool
}

func (t *transform) diagnose(d errors.Diagnostic) {
	if d.Severity == 0 {
		d.Severity = d.Kind.Severity()
	}
	t.diagnostics.Add(d)

	if d.Severity == errors.ErrorSeverityWarning {
		t.compiler.logger.Warn(t.ctx, &d, string(d.Kind),
			"file", d.File, "line", d.Line, "component", d.Component)
		return
	}
	t.compiler.logger.Error(t.ctx, &d, string(d.Kind),
		"file", d.File, "line", d.Line, "component", d.Component, "source", d.Source)
}
