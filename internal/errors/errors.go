package errors

import (
	"fmt"
	"sync"
	"time"
)

// DiagnosticKind classifies a recoverable compile problem.
type DiagnosticKind string

const (
	// KindMalformedComponent reports a body that is not a template, or a
	// component that re-enters its own resolution.
	KindMalformedComponent DiagnosticKind = "MalformedComponent"
	// KindUndefinedComponent reports a usage with no registered definition.
	KindUndefinedComponent DiagnosticKind = "UndefinedComponent"
	// KindUnusedComponent reports a definition that was never used.
	KindUnusedComponent DiagnosticKind = "UnusedComponent"
	// KindUnresolvedProp reports a referenced prop without any value.
	KindUnresolvedProp DiagnosticKind = "UnresolvedProp"
	// KindMissingLinkedAsset reports an href/src target absent on disk.
	KindMissingLinkedAsset DiagnosticKind = "MissingLinkedAsset"
)

// Severity returns the default severity of the kind.
func (k DiagnosticKind) Severity() ErrorSeverity {
	if k == KindUnusedComponent {
		return ErrorSeverityWarning
	}
	return ErrorSeverityError
}

// ErrorSeverity represents the severity of a diagnostic
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is a problem found while compiling one file. None of them
// abort the compile: the offending construct is dropped or left empty.
type Diagnostic struct {
	Kind      DiagnosticKind
	Component string
	File      string
	Line      int
	// Source is the offending markup, trimmed
	Source    string
	Message   string
	Severity  ErrorSeverity
	Timestamp time.Time
}

// Error implements the error interface
func (d *Diagnostic) Error() string {
	location := d.File
	if d.Line > 0 {
		location = fmt.Sprintf("%s:%d", d.File, d.Line)
	}
	if d.Component != "" {
		return fmt.Sprintf("%s: %s: %s %q: %s", location, d.Severity, d.Kind, d.Component, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %s", location, d.Severity, d.Kind, d.Message)
}

// DiagnosticCollector collects the diagnostics of one compile call tree
type DiagnosticCollector struct {
	diagnostics []Diagnostic
	mutex       sync.RWMutex
}

// NewDiagnosticCollector creates a new collector
func NewDiagnosticCollector() *DiagnosticCollector {
	return &DiagnosticCollector{
		diagnostics: make([]Diagnostic, 0),
	}
}

// Add adds a diagnostic, filling in severity and timestamp
func (dc *DiagnosticCollector) Add(d Diagnostic) {
	dc.mutex.Lock()
	defer dc.mutex.Unlock()
	if d.Severity == 0 {
		d.Severity = d.Kind.Severity()
	}
	d.Timestamp = time.Now()
	dc.diagnostics = append(dc.diagnostics, d)
}

// Diagnostics returns a copy of the collected diagnostics
func (dc *DiagnosticCollector) Diagnostics() []Diagnostic {
	dc.mutex.RLock()
	defer dc.mutex.RUnlock()
	result := make([]Diagnostic, len(dc.diagnostics))
	copy(result, dc.diagnostics)
	return result
}

// ByKind returns the diagnostics of one kind
func (dc *DiagnosticCollector) ByKind(kind DiagnosticKind) []Diagnostic {
	dc.mutex.RLock()
	defer dc.mutex.RUnlock()
	var result []Diagnostic
	for _, d := range dc.diagnostics {
		if d.Kind == kind {
			result = append(result, d)
		}
	}
	return result
}

// ByFile returns the diagnostics recorded against a file
func (dc *DiagnosticCollector) ByFile(file string) []Diagnostic {
	dc.mutex.RLock()
	defer dc.mutex.RUnlock()
	var result []Diagnostic
	for _, d := range dc.diagnostics {
		if d.File == file {
			result = append(result, d)
		}
	}
	return result
}

// HasErrors reports whether any diagnostic is at error severity
func (dc *DiagnosticCollector) HasErrors() bool {
	dc.mutex.RLock()
	defer dc.mutex.RUnlock()
	for _, d := range dc.diagnostics {
		if d.Severity >= ErrorSeverityError {
			return true
		}
	}
	return false
}

// Len returns the number of diagnostics
func (dc *DiagnosticCollector) Len() int {
	dc.mutex.RLock()
	defer dc.mutex.RUnlock()
	return len(dc.diagnostics)
}

// Clear clears all diagnostics
func (dc *DiagnosticCollector) Clear() {
	dc.mutex.Lock()
	defer dc.mutex.Unlock()
	dc.diagnostics = dc.diagnostics[:0]
}
