package compiler

import (
	"fmt"

	"github.com/conneroisu/jampass/internal/data"
	"github.com/conneroisu/jampass/internal/errors"
)

const directiveAttr = ":for-each"

// renderPass is one expansion of a usage
type renderPass struct {
	index  int
	record data.Record
}

// expandPasses returns one pass per record of the provider when the usage
// carries :for-each, and a single pass otherwise. When no records can be
// loaded the usage renders nothing and the reason is diagnosed at the usage.
func (t *transform) expandPasses(usage usageProps, openTag, file string, line int, component string) []renderPass {
	if usage.directive == "" {
		return []renderPass{{index: 0}}
	}

	if t.compiler.data == nil {
		t.diagnose(errors.Diagnostic{
			Kind:      errors.KindUnresolvedProp,
			Component: component,
			File:      file,
			Line:      line,
			Source:    truncate(openTag),
			Message:   fmt.Sprintf("no data source for %s=%q", directiveAttr, usage.directive),
		})
		return nil
	}

	records, err := t.compiler.data.Get()
	if err != nil {
		t.diagnose(errors.Diagnostic{
			Kind:      errors.KindUnresolvedProp,
			Component: component,
			File:      file,
			Line:      line,
			Source:    truncate(openTag),
			Message:   fmt.Sprintf("loading records for %s=%q: %v", directiveAttr, usage.directive, err),
		})
		return nil
	}

	passes := make([]renderPass, len(records))
	for i, r := range records {
		passes[i] = renderPass{index: i, record: r}
	}
	return passes
}
