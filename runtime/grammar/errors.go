package grammar

import (
	"fmt"
	"strings"
)

// SchemaError reports a grammar validation failure. It always carries the
// full symbol-path context chain from the document root to the failure point
// so callers (and model prompts) can locate the offending node. Schema errors
// abort the entire validate call; no partially validated tree is returned.
type SchemaError struct {
	// Message describes the violation.
	Message string
	// Chain is the symbol path from the document root to the failure point.
	Chain []string
}

// Error implements the error interface, rendering the context chain as a
// "root > child > leaf" prefix.
func (e *SchemaError) Error() string {
	if len(e.Chain) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", strings.Join(e.Chain, " > "), e.Message)
}

// schemaErrorf builds a SchemaError with a copy of the context chain so
// callers may keep growing their own slice.
func schemaErrorf(chain []string, format string, args ...any) *SchemaError {
	return &SchemaError{
		Message: fmt.Sprintf(format, args...),
		Chain:   append([]string(nil), chain...),
	}
}

// prefixChain returns err with outer prepended to its context chain when err
// is a SchemaError. Used when an embedded payload fails so the outer
// document's path is visible in the report.
func prefixChain(outer []string, err error) error {
	se, ok := err.(*SchemaError)
	if !ok {
		return err
	}
	chain := make([]string, 0, len(outer)+len(se.Chain))
	chain = append(chain, outer...)
	chain = append(chain, se.Chain...)
	return &SchemaError{Message: se.Message, Chain: chain}
}
