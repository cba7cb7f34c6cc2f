package render

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateDepth marks a template chain longer than the configured
	// maximum, usually a template that points back at itself.
	ErrTemplateDepth = errors.New("render: template nesting too deep")

	// ErrInvalidElementType marks an element whose type carries no store
	// prefix.
	ErrInvalidElementType = errors.New("render: element type must be store-prefixed")
)

// ElementError wraps a failure while rendering one element, carrying enough
// position info to report it against the page tree.
type ElementError struct {
	ElementType string
	ElementID   string
	Err         error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("render element %q (id %q): %v", e.ElementType, e.ElementID, e.Err)
}

func (e *ElementError) Unwrap() error {
	return e.Err
}
