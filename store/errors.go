package store

import (
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

var (
	// ErrNotFound marks a page, widget, or store that does not exist. It
	// surfaces as a 404 at the boundary and is never fatal to the process.
	ErrNotFound = errors.New("store: not found")

	// ErrNotSupported marks an operation a store variant does not implement,
	// e.g. saving through the HTTP store.
	ErrNotSupported = errors.New("store: operation not supported")
)

// NotFoundError reports an unknown store name together with the registered
// names, which makes the most common misconfiguration self-diagnosing.
type NotFoundError struct {
	Store string
	Known []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: %q not found, known stores: %s", e.Store, strings.Join(e.Known, ", "))
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// WrapNotFound attaches the not-found category so HTTP adapters can map the
// failure mechanically.
func WrapNotFound(err error, msg string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryNotFound, msg)
}
