package tables

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingInput is returned when an expected input table does not exist.
	ErrMissingInput = errors.New("missing input")
	// ErrSchemaMismatch matches every *SchemaError.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// SchemaError reports the required columns absent from a table header.
type SchemaError struct {
	Path    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing columns [%s]", e.Path, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaMismatch
}
