package environment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotFound matches any NotFoundError
	ErrNotFound = errors.New("environment config not found")
	// ErrMalformed matches any MalformedError
	ErrMalformed = errors.New("environment config malformed")
)

// NotFoundError is returned when no record exists for the requested name
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	quoted := make([]string, len(e.Available))
	for i, name := range e.Available {
		quoted[i] = strconv.Quote(name)
	}
	return fmt.Sprintf("environment config %q not found. Available environments: [%s]",
		e.Name, strings.Join(quoted, ","))
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// MalformedError wraps the decoder diagnostic for a record that could not be parsed
type MalformedError struct {
	Name string
	Path string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("invalid environment config %q in %s: %v", e.Name, e.Path, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}
