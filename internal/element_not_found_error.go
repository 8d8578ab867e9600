package internal

import (
	"errors"
	"fmt"
)

type ElementNotFoundError struct {
	Selector string
}

func NewElementNotFoundError(selector fmt.Stringer) *ElementNotFoundError {
	return &ElementNotFoundError{Selector: selector.String()}
}

func (e ElementNotFoundError) Error() string {
	return fmt.Sprintf("element '%s' not found", e.Selector)
}

// Is matches any ElementNotFoundError regardless of selector,
// so callers can write errors.Is(err, &ElementNotFoundError{})
func (e ElementNotFoundError) Is(target error) bool {
	var t *ElementNotFoundError
	ok := errors.As(target, &t)
	return ok
}
