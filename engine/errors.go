// Package engine holds what the interpreter back-ends share: the failures a
// caller can hit before the first instruction is dispatched.
package engine

import (
	"fmt"
	"strings"
)

// ModuleLoadError reports a module file that could not be read or compiled.
type ModuleLoadError struct {
	Path string
	Err  error
}

func (e *ModuleLoadError) Error() string {
	return fmt.Sprintf("loading module %s: %v", e.Path, e.Err)
}

func (e *ModuleLoadError) Unwrap() error { return e.Err }

type ExportNotFoundError struct {
	Name      string
	Available []string
}

func (e *ExportNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("export %q not found: module exports no function", e.Name)
	}
	return fmt.Sprintf("export %q not found, available: %s", e.Name, strings.Join(e.Available, ", "))
}

// ArgumentParseError reports a command-line argument that does not fit the
// parameter type at Index. Value is empty when the argument is missing.
type ArgumentParseError struct {
	Index    int
	Value    string
	Expected string
	Err      error
}

func (e *ArgumentParseError) Error() string {
	msg := fmt.Sprintf("argument %d: %q is not a valid %s", e.Index, e.Value, e.Expected)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ArgumentParseError) Unwrap() error { return e.Err }
