package logparse

import "fmt"

// ParseError reports a malformed field inside a recognised line
type ParseError struct {
	Line       int // 1-based, zero when unknown
	Field      string
	Value      string
	WrappedErr error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: invalid %s %q: %v", e.Line, e.Field, e.Value, e.WrappedErr)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.WrappedErr)
}
func (e *ParseError) Unwrap() error { return e.WrappedErr }

// TableError reports a row of an intermediate table that cannot be decoded
type TableError struct {
	Table      string
	Row        int
	WrappedErr error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("%s table row %d: %v", e.Table, e.Row, e.WrappedErr)
}
func (e *TableError) Unwrap() error { return e.WrappedErr }
