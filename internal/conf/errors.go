package conf

import (
	"errors"
	"fmt"
)

// ErrNoConfig is returned by FindConfig when no candidate config file exists.
var ErrNoConfig = errors.New("no config file found")

// IOError is returned when a config file cannot be read from disk.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("reading config file %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError is returned when a config file exists but its document structure
// cannot be parsed. Malformed individual ignore-rule entries do NOT produce a
// ParseError; they degrade to invalid-rule markers instead.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing config file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
