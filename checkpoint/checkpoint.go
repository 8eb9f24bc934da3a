// Package checkpoint decorates errors with the file and line of the caller,
// building up something similar to a stacktrace while staying compatible with
// errors.Is and errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From wraps an error by a new checkpoint which records the caller location.
// It returns nil if err == nil.
func From(err error) error {
	// io.EOF must stay io.EOF, some callers compare it directly.
	// https://github.com/golang/go/issues/39155
	if err == io.EOF {
		return io.EOF
	}
	if err == io.ErrUnexpectedEOF {
		return io.ErrUnexpectedEOF
	}

	if err == nil {
		return nil
	}

	_, file, line, ok := runtime.Caller(1)

	return &checkpoint{
		err:  err,
		prev: nil,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

// Wrap adds a checkpoint with caller information to prev and attaches err as
// an additional description of the checkpoint. It returns nil if prev == nil.
//
// The typical use is to attach a predefined sentinel to a lower-level error:
//  var ErrSomethingWentWrong = errors.New("something went wrong")
//
//  func someFunction() error {
//  	err := somethingThatMayFail()
//  	return checkpoint.Wrap(err, ErrSomethingWentWrong)
//  }
// Callers can then match both the sentinel and the underlying error:
//  if errors.Is(err, ErrSomethingWentWrong) {
//  	// ...
//  }
func Wrap(prev, err error) error {
	// io.EOF must stay io.EOF, some callers compare it directly.
	// https://github.com/golang/go/issues/39155
	if prev == io.EOF {
		return io.EOF
	}

	if prev == nil {
		return nil
	}

	_, file, line, ok := runtime.Caller(1)

	return &checkpoint{
		err:  err,
		prev: prev,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	err  error
	prev error

	callerOk bool
	file     string
	line     int
}

func (e *checkpoint) Error() string {
	location := "File: unknown"
	if e.callerOk {
		location = fmt.Sprintf("File: %s:%d", e.file, e.line)
	}

	if e.prev == nil {
		return fmt.Sprintf("%s\n\t%v", location, e.err)
	}

	// Indent the prev error if it is not itself a checkpoint.
	prevErrString := e.prev.Error()
	if _, ok := e.prev.(*checkpoint); !ok {
		prevErrString = "File: unknown\n\t" + strings.ReplaceAll(prevErrString, "\n", "\n\t")
	}

	return fmt.Sprintf("%s\n\t%v\n%v", location, e.err, prevErrString)
}

func (e *checkpoint) Unwrap() error {
	return e.prev
}

func (e *checkpoint) Is(target error) bool {
	return errors.Is(e.err, target)
}

func (e *checkpoint) As(target interface{}) bool {
	return errors.As(e.err, target)
}
