package tree

import "fmt"

// ConstError is an immutable error constant, comparable with errors.Is and
// usable as a package-level sentinel.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

// Sentinel errors identifying the failure taxonomy. Concrete errors returned
// by this module and by package persist wrap one of these with fmt.Errorf's
// %w so callers can classify a failure with errors.Is regardless of how
// much context was attached along the way.
const (
	ErrInvalidArgument  = ConstError("invalid argument")
	ErrCapacityExceeded = ConstError("capacity exceeded")
	ErrNotAppended      = ConstError("not appended")
	ErrCorruption       = ConstError("corruption")
	ErrIO               = ConstError("io error")
	ErrDeltaMismatch    = ConstError("delta mismatch")
)

// Wrap annotates err with the given taxonomy sentinel while preserving the
// original error for errors.Is/errors.As and %w-based unwrapping.
func Wrap(sentinel ConstError, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wrapf is Wrap with a formatted message inserted between the sentinel and
// any wrapped error.
func Wrapf(sentinel ConstError, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// ExitCode maps an error produced by this module (or by package persist) to
// the CLI exit-code categories of the operational interface: corruption (2),
// capacity-exceeded (3), invalid-argument (4), I/O (5). A nil error maps to
// 0 (success), and an error outside this taxonomy maps to 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case isKind(err, ErrCorruption):
		return 2
	case isKind(err, ErrCapacityExceeded):
		return 3
	case isKind(err, ErrIO):
		return 5
	case isKind(err, ErrInvalidArgument), isKind(err, ErrNotAppended), isKind(err, ErrDeltaMismatch):
		return 4
	default:
		return 1
	}
}

func isKind(err error, sentinel ConstError) bool {
	for err != nil {
		if err == error(sentinel) {
			return true
		}
		u, ok := err.(interface{ Unwrap() []error })
		if ok {
			for _, e := range u.Unwrap() {
				if isKind(e, sentinel) {
					return true
				}
			}
			return false
		}
		single, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = single.Unwrap()
	}
	return false
}
