package engine

import (
	"github.com/pkg/errors"
)

var (
	// ErrConfiguration reports caller misuse: no actions, an unresolvable
	// match field, a record missing a column, or an ambiguous match.
	ErrConfiguration = errors.New("configuration error")
	// ErrPrecondition reports an invalid descriptor or batch shape.
	ErrPrecondition = errors.New("precondition error")
)

// StorageError carries an error reported by the backend. Its message is the
// backend's own; Unwrap exposes the driver error unchanged.
type StorageError struct {
	Query string
	Err   error
}

func (e *StorageError) Error() string {
	return e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func configurationf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

func preconditionf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrPrecondition, format, args...)
}

// outcome labels err for metrics.
func outcome(err error) string {
	var storageErr *StorageError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.As(err, &storageErr):
		return "storage"
	default:
		return "error"
	}
}
