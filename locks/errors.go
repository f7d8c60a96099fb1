package locks

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
)

// ConnectionError reports that a store could not talk to its backend.
// Code carries a driver specific code when the driver reports one; zero
// means the connection is simply gone.
type ConnectionError struct {
	Code int
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("lock store connection error (code %d): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("lock store connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionLost reports whether err carries a ConnectionError with no
// qualifying code.
func IsConnectionLost(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) && connErr.Code == 0
}

// WrapConnError wraps err in a ConnectionError when it is a connectivity
// failure and returns it unchanged otherwise.
func WrapConnError(err error) error {
	if err == nil {
		return nil
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return err
	}

	// Deadlines are the caller's policy, not a broken connection
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, ErrStoreClosed),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &netErr):
		return &ConnectionError{Err: err}
	}

	return err
}
