package datasource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
)

// ErrorKind separates statement failures from failures to reach the store.
type ErrorKind string

const (
	KindSQL          ErrorKind = "sql"
	KindConnectivity ErrorKind = "connectivity"
)

// Error is a classified store failure.
type Error struct {
	Kind    ErrorKind
	Backend string
	// Policy is set when the store refused the connection on network policy
	// grounds (IP allow lists, firewall rules).
	Policy bool
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s error: %v", e.Backend, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewSQLError wraps a statement failure.
func NewSQLError(backend string, err error) *Error {
	return &Error{Kind: KindSQL, Backend: backend, Err: err}
}

// NewConnectivityError wraps a failure to reach the store.
func NewConnectivityError(backend string, err error) *Error {
	return &Error{Kind: KindConnectivity, Backend: backend, Err: err, Policy: isPolicyMessage(err)}
}

// IsConnectivity reports whether err means the store could not be reached.
// Context deadlines count: a query that outlives its stage timeout is
// reported the same way as an unreachable host.
func IsConnectivity(err error) bool {
	var storeErr *Error
	if errors.As(err, &storeErr) && storeErr.Kind == KindConnectivity {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsPolicyBlocked reports whether the store refused the connection by policy.
func IsPolicyBlocked(err error) bool {
	var storeErr *Error
	return errors.As(err, &storeErr) && storeErr.Policy
}

var connectivityMarkers = []string{
	"connection refused",
	"no such host",
	"connection reset",
	"i/o timeout",
	"broken pipe",
	"network is unreachable",
	"failed to connect",
	"unable to open tcp connection",
	"login failed",
	"password authentication failed",
	"no pg_hba.conf entry",
	"tls handshake",
	"unexpected eof",
}

var policyMarkers = []string{
	"network policy",
	"not allowed to access",
	"is not allowed to connect",
	"no pg_hba.conf entry",
	"client ip",
}

// ClassifyError maps a raw driver error to *Error. Driver-specific adapters
// check their own error codes first and fall back to this for the text and
// net.Error cases every driver shares.
func ClassifyError(backend string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewConnectivityError(backend, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewConnectivityError(backend, err)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range connectivityMarkers {
		if strings.Contains(msg, marker) {
			return NewConnectivityError(backend, err)
		}
	}
	if isPolicyMessage(err) {
		return NewConnectivityError(backend, err)
	}
	return NewSQLError(backend, err)
}

func isPolicyMessage(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range policyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ErrStoreFileMissing is wrapped by connectivity errors for embedded stores
// whose database file does not exist yet.
var ErrStoreFileMissing = errors.New("local database file not found")

// CheckLocalFile fails with a connectivity error when an embedded store's
// file is absent. Opening it would silently create an empty database.
func CheckLocalFile(backend, path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewConnectivityError(backend, fmt.Errorf("%w: %s (run bootstrap first)", ErrStoreFileMissing, path))
		}
		return NewConnectivityError(backend, err)
	}
	return nil
}
