// Package errno defines the error codes exchanged between tasks.
//
// Errors never cross a task boundary as Go values. A callee reports them as
// negative results on an Acknowledge and the caller turns the result back
// into an Errno.
package errno

import "fmt"

// Errno is a positive error number.
type Errno int

// Error codes.
const (
	ENOENT       Errno = 2
	EIO          Errno = 5
	ENOMEM       Errno = 12
	ENODEV       Errno = 19
	EINVAL       Errno = 22
	ENOMSG       Errno = 42
	EOVERFLOW    Errno = 75
	EMSGSIZE     Errno = 90
	ENOTSUP      Errno = 95
	EAFNOSUPPORT Errno = 97
	ENOBUFS      Errno = 105
	ECANCELED    Errno = 125
)

var names = map[Errno]string{
	ENOENT:       "no such entry",
	EIO:          "i/o error",
	ENOMEM:       "out of memory",
	ENODEV:       "no such device",
	EINVAL:       "invalid argument",
	ENOMSG:       "unexpected reply",
	EOVERFLOW:    "value too large for buffer",
	EMSGSIZE:     "message too large",
	ENOTSUP:      "not supported",
	EAFNOSUPPORT: "address family not supported",
	ENOBUFS:      "no buffer space available",
	ECANCELED:    "canceled",
}

// Error implements error.
func (e Errno) Error() string {
	if s, ok := names[e]; ok {
		return s
	}
	return fmt.Sprintf("errno %d", int(e))
}

// Result converts err into a result code: 0 for nil, the negated number for
// an Errno and -EIO for anything else.
func Result(err error) int {
	if err == nil {
		return 0
	}
	if e, ok := err.(Errno); ok {
		return -int(e)
	}
	return -int(EIO)
}

// FromResult converts a result code back into an error. Non-negative
// results are successes.
func FromResult(n int) error {
	if n >= 0 {
		return nil
	}
	return Errno(-n)
}
