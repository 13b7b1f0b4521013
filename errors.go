package bkv

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConflict is returned by Commit when another transaction committed a
	// conflicting write after this transaction's snapshot was taken. None of
	// the staged operations take effect; retrying is up to the caller.
	ErrConflict = errors.New("bkv: conflicting concurrent commit")

	// ErrTxnClosed is returned by any operation on a committed or aborted
	// transaction.
	ErrTxnClosed = errors.New("bkv: transaction is closed")

	// ErrTxnReadOnly is returned by Set and Delete on a read-only transaction.
	ErrTxnReadOnly = errors.New("bkv: transaction is read-only")

	// ErrReadOnly is returned by WriteTxn on a store opened read-only.
	ErrReadOnly = errors.New("bkv: store is read-only")

	// ErrStoreClosed is returned when the store has been closed.
	ErrStoreClosed = errors.New("bkv: store is closed")
)

// OpenError reports a failure to acquire the store at the given path, most
// commonly because another process holds it in an incompatible mode.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("bkv: cannot open store at %s: %v", e.Path, e.Err)
}

// EncodingError reports bytes that failed to encode or decode as the expected
// type. It carries the offending data, hex-dumped with long payloads elided.
type EncodingError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func encErrf(data []byte, off int, err error, format string, args ...any) error {
	return &EncodingError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

func (e *EncodingError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// BucketError reports a problem with a bucket declaration or lookup, such as
// reopening a name under incompatible key/value types.
type BucketError struct {
	Bucket string
	Msg    string
	Err    error
}

func bucketErrf(bucket string, err error, format string, args ...any) error {
	return &BucketError{bucket, fmt.Sprintf(format, args...), err}
}

func (e *BucketError) Unwrap() error {
	return e.Err
}

func (e *BucketError) Error() string {
	var buf strings.Builder
	buf.WriteString("bkv: bucket ")
	buf.WriteString(e.Bucket)
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
