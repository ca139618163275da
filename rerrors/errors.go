// Package rerrors implements an error type that carries a small,
// interpretable set of error codes for the encrypted filesystem engine.
// Errors can be chained: one error attributes its cause to another. It is
// modeled on grailbio-base's errors package, trimmed to the kinds the
// engine actually reports.
package rerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can react to it without string
// matching on the message.
type Kind int

const (
	// Other indicates an unclassified error.
	Other Kind = iota
	// Io indicates a failure performing I/O against the data directory.
	Io
	// Serialize indicates a failure encoding or decoding a stored record.
	Serialize
	// NotFound indicates a missing directory entry.
	NotFound
	// InodeNotFound indicates a missing inode record.
	InodeNotFound
	// InvalidInput indicates a caller supplied a malformed argument.
	InvalidInput
	// InvalidInodeType indicates an operation was attempted against the
	// wrong kind of inode (e.g. read on a directory).
	InvalidInodeType
	// InvalidFileHandle indicates an unknown or stale file handle.
	InvalidFileHandle
	// AlreadyExists indicates a name collision in a directory.
	AlreadyExists
	// AlreadyOpenForWrite indicates a second writer was attempted on an
	// inode that already has one open.
	AlreadyOpenForWrite
	// NotEmpty indicates a directory delete or overwrite was attempted
	// against a non-empty directory.
	NotEmpty
	// InvalidPassword indicates the supplied passphrase did not decrypt
	// the master key.
	InvalidPassword
	// InvalidDataDirStructure indicates the data directory does not have
	// the expected on-disk layout.
	InvalidDataDirStructure
	// Crypto indicates a failure in the Cipher capability.
	Crypto
	// Keyring indicates a failure obtaining a passphrase.
	Keyring
	// MaxFilesizeExceeded indicates a write or seek went past the
	// cipher's maximum plaintext length. Limit() returns the bound.
	MaxFilesizeExceeded
)

var names = map[Kind]string{
	Other:                    "error",
	Io:                       "I/O error",
	Serialize:                "serialization error",
	NotFound:                 "not found",
	InodeNotFound:            "inode not found",
	InvalidInput:             "invalid input",
	InvalidInodeType:         "invalid inode type",
	InvalidFileHandle:        "invalid file handle",
	AlreadyExists:            "already exists",
	AlreadyOpenForWrite:      "already open for write",
	NotEmpty:                 "not empty",
	InvalidPassword:          "invalid password",
	InvalidDataDirStructure:  "invalid data directory structure",
	Crypto:                   "crypto error",
	Keyring:                  "keyring error",
	MaxFilesizeExceeded:      "max filesize exceeded",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown error"
}

// Error is the engine's error type. It always carries a Kind and may chain
// an underlying cause, and may carry a MaxFilesizeExceeded limit.
type Error struct {
	kind  Kind
	msg   string
	cause error
	limit uint64 // only meaningful when kind == MaxFilesizeExceeded
}

func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	case e.msg != "":
		return fmt.Sprintf("%s: %s", e.kind, e.msg)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.kind, e.cause)
	default:
		return e.kind.String()
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the classification of err, or Other if err is not (or does
// not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return Other
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}

// Limit returns the filesize bound carried by a MaxFilesizeExceeded error,
// and whether err was one.
func Limit(err error) (uint64, bool) {
	var e *Error
	if errors.As(err, &e) && e.kind == MaxFilesizeExceeded {
		return e.limit, true
	}
	return 0, false
}

// E builds a new *Error of the given kind with an optional message and an
// optional wrapped cause.
func E(k Kind, msg string, cause error) *Error {
	return &Error{kind: k, msg: msg, cause: cause}
}

// MaxFilesize builds a MaxFilesizeExceeded error carrying limit.
func MaxFilesize(limit uint64) *Error {
	return &Error{kind: MaxFilesizeExceeded, msg: fmt.Sprintf("limit %d", limit), limit: limit}
}
