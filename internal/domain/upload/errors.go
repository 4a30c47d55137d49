package upload

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownRole     = errors.New("unknown upload role")
	ErrUnknownCategory = errors.New("unknown file category")
	ErrInvalidFilename = errors.New("invalid file name")
	ErrNotMultipart    = errors.New("request is not multipart/form-data")
	ErrClientGone      = errors.New("client disconnected during upload")
	ErrUploadNotFound  = errors.New("upload not found")
)

// ValidationError is a client-caused rejection of one field (HTTP 400).
type ValidationError struct {
	Field  string
	Role   Role
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// StorageIOError is a server-side failure while persisting or reading bytes
// (HTTP 500). Offset is the number of bytes handled before the failure, -1 if unknown.
type StorageIOError struct {
	Op       string
	Role     Role
	Filename string
	Offset   int64
	Err      error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("storage %s %s (role=%s offset=%d): %v", e.Op, e.Filename, e.Role, e.Offset, e.Err)
}

func (e *StorageIOError) Unwrap() error { return e.Err }
