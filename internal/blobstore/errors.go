package blobstore

import (
	"errors"
	"fmt"
	"strings"

	"gocloud.dev/gcerrors"
)

const (
	CodeEndpointUnreachable = "E_ENDPOINT_UNREACHABLE"
	CodeAuthInvalid         = "E_AUTH_INVALID"
	CodeBucketNotFound      = "E_BUCKET_NOT_FOUND"
	CodeObjectNotFound      = "E_OBJECT_NOT_FOUND"
	CodePermissionDenied    = "E_PERMISSION_DENIED"
	CodeTimeout             = "E_TIMEOUT"
	CodeReadFailed          = "E_READ_FAILED"
	CodeWriteFailed         = "E_WRITE_FAILED"
	CodeInvalidConfig       = "E_INVALID_CONFIG"
)

// Error wraps storage failures with a stable code and a retryability hint.
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error         { return e.Err }
func (e *Error) CodeValue() string     { return e.Code }
func (e *Error) RetryableStatus() bool { return e.Retryable }

func wrapError(code string, retryable bool, err error) *Error {
	if err == nil {
		return &Error{Code: code, Retryable: retryable}
	}
	return &Error{Code: code, Retryable: retryable, Err: err}
}

// CodeOf returns the storage code carried by err, or "" if none.
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// IsNotFound reports whether err means a missing object or bucket.
func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == CodeObjectNotFound || code == CodeBucketNotFound
}

// classify converts gocloud and transport errors into an *Error. The fallback
// code is used when nothing more specific can be inferred.
func classify(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		return err
	}

	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return wrapError(CodeObjectNotFound, false, err)
	case gcerrors.PermissionDenied:
		return wrapError(CodePermissionDenied, false, err)
	case gcerrors.DeadlineExceeded:
		return wrapError(CodeTimeout, true, err)
	case gcerrors.InvalidArgument:
		return wrapError(CodeInvalidConfig, false, err)
	}

	lowered := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowered, "containernotfound"), strings.Contains(lowered, "no such bucket"):
		return wrapError(CodeBucketNotFound, false, err)
	case strings.Contains(lowered, "authenticationfailed"), strings.Contains(lowered, "invalid access key"), strings.Contains(lowered, "signature"):
		return wrapError(CodeAuthInvalid, false, err)
	case strings.Contains(lowered, "timeout"), strings.Contains(lowered, "deadline"):
		return wrapError(CodeTimeout, true, err)
	case strings.Contains(lowered, "connection refused"), strings.Contains(lowered, "no such host"):
		return wrapError(CodeEndpointUnreachable, true, err)
	}
	return wrapError(fallback, true, err)
}
