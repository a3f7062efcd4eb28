package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotAuthenticated indicates the operation requires a signed-in identity.
	ErrNotAuthenticated = errors.New("user not authenticated")
	// ErrNotFound indicates the referenced conversation, message, trip or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyMember indicates a join attempted by an existing member.
	ErrAlreadyMember = errors.New("you are already a member of this group")
	// ErrNotMember indicates the caller does not belong to the conversation.
	ErrNotMember = errors.New("you are not a member of this conversation")
	// ErrPollClosed indicates a vote on an inactive poll.
	ErrPollClosed = errors.New("poll is no longer active")
	// ErrInvalidInput indicates a malformed request, such as an out-of-range index.
	ErrInvalidInput = errors.New("invalid input")
	// ErrValidationFailed is matched by every ValidationError.
	ErrValidationFailed = errors.New("validation failed")
	// ErrRemoteOperationFailed is matched by every RemoteError.
	ErrRemoteOperationFailed = errors.New("remote operation failed")
)

// ValidationError carries every violated rule of a save-time structural check.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return ErrValidationFailed.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(e.Violations, "; "))
}

// Is lets errors.Is match ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// RemoteError wraps a failure reported by the document store or the object store.
type RemoteError struct {
	Op  string
	Err error
}

// Remote wraps err as a RemoteError unless it already belongs to the taxonomy.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrRemoteOperationFailed.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteOperationFailed
}

// IsDomainError reports whether err is already part of the error taxonomy.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrNotAuthenticated,
		ErrNotFound,
		ErrAlreadyMember,
		ErrNotMember,
		ErrPollClosed,
		ErrInvalidInput,
		ErrValidationFailed,
		ErrRemoteOperationFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
