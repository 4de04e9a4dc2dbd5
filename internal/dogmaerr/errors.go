// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package dogmaerr declares the error kinds shared across the storage and
// mutation engine, following the sentinel/typed split used throughout
// modules/plumbing and modules/zeta in the teacher tree.
package dogmaerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra data.
var (
	ErrRedundantChange = errors.New("redundant change")
	ErrReadOnly        = errors.New("server is in read-only mode")
	ErrCancelled       = errors.New("watch cancelled")
	ErrTimedOut        = errors.New("watch timed out")
	ErrCorrupt         = errors.New("storage: corrupt record")
	ErrEntryExists     = errors.New("encryption: wdek entry already exists")
	ErrEntryAbsent     = errors.New("encryption: wdek entry absent")
)

// ErrRevisionNotFound reports a revision outside [1, head].
type ErrRevisionNotFound struct {
	Revision int64
	Head     int64
}

func (e *ErrRevisionNotFound) Error() string {
	return fmt.Sprintf("revision %d not found (head is %d)", e.Revision, e.Head)
}

func NewErrRevisionNotFound(revision, head int64) error {
	return &ErrRevisionNotFound{Revision: revision, Head: head}
}

func IsErrRevisionNotFound(err error) bool {
	var e *ErrRevisionNotFound
	return errors.As(err, &e)
}

// ErrEntryNotFound reports that a path or pattern matched nothing.
type ErrEntryNotFound struct {
	Path string
}

func (e *ErrEntryNotFound) Error() string {
	return fmt.Sprintf("entry not found: %s", e.Path)
}

func NewErrEntryNotFound(path string) error {
	return &ErrEntryNotFound{Path: path}
}

func IsErrEntryNotFound(err error) bool {
	var e *ErrEntryNotFound
	return errors.As(err, &e)
}

// ErrChangeConflict reports that a change could not be applied against
// the base tree: a patch failed, a rename target already existed, or a
// remove/rename target was missing.
type ErrChangeConflict struct {
	Path   string
	Reason string
}

func (e *ErrChangeConflict) Error() string {
	return fmt.Sprintf("change conflict at %s: %s", e.Path, e.Reason)
}

func NewErrChangeConflict(path, reason string) error {
	return &ErrChangeConflict{Path: path, Reason: reason}
}

func IsErrChangeConflict(err error) bool {
	var e *ErrChangeConflict
	return errors.As(err, &e)
}

// ErrTooLargeRequest reports that a commit payload exceeded the
// configured size cap.
type ErrTooLargeRequest struct {
	Size, Limit int64
}

func (e *ErrTooLargeRequest) Error() string {
	return fmt.Sprintf("request of %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

func NewErrTooLargeRequest(size, limit int64) error {
	return &ErrTooLargeRequest{Size: size, Limit: limit}
}

func IsErrTooLargeRequest(err error) bool {
	var e *ErrTooLargeRequest
	return errors.As(err, &e)
}

// ErrInvalidPush reports a push targeting a reserved repository with
// disallowed content.
type ErrInvalidPush struct {
	Reason string
}

func (e *ErrInvalidPush) Error() string {
	return "invalid push: " + e.Reason
}

func NewErrInvalidPush(reason string) error {
	return &ErrInvalidPush{Reason: reason}
}

func IsErrInvalidPush(err error) bool {
	var e *ErrInvalidPush
	return errors.As(err, &e)
}

// ErrStorage wraps an unrecoverable I/O or format-corruption fault.
// Storage faults are fatal to the affected repository but not to the
// process (see spec.md §7).
type ErrStorage struct {
	Repository string
	Err        error
}

func (e *ErrStorage) Error() string {
	return fmt.Sprintf("storage fault in repository %s: %v", e.Repository, e.Err)
}

func (e *ErrStorage) Unwrap() error { return e.Err }

func NewErrStorage(repository string, err error) error {
	return &ErrStorage{Repository: repository, Err: err}
}

func IsErrStorage(err error) bool {
	var e *ErrStorage
	return errors.As(err, &e)
}
