// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

const erDupEntry = 1062

var (
	ErrReadOnly = errors.New("catalog is in read-only mode")
)

type ErrNamingRule struct {
	Name string
}

func (e *ErrNamingRule) Error() string {
	return fmt.Sprintf("%q does not comply with the naming rules", e.Name)
}

func IsErrNamingRule(err error) bool {
	var e *ErrNamingRule
	return errors.As(err, &e)
}

type ErrExist struct {
	Kind string
	Name string
}

func (e *ErrExist) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

func IsErrExist(err error) bool {
	var e *ErrExist
	return errors.As(err, &e)
}

type ErrNotFound struct {
	Kind string
	Name string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func IsErrNotFound(err error) bool {
	var e *ErrNotFound
	if errors.As(err, &e) {
		return true
	}
	return errors.Is(err, sql.ErrNoRows)
}

func isErrorCode(err error, code uint16) bool {
	var merr *mysql.MySQLError
	if errors.As(err, &merr) {
		return merr.Number == code
	}
	return false
}

func isDupEntry(err error) bool {
	return isErrorCode(err, erDupEntry)
}
