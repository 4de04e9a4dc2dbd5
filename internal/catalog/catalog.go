// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package catalog is the MySQL-backed project/repository metadata
// store: the directory of which projects and repositories exist, their
// lifecycle status, and their creation provenance. The versioned
// content of a repository lives entirely in internal/objstore and
// internal/commitindex; this package never touches it.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DB is the catalog's query surface.
type DB interface {
	Database() *sql.DB

	CreateProject(ctx context.Context, p *Project) (*Project, error)
	FindProject(ctx context.Context, name string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	RemoveProject(ctx context.Context, name string) error
	PurgeProject(ctx context.Context, name string) error
	UnremoveProject(ctx context.Context, name string) error

	CreateRepository(ctx context.Context, r *Repository) (*Repository, error)
	FindRepository(ctx context.Context, project, name string) (*Repository, error)
	ListRepositories(ctx context.Context, project string) ([]*Repository, error)
	RemoveRepository(ctx context.Context, project, name string) error
	PurgeRepository(ctx context.Context, project, name string) error
	UnremoveRepository(ctx context.Context, project, name string) error

	Close() error
}

type database struct {
	*sql.DB
}

func (d *database) Database() *sql.DB { return d.DB }

func (d *database) Close() error { return d.DB.Close() }

var _ DB = (*database)(nil)

// NewDB opens a connection pool against cfg, following the teacher's
// own connector sizing (bounded idle/open connections, a connection
// lifetime short enough to ride out a MySQL-side failover).
func NewDB(cfg *mysql.Config) (DB, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("catalog: new connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &database{DB: db}, nil
}
