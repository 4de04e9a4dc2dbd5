// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const sqlFindProject = `select
  id, name, author_name, author_email, status, created_at, updated_at
from projects
where name = ?`

func (d *database) FindProject(ctx context.Context, name string) (*Project, error) {
	var p Project
	err := d.QueryRowContext(ctx, sqlFindProject, name).Scan(
		&p.ID, &p.Name, &p.AuthorName, &p.AuthorEmail, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Kind: "project", Name: name}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const sqlListProjects = `select
  id, name, author_name, author_email, status, created_at, updated_at
from projects
where status != ?
order by name`

// ListProjects returns every project not yet purged, active and
// removed alike — a removed project is still nameable (unremove,
// purge) until it is purged, matching §3's soft-delete lifecycle.
func (d *database) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := d.QueryContext(ctx, sqlListProjects, StatusPurged)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var projects []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.AuthorName, &p.AuthorEmail, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

const sqlInsertProject = `insert into projects (
  name, author_name, author_email, status, created_at, updated_at
) values (?, ?, ?, ?, ?, ?)`

func (d *database) CreateProject(ctx context.Context, p *Project) (*Project, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	result, err := d.ExecContext(ctx, sqlInsertProject, p.Name, p.AuthorName, p.AuthorEmail, StatusActive, now, now)
	if err != nil {
		if isDupEntry(err) {
			return nil, &ErrExist{Kind: "project", Name: p.Name}
		}
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Project{
		ID: id, Name: p.Name, AuthorName: p.AuthorName, AuthorEmail: p.AuthorEmail,
		Status: StatusActive, CreatedAt: now, UpdatedAt: now,
	}, nil
}

const sqlSetProjectStatus = `update projects set status = ?, updated_at = ? where name = ? and status = ?`

// transitionProject moves name from "from" to "to", failing not-found
// if no row matched (either the project doesn't exist or it isn't
// currently in the expected state, mirroring the engine's own
// base-revision check: a stale caller's command is rejected rather
// than silently re-applied).
func (d *database) transitionProject(ctx context.Context, name string, from, to Status) error {
	now := time.Now()
	result, err := d.ExecContext(ctx, sqlSetProjectStatus, to, now, name, from)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ErrNotFound{Kind: "project", Name: name}
	}
	return nil
}

func (d *database) RemoveProject(ctx context.Context, name string) error {
	return d.transitionProject(ctx, name, StatusActive, StatusRemoved)
}

func (d *database) PurgeProject(ctx context.Context, name string) error {
	return d.transitionProject(ctx, name, StatusRemoved, StatusPurged)
}

func (d *database) UnremoveProject(ctx context.Context, name string) error {
	return d.transitionProject(ctx, name, StatusRemoved, StatusActive)
}
