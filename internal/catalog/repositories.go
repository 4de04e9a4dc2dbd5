// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const sqlFindRepository = `select
  r.id, r.project_id, r.name, r.author_name, r.author_email, r.status, r.created_at, r.updated_at
from repositories as r inner join projects as p on r.project_id = p.id
where p.name = ? and r.name = ?`

func (d *database) FindRepository(ctx context.Context, project, name string) (*Repository, error) {
	var r Repository
	err := d.QueryRowContext(ctx, sqlFindRepository, project, name).Scan(
		&r.ID, &r.ProjectID, &r.Name, &r.AuthorName, &r.AuthorEmail, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Kind: "repository", Name: project + "/" + name}
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const sqlListRepositories = `select
  r.id, r.project_id, r.name, r.author_name, r.author_email, r.status, r.created_at, r.updated_at
from repositories as r inner join projects as p on r.project_id = p.id
where p.name = ? and r.status != ?
order by r.name`

// ListRepositories returns every non-purged repository under project.
func (d *database) ListRepositories(ctx context.Context, project string) ([]*Repository, error) {
	rows, err := d.QueryContext(ctx, sqlListRepositories, project, StatusPurged)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var repositories []*Repository
	for rows.Next() {
		var r Repository
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Name, &r.AuthorName, &r.AuthorEmail, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		repositories = append(repositories, &r)
	}
	return repositories, rows.Err()
}

const sqlInsertRepository = `insert into repositories (
  project_id, name, author_name, author_email, status, created_at, updated_at
) values (?, ?, ?, ?, ?, ?, ?)`

func (d *database) CreateRepository(ctx context.Context, r *Repository) (*Repository, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	result, err := d.ExecContext(ctx, sqlInsertRepository, r.ProjectID, r.Name, r.AuthorName, r.AuthorEmail, StatusActive, now, now)
	if err != nil {
		if isDupEntry(err) {
			return nil, &ErrExist{Kind: "repository", Name: r.Name}
		}
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Repository{
		ID: id, ProjectID: r.ProjectID, Name: r.Name, AuthorName: r.AuthorName, AuthorEmail: r.AuthorEmail,
		Status: StatusActive, CreatedAt: now, UpdatedAt: now,
	}, nil
}

const sqlSetRepositoryStatus = `update repositories as r
inner join projects as p on r.project_id = p.id
set r.status = ?, r.updated_at = ?
where p.name = ? and r.name = ? and r.status = ?`

func (d *database) transitionRepository(ctx context.Context, project, name string, from, to Status) error {
	now := time.Now()
	result, err := d.ExecContext(ctx, sqlSetRepositoryStatus, to, now, project, name, from)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ErrNotFound{Kind: "repository", Name: project + "/" + name}
	}
	return nil
}

func (d *database) RemoveRepository(ctx context.Context, project, name string) error {
	return d.transitionRepository(ctx, project, name, StatusActive, StatusRemoved)
}

func (d *database) PurgeRepository(ctx context.Context, project, name string) error {
	return d.transitionRepository(ctx, project, name, StatusRemoved, StatusPurged)
}

func (d *database) UnremoveRepository(ctx context.Context, project, name string) error {
	return d.transitionRepository(ctx, project, name, StatusRemoved, StatusActive)
}
