// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/antgroup/lineage/internal/catalog"
	"github.com/antgroup/lineage/internal/cluster"
)

// executeCatalog dispatches the eight project/repository lifecycle
// commands straight to internal/catalog; none of them touch a
// repo.Engine, so there is no per-repository handle to open here.
func (h *Hub) executeCatalog(ctx context.Context, cmd cluster.Command) (any, error) {
	switch cmd.Op {
	case cluster.OpCreateProject:
		var p cluster.CreateProjectPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return nil, fmt.Errorf("hub: decode create_project: %w", err)
		}
		return h.catalog.CreateProject(ctx, &catalog.Project{
			Name: p.Name, AuthorName: p.AuthorName, AuthorEmail: p.AuthorEmail,
		})

	case cluster.OpRemoveProject:
		name, err := projectName(cmd.Data)
		if err != nil {
			return nil, err
		}
		return nil, h.catalog.RemoveProject(ctx, name)

	case cluster.OpPurgeProject:
		name, err := projectName(cmd.Data)
		if err != nil {
			return nil, err
		}
		if err := h.catalog.PurgeProject(ctx, name); err != nil {
			return nil, err
		}
		h.purgeProjectRepositories(name)
		return nil, nil

	case cluster.OpUnremoveProject:
		name, err := projectName(cmd.Data)
		if err != nil {
			return nil, err
		}
		return nil, h.catalog.UnremoveProject(ctx, name)

	case cluster.OpCreateRepository:
		var p cluster.CreateRepositoryPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return nil, fmt.Errorf("hub: decode create_repository: %w", err)
		}
		if reservedRepositories[repoKey(p.Project, p.Name)] {
			return nil, fmt.Errorf("hub: %s/%s is a reserved repository name", p.Project, p.Name)
		}
		rec, err := h.catalog.FindProject(ctx, p.Project)
		if err != nil {
			return nil, err
		}
		created, err := h.catalog.CreateRepository(ctx, &catalog.Repository{
			ProjectID: rec.ID, Name: p.Name, AuthorName: p.AuthorName, AuthorEmail: p.AuthorEmail,
		})
		if err != nil {
			return nil, err
		}
		if h.crypto != nil {
			if err := h.crypto.StoreWDEK(ctx, p.Project, p.Name, 1); err != nil {
				return nil, fmt.Errorf("hub: provision dek for %s/%s: %w", p.Project, p.Name, err)
			}
		}
		rh, err := h.open(ctx, p.Project, p.Name)
		if err != nil {
			return nil, err
		}
		if _, err := rh.engine.Bootstrap(ctx, objectSignature(cluster.Signature{Name: p.AuthorName, Email: p.AuthorEmail}), "initial commit"); err != nil {
			return nil, fmt.Errorf("hub: bootstrap %s/%s: %w", p.Project, p.Name, err)
		}
		return created, nil

	case cluster.OpRemoveRepository:
		project, name, err := repositoryName(cmd.Data)
		if err != nil {
			return nil, err
		}
		return nil, h.catalog.RemoveRepository(ctx, project, name)

	case cluster.OpPurgeRepository:
		project, name, err := repositoryName(cmd.Data)
		if err != nil {
			return nil, err
		}
		if err := h.catalog.PurgeRepository(ctx, project, name); err != nil {
			return nil, err
		}
		h.forget(project, name)
		if h.cache != nil {
			h.cache.InvalidateRepository(repoKey(project, name))
		}
		if h.crypto != nil {
			if err := h.crypto.DeleteRepositoryData(project, name); err != nil {
				return nil, fmt.Errorf("hub: purge encrypted data for %s/%s: %w", project, name, err)
			}
		}
		return nil, nil

	case cluster.OpUnremoveRepository:
		project, name, err := repositoryName(cmd.Data)
		if err != nil {
			return nil, err
		}
		return nil, h.catalog.UnremoveRepository(ctx, project, name)

	default:
		return nil, fmt.Errorf("hub: unrecognized catalog command %q", cmd.Op)
	}
}

func projectName(data json.RawMessage) (string, error) {
	var p cluster.ProjectNamePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("hub: decode project name payload: %w", err)
	}
	return p.Name, nil
}

func repositoryName(data json.RawMessage) (project, name string, err error) {
	var p cluster.RepositoryNamePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", "", fmt.Errorf("hub: decode repository name payload: %w", err)
	}
	return p.Project, p.Name, nil
}

// purgeProjectRepositories forgets every open in-memory handle under
// project, mirroring what purging a single repository does; the
// catalog rows for those repositories are the caller's responsibility
// (a purge_project command only transitions the project row itself,
// spec.md §3 leaving per-repository purge as a separate operation the
// caller issues first).
func (h *Hub) purgeProjectRepositories(project string) {
	h.mu.Lock()
	var names []string
	prefix := project + "/"
	for key := range h.repos {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			names = append(names, key)
		}
	}
	h.mu.Unlock()
	for _, key := range names {
		name := key[len(prefix):]
		h.forget(project, name)
	}
}
