// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/antgroup/lineage/internal/cluster"
	"github.com/antgroup/lineage/internal/pattern"
	"github.com/antgroup/lineage/internal/repo"
)

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) apply(w http.ResponseWriter, op cluster.Op, payload any) {
	cmd, err := cluster.NewCommand(op, payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result, err := s.node.Apply(cmd, applyTimeout)
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, result)
}

// createProjectRequest is create_project's request body (spec.md §6).
type createProjectRequest struct {
	Name        string `json:"name"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
}

// listProjects is the administrative read endpoint SPEC_FULL.md §12
// adds: spec.md's core never names an enumeration operation, but a
// deployment needs somewhere to discover what exists.
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.hub.Catalog().ListProjects(r.Context())
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, projects)
}

func (s *Server) listRepositories(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]
	repositories, err := s.hub.Catalog().ListRepositories(r.Context(), project)
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, repositories)
}

// getCommit is the administrative counterpart to getFile: the commit
// metadata (author, summary, detail) at one revision, rather than a
// file's content.
func (s *Server) getCommit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	project, repository := vars["project"], vars["repo"]
	revision, err := strconv.ParseInt(vars["revision"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid revision: "+err.Error())
		return
	}
	entries, err := s.hub.History(r.Context(), project, repository, revision, revision, pattern.MatchAll(), 1)
	if err != nil {
		renderError(w, err)
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "revision not found")
		return
	}
	writeJSON(w, entries[0])
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.apply(w, cluster.OpCreateProject, cluster.CreateProjectPayload{
		Name: req.Name, AuthorName: req.AuthorName, AuthorEmail: req.AuthorEmail,
	})
}

func (s *Server) removeProject(w http.ResponseWriter, r *http.Request) {
	s.apply(w, cluster.OpRemoveProject, cluster.ProjectNamePayload{Name: mux.Vars(r)["project"]})
}

func (s *Server) purgeProject(w http.ResponseWriter, r *http.Request) {
	s.apply(w, cluster.OpPurgeProject, cluster.ProjectNamePayload{Name: mux.Vars(r)["project"]})
}

func (s *Server) unremoveProject(w http.ResponseWriter, r *http.Request) {
	s.apply(w, cluster.OpUnremoveProject, cluster.ProjectNamePayload{Name: mux.Vars(r)["project"]})
}

// createRepositoryRequest is create_repository's request body.
type createRepositoryRequest struct {
	Name        string `json:"name"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
}

func (s *Server) createRepository(w http.ResponseWriter, r *http.Request) {
	var req createRepositoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.apply(w, cluster.OpCreateRepository, cluster.CreateRepositoryPayload{
		Project: mux.Vars(r)["project"], Name: req.Name,
		AuthorName: req.AuthorName, AuthorEmail: req.AuthorEmail,
	})
}

func (s *Server) removeRepository(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.apply(w, cluster.OpRemoveRepository, cluster.RepositoryNamePayload{Project: vars["project"], Name: vars["repo"]})
}

func (s *Server) purgeRepository(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.apply(w, cluster.OpPurgeRepository, cluster.RepositoryNamePayload{Project: vars["project"], Name: vars["repo"]})
}

func (s *Server) unremoveRepository(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.apply(w, cluster.OpUnremoveRepository, cluster.RepositoryNamePayload{Project: vars["project"], Name: vars["repo"]})
}

// pushRequest is normalizing_push's and push_as_is's shared request
// body (spec.md §6): base revision, author/committer, summary/detail/
// markup, and the change list.
type pushRequest struct {
	BaseRevision int64                   `json:"base_revision"`
	Author       cluster.Signature       `json:"author"`
	Committer    cluster.Signature       `json:"committer"`
	Summary      string                  `json:"summary"`
	Detail       string                  `json:"detail"`
	Markup       string                  `json:"markup"`
	Changes      []cluster.ChangePayload `json:"changes"`
	AllowEmpty   bool                    `json:"allow_empty"`
}

func (s *Server) push(w http.ResponseWriter, r *http.Request, op cluster.Op) {
	vars := mux.Vars(r)
	var req pushRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.apply(w, op, cluster.PushPayload{
		Project: vars["project"], Repository: vars["repo"], BaseRevision: req.BaseRevision,
		Author: req.Author, Committer: req.Committer,
		Summary: req.Summary, Detail: req.Detail, Markup: req.Markup,
		Changes: req.Changes, AllowEmpty: req.AllowEmpty,
	})
}

func (s *Server) pushAsIs(w http.ResponseWriter, r *http.Request) {
	s.push(w, r, cluster.OpPushAsIs)
}

func (s *Server) normalizingPush(w http.ResponseWriter, r *http.Request) {
	s.push(w, r, cluster.OpNormalizingPush)
}

// getFile implements get_file(repo, revision, query, view_raw, ...):
// spec.md §6 names render_template/variable_file alongside it, but
// templating a config file against external variables is a feature
// this shim has no concrete target for (it is not named as a core
// module anywhere else in spec.md), so only the revision/query/
// view_raw parameters are honored here.
func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	project, repository := vars["project"], vars["repo"]
	q := r.URL.Query()

	revision, err := parseRevision(q.Get("revision"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path := q.Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	var query repo.Query
	if exprs := q["expr"]; len(exprs) > 0 {
		jq, err := repo.NewJSONPathQuery(path, exprs)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		query = jq
	} else {
		query = repo.Identity(path)
	}

	entry, err := s.hub.Get(r.Context(), project, repository, revision, query)
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, entry)
}

// watch implements watch(repo, last_known, path_pattern, timeout_ms).
func (s *Server) watch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	project, repository := vars["project"], vars["repo"]
	q := r.URL.Query()

	lastKnown, err := parseRevision(q.Get("last_known"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pat := pattern.MatchAll()
	if raw := q.Get("path_pattern"); raw != "" {
		pat = pattern.Compile(raw)
	}
	timeout := 10 * time.Second
	if raw := q.Get("timeout_ms"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timeout_ms: "+err.Error())
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	result, err := s.hub.Watch(r.Context(), project, repository, lastKnown, pat, timeout)
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, result)
}

func parseRevision(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
