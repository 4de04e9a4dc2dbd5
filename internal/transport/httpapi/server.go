// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package httpapi is the thin external-facing HTTP shim over the
// command executor (spec.md §6's "Command API surface"). It is
// deliberately minimal: request authentication, the admin UI, and the
// richer data-plane protocol the enclosing service speaks to clients
// are explicitly out of spec.md's scope (spec.md §1), so this package
// only maps spec.md §6's named operations onto gorilla/mux routes,
// following pkg/serve/httpserver/server.go's Server{*ServerConfig,
// *http.Server, *mux.Router} shape.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/antgroup/lineage/internal/cluster"
	"github.com/antgroup/lineage/internal/config"
	"github.com/antgroup/lineage/internal/hub"
)

// applyTimeout bounds how long a mutating request waits for its
// command to replicate, matching internal/hub.transformApplyTimeout's
// budget for the same concern.
const applyTimeout = 10 * time.Second

type Server struct {
	hub  *hub.Hub
	node *cluster.Node
	log  *logrus.Entry

	srv *http.Server
	r   *mux.Router
}

// NewServer builds the router and binds it to cfg.Listen, but does
// not start serving — call ListenAndServe.
func NewServer(cfg config.HTTP, h *hub.Hub, node *cluster.Node, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{hub: h, node: node, log: log}
	s.r = mux.NewRouter().UseEncodedPath()
	s.routes()
	readTimeout := cfg.ReadTimeout.Duration
	if readTimeout == 0 {
		readTimeout = config.DefaultReadTimeout
	}
	writeTimeout := cfg.WriteTimeout.Duration
	if writeTimeout == 0 {
		writeTimeout = config.DefaultWriteTimeout
	}
	idleTimeout := cfg.IdleTimeout.Duration
	if idleTimeout == 0 {
		idleTimeout = config.DefaultIdleTimeout
	}
	s.srv = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.r,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.r.HandleFunc("/projects", s.listProjects).Methods(http.MethodGet)
	s.r.HandleFunc("/projects", s.createProject).Methods(http.MethodPost)
	s.r.HandleFunc("/projects/{project}/repos", s.listRepositories).Methods(http.MethodGet)
	s.r.HandleFunc("/projects/{project}/repos/{repo}/commits/{revision}", s.getCommit).Methods(http.MethodGet)
	s.r.HandleFunc("/projects/{project}/remove", s.removeProject).Methods(http.MethodPost)
	s.r.HandleFunc("/projects/{project}/purge", s.purgeProject).Methods(http.MethodPost)
	s.r.HandleFunc("/projects/{project}/unremove", s.unremoveProject).Methods(http.MethodPost)

	s.r.HandleFunc("/projects/{project}/repos", s.createRepository).Methods(http.MethodPost)
	s.r.HandleFunc("/projects/{project}/repos/{repo}/remove", s.removeRepository).Methods(http.MethodPost)
	s.r.HandleFunc("/projects/{project}/repos/{repo}/purge", s.purgeRepository).Methods(http.MethodPost)
	s.r.HandleFunc("/projects/{project}/repos/{repo}/unremove", s.unremoveRepository).Methods(http.MethodPost)

	s.r.HandleFunc("/projects/{project}/repos/{repo}/push", s.pushAsIs).Methods(http.MethodPost)
	s.r.HandleFunc("/projects/{project}/repos/{repo}/push/normalizing", s.normalizingPush).Methods(http.MethodPost)

	s.r.HandleFunc("/projects/{project}/repos/{repo}/file", s.getFile).Methods(http.MethodGet)
	s.r.HandleFunc("/projects/{project}/repos/{repo}/watch", s.watch).Methods(http.MethodGet)
}

func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
