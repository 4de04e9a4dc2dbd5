// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"bytes"
	"context"
	"database/sql"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/lineage/internal/cache"
	"github.com/antgroup/lineage/internal/catalog"
	"github.com/antgroup/lineage/internal/cluster"
	"github.com/antgroup/lineage/internal/dogmaerr"
	"github.com/antgroup/lineage/internal/pattern"
	"github.com/antgroup/lineage/internal/repo"
)

func freeLoopbackAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// fakeCatalog is an in-memory stand-in for the MySQL-backed
// catalog.DB, exercising the same lifecycle transitions without
// needing a database connection.
type fakeCatalog struct {
	mu       sync.Mutex
	nextID   int64
	projects map[string]*catalog.Project
	repos    map[string]*catalog.Repository
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{projects: make(map[string]*catalog.Project), repos: make(map[string]*catalog.Repository)}
}

func (f *fakeCatalog) Database() *sql.DB { return nil }
func (f *fakeCatalog) Close() error      { return nil }

func (f *fakeCatalog) CreateProject(_ context.Context, p *catalog.Project) (*catalog.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.projects[p.Name]; exists {
		return nil, &catalog.ErrExist{Kind: "project", Name: p.Name}
	}
	f.nextID++
	rec := &catalog.Project{ID: f.nextID, Name: p.Name, AuthorName: p.AuthorName, AuthorEmail: p.AuthorEmail, Status: catalog.StatusActive}
	f.projects[p.Name] = rec
	return rec, nil
}

func (f *fakeCatalog) FindProject(_ context.Context, name string) (*catalog.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[name]
	if !ok {
		return nil, &catalog.ErrNotFound{Kind: "project", Name: name}
	}
	return p, nil
}

func (f *fakeCatalog) ListProjects(_ context.Context) ([]*catalog.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*catalog.Project
	for _, p := range f.projects {
		if p.Status != catalog.StatusPurged {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) transitionProject(name string, from, to catalog.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[name]
	if !ok || p.Status != from {
		return &catalog.ErrNotFound{Kind: "project", Name: name}
	}
	p.Status = to
	return nil
}

func (f *fakeCatalog) RemoveProject(_ context.Context, name string) error {
	return f.transitionProject(name, catalog.StatusActive, catalog.StatusRemoved)
}
func (f *fakeCatalog) PurgeProject(_ context.Context, name string) error {
	return f.transitionProject(name, catalog.StatusRemoved, catalog.StatusPurged)
}
func (f *fakeCatalog) UnremoveProject(_ context.Context, name string) error {
	return f.transitionProject(name, catalog.StatusRemoved, catalog.StatusActive)
}

func (f *fakeCatalog) CreateRepository(_ context.Context, r *catalog.Repository) (*catalog.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.repos {
		if existing.ProjectID == r.ProjectID && existing.Name == r.Name {
			return nil, &catalog.ErrExist{Kind: "repository", Name: r.Name}
		}
	}
	f.nextID++
	rec := &catalog.Repository{ID: f.nextID, ProjectID: r.ProjectID, Name: r.Name, AuthorName: r.AuthorName, AuthorEmail: r.AuthorEmail, Status: catalog.StatusActive}
	f.repos[repoStoreKey(r.ProjectID, r.Name)] = rec
	return rec, nil
}

func repoStoreKey(projectID int64, name string) string {
	return cache.JoinKey(intKey64(projectID), name)
}

func (f *fakeCatalog) findProjectByName(name string) (*catalog.Project, bool) {
	p, ok := f.projects[name]
	return p, ok
}

func (f *fakeCatalog) FindRepository(_ context.Context, project, name string) (*catalog.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.findProjectByName(project)
	if !ok {
		return nil, &catalog.ErrNotFound{Kind: "repository", Name: project + "/" + name}
	}
	r, ok := f.repos[repoStoreKey(p.ID, name)]
	if !ok {
		return nil, &catalog.ErrNotFound{Kind: "repository", Name: project + "/" + name}
	}
	return r, nil
}

func (f *fakeCatalog) ListRepositories(_ context.Context, project string) ([]*catalog.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.findProjectByName(project)
	if !ok {
		return nil, &catalog.ErrNotFound{Kind: "project", Name: project}
	}
	var out []*catalog.Repository
	for _, r := range f.repos {
		if r.ProjectID == p.ID && r.Status != catalog.StatusPurged {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCatalog) transitionRepository(project, name string, from, to catalog.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.findProjectByName(project)
	if !ok {
		return &catalog.ErrNotFound{Kind: "repository", Name: project + "/" + name}
	}
	r, ok := f.repos[repoStoreKey(p.ID, name)]
	if !ok || r.Status != from {
		return &catalog.ErrNotFound{Kind: "repository", Name: project + "/" + name}
	}
	r.Status = to
	return nil
}

func (f *fakeCatalog) RemoveRepository(_ context.Context, project, name string) error {
	return f.transitionRepository(project, name, catalog.StatusActive, catalog.StatusRemoved)
}
func (f *fakeCatalog) PurgeRepository(_ context.Context, project, name string) error {
	return f.transitionRepository(project, name, catalog.StatusRemoved, catalog.StatusPurged)
}
func (f *fakeCatalog) UnremoveRepository(_ context.Context, project, name string) error {
	return f.transitionRepository(project, name, catalog.StatusRemoved, catalog.StatusActive)
}

var _ catalog.DB = (*fakeCatalog)(nil)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	c, err := cache.New(1<<10, 1<<20, 64)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return New(t.TempDir(), newFakeCatalog(), c, nil)
}

func sig(name string) cluster.Signature {
	return cluster.Signature{Name: name, Email: name + "@example.com", When: time.Unix(0, 0)}
}

func TestCreateProjectAndRepositoryBootstrapsRevisionOne(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	_, err := h.Execute(ctx, mustCommand(t, cluster.OpCreateProject, cluster.CreateProjectPayload{Name: "acme", AuthorName: "a", AuthorEmail: "a@x.com"}))
	require.NoError(t, err)

	_, err = h.Execute(ctx, mustCommand(t, cluster.OpCreateRepository, cluster.CreateRepositoryPayload{Project: "acme", Name: "config", AuthorName: "a", AuthorEmail: "a@x.com"}))
	require.NoError(t, err)

	rh, err := h.open(ctx, "acme", "config")
	require.NoError(t, err)
	require.EqualValues(t, 1, rh.engine.Head())
}

func TestCreateRepositoryRejectsReservedName(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	_, err := h.Execute(ctx, mustCommand(t, cluster.OpCreateProject, cluster.CreateProjectPayload{Name: "meta"}))
	require.NoError(t, err)

	_, err = h.Execute(ctx, mustCommand(t, cluster.OpCreateRepository, cluster.CreateRepositoryPayload{Project: "meta", Name: "dogma"}))
	require.Error(t, err)
}

func TestPushAsIsCommitsWithoutCanonicalizing(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	createProjectAndRepo(t, h, "acme", "config")

	push := cluster.PushPayload{
		Project: "acme", Repository: "config", BaseRevision: 1,
		Author: sig("alice"), Committer: sig("alice"), Summary: "add file",
		Changes: []cluster.ChangePayload{{Op: "upsert_text", Path: "/a.txt", Content: []byte("hello\n")}},
	}
	res, err := h.Execute(ctx, mustCommand(t, cluster.OpPushAsIs, push))
	require.NoError(t, err)
	result := res.(PushResult)
	require.EqualValues(t, 2, result.Revision)
	require.Nil(t, result.NormalizedChanges)
}

func TestNormalizingPushReturnsNormalizedChanges(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	createProjectAndRepo(t, h, "acme", "config")

	push := cluster.PushPayload{
		Project: "acme", Repository: "config", BaseRevision: 1,
		Author: sig("alice"), Committer: sig("alice"), Summary: "add json",
		Changes: []cluster.ChangePayload{{Op: "upsert_json", Path: "/a.json", Content: []byte(`{"b":1,"a":2}`)}},
	}
	res, err := h.Execute(ctx, mustCommand(t, cluster.OpNormalizingPush, push))
	require.NoError(t, err)
	result := res.(PushResult)
	require.EqualValues(t, 2, result.Revision)
	require.Len(t, result.NormalizedChanges, 1)
	require.Equal(t, `{"a":2,"b":1}`, string(result.NormalizedChanges[0].Content))
}

func TestPushRejectedWhileReadOnlyUnlessForced(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	createProjectAndRepo(t, h, "acme", "config")

	_, err := h.Execute(ctx, mustCommand(t, cluster.OpUpdateServerStatus, cluster.UpdateServerStatusPayload{ReadOnly: true}))
	require.NoError(t, err)

	push := cluster.PushPayload{
		Project: "acme", Repository: "config", BaseRevision: 1,
		Author: sig("alice"), Committer: sig("alice"), Summary: "blocked",
		Changes: []cluster.ChangePayload{{Op: "upsert_text", Path: "/a.txt", Content: []byte("x")}},
	}
	_, err = h.Execute(ctx, mustCommand(t, cluster.OpPushAsIs, push))
	require.Error(t, err)

	wrapped := mustCommand(t, cluster.OpPushAsIs, push)
	_, err = h.Execute(ctx, mustCommand(t, cluster.OpForcePush, cluster.ForcePushPayload{Wrapped: wrapped}))
	require.NoError(t, err)
}

func TestForcePushOverridesAuthorWithSystemIdentity(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	createProjectAndRepo(t, h, "acme", "config")

	push := cluster.PushPayload{
		Project: "acme", Repository: "config", BaseRevision: 1,
		Author: sig("alice"), Committer: sig("alice"), Summary: "forced",
		Changes: []cluster.ChangePayload{{Op: "upsert_text", Path: "/a.txt", Content: []byte("x")}},
	}
	wrapped := mustCommand(t, cluster.OpPushAsIs, push)
	_, err := h.Execute(ctx, mustCommand(t, cluster.OpForcePush, cluster.ForcePushPayload{Wrapped: wrapped}))
	require.NoError(t, err)

	entries, err := h.History(ctx, "acme", "config", 2, 2, pattern.MatchAll(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "system", entries[0].Commit.Author.Name)
	require.Equal(t, "system", entries[0].Commit.Committer.Name)
}

func TestForcePushRejectsNonPushWrappedCommand(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	wrapped := mustCommand(t, cluster.OpCreateProject, cluster.CreateProjectPayload{Name: "acme"})
	_, err := h.Execute(ctx, mustCommand(t, cluster.OpForcePush, cluster.ForcePushPayload{Wrapped: wrapped}))
	require.Error(t, err)
}

func TestPushRejectedForReservedRepository(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	push := cluster.PushPayload{
		Project: "meta", Repository: "dogma", BaseRevision: 0,
		Author: sig("alice"), Committer: sig("alice"), Summary: "sneak in",
		Changes: []cluster.ChangePayload{{Op: "upsert_text", Path: "/a.txt", Content: []byte("x")}},
	}
	_, err := h.Execute(ctx, mustCommand(t, cluster.OpPushAsIs, push))
	require.Error(t, err)
	require.True(t, dogmaerr.IsErrInvalidPush(err))
}

func TestPushRejectedWhenPayloadExceedsConfiguredLimit(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	createProjectAndRepo(t, h, "acme", "config")
	h.SetMaxPushPayloadBytes(64)

	push := cluster.PushPayload{
		Project: "acme", Repository: "config", BaseRevision: 1,
		Author: sig("alice"), Committer: sig("alice"), Summary: "too big",
		Changes: []cluster.ChangePayload{{Op: "upsert_text", Path: "/a.txt", Content: bytes.Repeat([]byte("x"), 1024)}},
	}
	_, err := h.Execute(ctx, mustCommand(t, cluster.OpPushAsIs, push))
	require.Error(t, err)
	require.True(t, dogmaerr.IsErrTooLargeRequest(err))
}

func TestReadOnlyBlocksCatalogAndSessionCommands(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	_, err := h.Execute(ctx, mustCommand(t, cluster.OpUpdateServerStatus, cluster.UpdateServerStatusPayload{ReadOnly: true}))
	require.NoError(t, err)

	_, err = h.Execute(ctx, mustCommand(t, cluster.OpCreateProject, cluster.CreateProjectPayload{Name: "acme"}))
	require.Error(t, err)
	require.ErrorIs(t, err, dogmaerr.ErrReadOnly)

	_, err = h.Execute(ctx, mustCommand(t, cluster.OpCreateSession, cluster.CreateSessionPayload{SessionID: "s1", Subject: "bob"}))
	require.Error(t, err)
	require.ErrorIs(t, err, dogmaerr.ErrReadOnly)
}

func TestFindReadsCommittedContentAndCachesResult(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	createProjectAndRepo(t, h, "acme", "config")
	commitFile(t, h, "acme", "config", "/a.txt", []byte("v1\n"))

	pat := pattern.MatchAll()
	entries, err := h.Find(ctx, "acme", "config", 2, pat, repo.FindOptions{FetchContent: true})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "/a.txt", entries[0].Path)

	h.cache.Wait()
	entriesAgain, err := h.Find(ctx, "acme", "config", 2, pat, repo.FindOptions{FetchContent: true})
	require.NoError(t, err)
	require.Equal(t, entries, entriesAgain)
}

func TestWatchWakesOnMatchingCommit(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	createProjectAndRepo(t, h, "acme", "config")

	done := make(chan struct{})
	var watchErr error
	go func() {
		defer close(done)
		_, watchErr = h.Watch(ctx, "acme", "config", 1, pattern.MatchAll(), 5*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	commitFile(t, h, "acme", "config", "/a.txt", []byte("v1\n"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch never woke")
	}
	require.NoError(t, watchErr)
}

func TestPurgeRepositoryForgetsHandle(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	createProjectAndRepo(t, h, "acme", "config")
	commitFile(t, h, "acme", "config", "/a.txt", []byte("v1\n"))

	_, err := h.Execute(ctx, mustCommand(t, cluster.OpRemoveRepository, cluster.RepositoryNamePayload{Project: "acme", Name: "config"}))
	require.NoError(t, err)
	_, err = h.Execute(ctx, mustCommand(t, cluster.OpPurgeRepository, cluster.RepositoryNamePayload{Project: "acme", Name: "config"}))
	require.NoError(t, err)

	h.mu.Lock()
	_, stillOpen := h.repos[repoKey("acme", "config")]
	h.mu.Unlock()
	require.False(t, stillOpen)
}

func TestCreateSessionRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	_, err := h.Execute(ctx, mustCommand(t, cluster.OpCreateSession, cluster.CreateSessionPayload{SessionID: "s1", Subject: "alice"}))
	require.NoError(t, err)
	_, err = h.Execute(ctx, mustCommand(t, cluster.OpCreateSession, cluster.CreateSessionPayload{SessionID: "s1", Subject: "bob"}))
	require.Error(t, err)

	subject, ok := h.SessionSubject("s1")
	require.True(t, ok)
	require.Equal(t, "alice", subject)
}

func mustCommand(t *testing.T, op cluster.Op, payload any) cluster.Command {
	t.Helper()
	cmd, err := cluster.NewCommand(op, payload)
	require.NoError(t, err)
	return cmd
}

func createProjectAndRepo(t *testing.T, h *Hub, project, repository string) {
	t.Helper()
	ctx := context.Background()
	_, err := h.Execute(ctx, mustCommand(t, cluster.OpCreateProject, cluster.CreateProjectPayload{Name: project, AuthorName: "a", AuthorEmail: "a@x.com"}))
	require.NoError(t, err)
	_, err = h.Execute(ctx, mustCommand(t, cluster.OpCreateRepository, cluster.CreateRepositoryPayload{Project: project, Name: repository, AuthorName: "a", AuthorEmail: "a@x.com"}))
	require.NoError(t, err)
}

func TestTransformAppliesFunctionAndReplicatesThroughPushAsIs(t *testing.T) {
	h := newTestHub(t)
	createProjectAndRepo(t, h, "acme", "config")
	commitFile(t, h, "acme", "config", "/a.txt", []byte("hello\n"))

	cfg := cluster.Config{NodeID: "node-1", BindAddr: freeLoopbackAddr(t), DataDir: t.TempDir()}
	node, err := cluster.Start(cfg, h, true)
	require.NoError(t, err)
	defer node.Shutdown()
	require.Eventually(t, node.IsLeader, 5*time.Second, 20*time.Millisecond)

	upper := func(_ string, content []byte) ([]byte, error) {
		return bytes.ToUpper(content), nil
	}

	res, err := h.Transform(context.Background(), node, "acme", "config", 2, pattern.MatchAll(),
		sig("alice"), sig("alice"), "uppercase everything", "", "PLAINTEXT", upper)
	require.NoError(t, err)
	require.EqualValues(t, 3, res.(PushResult).Revision)

	entry, err := h.Get(context.Background(), "acme", "config", 3, repo.Identity("/a.txt"))
	require.NoError(t, err)
	require.Equal(t, "HELLO\n", string(entry.Content))
}

func commitFile(t *testing.T, h *Hub, project, repository, path string, content []byte) int64 {
	t.Helper()
	ctx := context.Background()
	rh, err := h.open(ctx, project, repository)
	require.NoError(t, err)
	base := rh.engine.Head()
	push := cluster.PushPayload{
		Project: project, Repository: repository, BaseRevision: base,
		Author: sig("alice"), Committer: sig("alice"), Summary: "commit",
		Changes: []cluster.ChangePayload{{Op: "upsert_text", Path: path, Content: content}},
	}
	res, err := h.Execute(ctx, mustCommand(t, cluster.OpPushAsIs, push))
	require.NoError(t, err)
	return res.(PushResult).Revision
}
