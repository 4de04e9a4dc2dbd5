// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/antgroup/lineage/internal/dogmaerr"
	"github.com/antgroup/lineage/internal/hash"
	"github.com/antgroup/lineage/internal/object"
	"github.com/antgroup/lineage/internal/objstore"
)

// treeNode is one node of the mutable working tree a Commit call
// builds from the head tree (spec.md §4.C step 3: "build a mutable
// working tree, an in-memory index"). A directory node has a non-nil
// children map; a file node carries its canonical content and type.
type treeNode struct {
	children map[string]*treeNode
	content  []byte
	typ      EntryType
}

func newDirNode() *treeNode { return &treeNode{children: map[string]*treeNode{}} }

func newFileNode(typ EntryType, content []byte) *treeNode {
	return &treeNode{typ: typ, content: content}
}

func (n *treeNode) isDir() bool { return n.children != nil }

// splitPath turns an absolute path into its segments; the root path
// "/" yields no segments.
func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// get resolves path against the tree rooted at root. The root itself
// is returned for path "/".
func (root *treeNode) get(p string) (*treeNode, bool) {
	cur := root
	for _, seg := range splitPath(p) {
		if !cur.isDir() {
			return nil, false
		}
		next, ok := cur.children[seg]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// set installs n at path, creating intermediate directory nodes as
// needed, and fails change-conflict if an intermediate segment is a
// file.
func (root *treeNode) set(p string, n *treeNode) error {
	segs := splitPath(p)
	if len(segs) == 0 {
		return fmt.Errorf("repo: cannot replace the root directory")
	}
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur.children[seg]
		if !ok {
			next = newDirNode()
			cur.children[seg] = next
		}
		if !next.isDir() {
			return dogmaerr.NewErrChangeConflict(p, "a parent path segment is a file")
		}
		cur = next
	}
	cur.children[segs[len(segs)-1]] = n
	return nil
}

// remove deletes the node at path, failing if it is absent.
func (root *treeNode) remove(p string) error {
	segs := splitPath(p)
	if len(segs) == 0 {
		return fmt.Errorf("repo: cannot remove the root directory")
	}
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur.children[seg]
		if !ok || !next.isDir() {
			return dogmaerr.NewErrEntryNotFound(p)
		}
		cur = next
	}
	last := segs[len(segs)-1]
	if _, ok := cur.children[last]; !ok {
		return dogmaerr.NewErrEntryNotFound(p)
	}
	delete(cur.children, last)
	return nil
}

// walk visits every descendant of root (not root itself) in sorted
// order, depth-first, passing each node's absolute path. Find relies
// on the root never being visited: spec.md §8 scenario 1 requires an
// empty repository's find(1, /**, fetch=true) to return no entries,
// even though "/**" matches every path syntactically — the root
// directory is addressable only via an explicit identity("/") query,
// never synthesized as a pattern match.
func (root *treeNode) walk(fn func(p string, n *treeNode)) {
	if !root.isDir() {
		return
	}
	var rec func(prefix string, n *treeNode)
	rec = func(prefix string, n *treeNode) {
		fn(prefix, n)
		if !n.isDir() {
			return
		}
		names := make([]string, 0, len(n.children))
		for name := range n.children {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			childPath := prefix + "/" + name
			if prefix == "/" {
				childPath = "/" + name
			}
			rec(childPath, n.children[name])
		}
	}
	names := make([]string, 0, len(root.children))
	for name := range root.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rec("/"+name, root.children[name])
	}
}

// loadTree materializes the persisted tree at h into an in-memory
// treeNode, resolving every blob and subtree eagerly. h.IsZero()
// (an empty repository's implicit root) loads as an empty directory.
func loadTree(ctx context.Context, store objstore.Store, h hash.Hash) (*treeNode, error) {
	if h.IsZero() {
		return newDirNode(), nil
	}
	tree, err := objstore.GetTree(ctx, store, h)
	if err != nil {
		return nil, err
	}
	n := newDirNode()
	for _, e := range tree.Entries {
		switch e.Mode {
		case object.ModeTree:
			child, err := loadTree(ctx, store, e.Hash)
			if err != nil {
				return nil, err
			}
			n.children[e.Name] = child
		case object.ModeRegularFile:
			blob, err := objstore.GetBlob(ctx, store, e.Hash)
			if err != nil {
				return nil, err
			}
			n.children[e.Name] = newFileNode(InferType(e.Name), blob.Content)
		default:
			return nil, fmt.Errorf("repo: tree entry %q has unsupported mode %v", e.Name, e.Mode)
		}
	}
	return n, nil
}

// saveTree persists n bottom-up, writing a blob for every file node
// and a tree object for every directory node, and returns n's hash.
func saveTree(ctx context.Context, store objstore.Store, n *treeNode) (hash.Hash, error) {
	if !n.isDir() {
		return objstore.PutEncoder(ctx, store, object.BlobKind, object.NewBlob(n.content))
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]object.Entry, 0, len(names))
	for _, name := range names {
		child := n.children[name]
		h, err := saveTree(ctx, store, child)
		if err != nil {
			return hash.Zero, err
		}
		mode := object.ModeRegularFile
		if child.isDir() {
			mode = object.ModeTree
		}
		entries = append(entries, object.Entry{Name: name, Mode: mode, Hash: h})
	}
	return objstore.PutEncoder(ctx, store, object.TreeKind, object.NewTree(entries))
}
