// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/antgroup/lineage/internal/dogmaerr"
	"github.com/antgroup/lineage/internal/pattern"
)

// Find lists entries at revision matching pat (spec.md §4.C: "lists
// matching entries; ... directory matches include the directory
// itself"). The repository's synthetic root is never itself a match
// (see treeNode.walk); pass Identity("/") to Get for that.
func (e *Engine) Find(ctx context.Context, revision int64, pat *pattern.PathPattern, opts FindOptions) ([]Entry, error) {
	abs, err := e.resolveRevision(revision)
	if err != nil {
		return nil, err
	}
	treeHash, err := e.treeAt(ctx, abs)
	if err != nil {
		return nil, err
	}
	root, err := loadTree(ctx, e.store, treeHash)
	if err != nil {
		return nil, err
	}

	var results []Entry
	root.walk(func(p string, n *treeNode) {
		if !pat.Match(p) {
			return
		}
		entry := Entry{Path: p}
		if n.isDir() {
			entry.Type = TypeDirectory
		} else {
			entry.Type = n.typ
			if opts.FetchContent {
				entry.Content = n.content
			}
		}
		results = append(results, entry)
	})
	if opts.MaxEntries > 0 && len(results) > opts.MaxEntries {
		results = results[:opts.MaxEntries]
	}
	return results, nil
}

// Get resolves a single Query at revision (spec.md §4.C: "identity
// query returns find's single-entry result; JSON-path query applies
// expressions in order").
func (e *Engine) Get(ctx context.Context, revision int64, q Query) (Entry, error) {
	abs, err := e.resolveRevision(revision)
	if err != nil {
		return Entry{}, err
	}
	treeHash, err := e.treeAt(ctx, abs)
	if err != nil {
		return Entry{}, err
	}
	root, err := loadTree(ctx, e.store, treeHash)
	if err != nil {
		return Entry{}, err
	}

	switch query := q.(type) {
	case IdentityQuery:
		return resolveIdentity(root, query)
	case *JSONPathQuery:
		return resolveJSONPath(root, query)
	default:
		return Entry{}, dogmaerr.NewErrEntryNotFound("")
	}
}

func resolveIdentity(root *treeNode, q IdentityQuery) (Entry, error) {
	n, ok := root.get(q.Path)
	if !ok {
		return Entry{}, dogmaerr.NewErrEntryNotFound(q.Path)
	}
	entry := Entry{Path: q.Path}
	if n.isDir() {
		entry.Type = TypeDirectory
	} else {
		entry.Type = n.typ
		entry.Content = n.content
	}
	if q.Assert != "" && q.Assert != entry.Type {
		return Entry{}, dogmaerr.NewErrEntryNotFound(q.Path)
	}
	return entry, nil
}

func resolveJSONPath(root *treeNode, q *JSONPathQuery) (Entry, error) {
	n, ok := root.get(q.Path)
	if !ok || n.isDir() || n.typ != TypeJSON {
		return Entry{}, dogmaerr.NewErrEntryNotFound(q.Path)
	}
	raw := string(n.content)
	for _, expr := range q.Exprs {
		res := gjson.Get(raw, expr)
		if !res.Exists() {
			return Entry{}, dogmaerr.NewErrEntryNotFound(q.Path + " " + expr)
		}
		raw = res.Raw
	}
	return Entry{Path: q.Path, Type: TypeJSON, Content: []byte(raw)}, nil
}
