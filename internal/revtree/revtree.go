// Package revtree implements the per-document revision forest.
//
// Revisions form a DAG with strictly increasing generations along parent
// pointers, so cycles are impossible by construction. The forest may have
// several roots: replication can import a subtree whose true root was never
// pushed.
//
// Nodes live in an arena slice and refer to each other by index, keeping
// path walks cache-friendly. Auxiliary maps give O(1) lookup by sequence and
// by revision id.
//
// Insertion order matters: a revision can only be added once its parent is
// present (or with no parent, becoming a root). Leaf status is derived from
// the edges, never stored.
package revtree

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/kartikbazzad/syncdb/internal/errors"
	"github.com/kartikbazzad/syncdb/internal/types"
)

type node struct {
	rev      *types.DocumentRevision
	parent   int // arena index of the parent, -1 for roots
	children []int
}

// Tree is a single document's revision forest. It is not safe for
// concurrent mutation; the datastore serializes writers per document.
type Tree struct {
	nodes []node
	bySeq map[int64]int
	byRev map[string]int
	roots []int // arena indices in insertion order
}

func New() *Tree {
	return &Tree{
		bySeq: make(map[int64]int),
		byRev: make(map[string]int),
	}
}

// NewWithRoot creates a tree holding a single root revision.
func NewWithRoot(rev *types.DocumentRevision) (*Tree, error) {
	t := New()
	if err := t.Add(rev); err != nil {
		return nil, err
	}
	return t, nil
}

// Add inserts a revision. The parent named by rev.ParentSequence must
// already be in the tree unless it is types.RootSequence, in which case the
// revision becomes a (possibly additional) root.
func (t *Tree) Add(rev *types.DocumentRevision) error {
	if _, ok := t.bySeq[rev.Sequence]; ok {
		return errors.ErrRevisionInTree
	}
	if _, ok := t.byRev[rev.RevID]; ok {
		return errors.ErrRevisionInTree
	}
	if len(t.nodes) > 0 && rev.DocID != t.nodes[0].rev.DocID {
		return errors.ErrDocumentIDMismatch
	}

	if rev.IsRoot() {
		idx := len(t.nodes)
		t.nodes = append(t.nodes, node{rev: rev, parent: -1})
		t.bySeq[rev.Sequence] = idx
		t.byRev[rev.RevID] = idx
		t.roots = append(t.roots, idx)
		return nil
	}

	parentIdx, ok := t.bySeq[rev.ParentSequence]
	if !ok {
		return errors.ErrParentNotFound
	}

	// Generation must strictly increase along parent pointers.
	if t.nodes[parentIdx].rev.Generation() >= rev.Generation() {
		return errors.ErrTreeCorrupt
	}

	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{rev: rev, parent: parentIdx})
	t.bySeq[rev.Sequence] = idx
	t.byRev[rev.RevID] = idx
	t.nodes[parentIdx].children = append(t.nodes[parentIdx].children, idx)
	return nil
}

// Size returns the number of revisions in the tree.
func (t *Tree) Size() int {
	return len(t.nodes)
}

// Roots returns the root revisions keyed by sequence.
func (t *Tree) Roots() map[int64]*types.DocumentRevision {
	out := make(map[int64]*types.DocumentRevision, len(t.roots))
	for _, idx := range t.roots {
		rev := t.nodes[idx].rev
		out[rev.Sequence] = rev
	}
	return out
}

// Root returns the root revision with the given sequence, or nil if the
// sequence is unknown or not a root.
func (t *Tree) Root(seq int64) *types.DocumentRevision {
	idx, ok := t.bySeq[seq]
	if !ok || t.nodes[idx].parent != -1 {
		return nil
	}
	return t.nodes[idx].rev
}

// Leafs returns the revisions with no children, in no particular order.
func (t *Tree) Leafs() []*types.DocumentRevision {
	var leafs []*types.DocumentRevision
	for i := range t.nodes {
		if len(t.nodes[i].children) == 0 {
			leafs = append(leafs, t.nodes[i].rev)
		}
	}
	return leafs
}

// LeafRevisionIDs returns the set of leaf revision ids.
func (t *Tree) LeafRevisionIDs() mapset.Set[string] {
	ids := mapset.NewThreadUnsafeSet[string]()
	for _, rev := range t.Leafs() {
		ids.Add(rev.RevID)
	}
	return ids
}

// BySequence returns the revision with the given sequence, or nil.
func (t *Tree) BySequence(seq int64) *types.DocumentRevision {
	idx, ok := t.bySeq[seq]
	if !ok {
		return nil
	}
	return t.nodes[idx].rev
}

// Lookup returns the revision with the given document and revision id, or
// nil.
func (t *Tree) Lookup(docID, revID string) *types.DocumentRevision {
	idx, ok := t.byRev[revID]
	if !ok || t.nodes[idx].rev.DocID != docID {
		return nil
	}
	return t.nodes[idx].rev
}

// Depth returns the number of edges between the node and its root, or -1 if
// the sequence is unknown.
func (t *Tree) Depth(seq int64) int {
	idx, ok := t.bySeq[seq]
	if !ok {
		return -1
	}
	depth := 0
	for t.nodes[idx].parent != -1 {
		idx = t.nodes[idx].parent
		depth++
	}
	return depth
}

// PathForNode returns the revisions from the given node up to its root,
// starting with the node itself.
func (t *Tree) PathForNode(seq int64) ([]*types.DocumentRevision, error) {
	idx, ok := t.bySeq[seq]
	if !ok {
		return nil, errors.ErrSequenceNotFound
	}
	var path []*types.DocumentRevision
	for {
		path = append(path, t.nodes[idx].rev)
		if t.nodes[idx].parent == -1 {
			return path, nil
		}
		idx = t.nodes[idx].parent
	}
}

// Path returns the revision ids from the given node up to its root,
// starting with the node itself.
func (t *Tree) Path(seq int64) ([]string, error) {
	revs, err := t.PathForNode(seq)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(revs))
	for i, rev := range revs {
		ids[i] = rev.RevID
	}
	return ids, nil
}

// HasConflicts reports whether more than one non-deleted leaf exists.
// Deleted leaves never create a conflict by themselves.
func (t *Tree) HasConflicts() bool {
	live := 0
	for _, rev := range t.Leafs() {
		if !rev.Deleted {
			live++
			if live > 1 {
				return true
			}
		}
	}
	return false
}

// CurrentRevision elects the winning leaf: the non-deleted leaf with the
// greatest (generation, suffix); if every leaf is deleted, the same rule
// applies over the deleted leaves. The election is deterministic, matching
// CouchDB winner semantics.
func (t *Tree) CurrentRevision() (*types.DocumentRevision, error) {
	leafs := t.Leafs()
	if len(leafs) == 0 {
		return nil, errors.ErrEmptyTree
	}

	var winner *types.DocumentRevision
	for _, rev := range leafs {
		if rev.Deleted {
			continue
		}
		if winner == nil || types.CompareRevisionIDs(rev.RevID, winner.RevID) > 0 {
			winner = rev
		}
	}
	if winner != nil {
		return winner, nil
	}

	for _, rev := range leafs {
		if winner == nil || types.CompareRevisionIDs(rev.RevID, winner.RevID) > 0 {
			winner = rev
		}
	}
	return winner, nil
}
