package datastore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/syncdb/internal/types"
)

// forceRev inserts a revision with a deterministic id and linear history.
func forceRev(t *testing.T, ds *Datastore, docID string, history ...string) *types.DocumentRevision {
	t.Helper()
	rev := &types.DocumentRevision{
		DocID: docID,
		RevID: history[len(history)-1],
		Body:  bodyOne(),
	}
	require.NoError(t, ds.ForceInsert(rev, history, nil))
	return rev
}

func TestRevsDiff_EmptyInput(t *testing.T) {
	ds := newTestDatastore(t)

	missing, err := ds.RevsDiff(nil)
	require.NoError(t, err)
	assert.Empty(t, missing)

	missing, err = ds.RevsDiff(map[string][]string{})
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRevsDiff_OneDocOneRev_ReturnNothing(t *testing.T) {
	ds := newTestDatastore(t)
	rev := forceRev(t, ds, "doc1", "1-a")

	missing, err := ds.RevsDiff(map[string][]string{"doc1": {rev.RevID}})
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRevsDiff_OneDocOneRev_ReturnOne(t *testing.T) {
	ds := newTestDatastore(t)
	forceRev(t, ds, "doc1", "1-a")

	missing, err := ds.RevsDiff(map[string][]string{"doc1": {"2-a"}})
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, []string{"2-a"}, missing["doc1"])
}

func TestRevsDiff_UnknownDocument(t *testing.T) {
	ds := newTestDatastore(t)

	missing, err := ds.RevsDiff(map[string][]string{"ghost": {"1-a", "2-b"}})
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.ElementsMatch(t, []string{"1-a", "2-b"}, missing["ghost"])
}

func TestRevsDiff_OneDocTwoRevs_ReturnNothing(t *testing.T) {
	ds := newTestDatastore(t)
	forceRev(t, ds, "doc1", "1-a", "2-b")

	missing, err := ds.RevsDiff(map[string][]string{"doc1": {"1-a", "2-b"}})
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRevsDiff_TwoDocs_ReturnOneDoc(t *testing.T) {
	ds := newTestDatastore(t)
	forceRev(t, ds, "doc1", "1-a")
	forceRev(t, ds, "doc2", "1-b")

	missing, err := ds.RevsDiff(map[string][]string{
		"doc1": {"1-a", "2-a"},
		"doc2": {"1-b"},
	})
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, []string{"2-a"}, missing["doc1"])
}

func TestRevsDiff_TwoDocs_ReturnTwoDocs(t *testing.T) {
	ds := newTestDatastore(t)
	forceRev(t, ds, "doc1", "1-a")
	forceRev(t, ds, "doc2", "1-b")

	missing, err := ds.RevsDiff(map[string][]string{
		"doc1": {"1-a", "2-a"},
		"doc2": {"1-b", "2-a"},
	})
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, []string{"2-a"}, missing["doc1"])
	assert.Equal(t, []string{"2-a"}, missing["doc2"])
}

func TestRevsDiff_DuplicatesCollapse(t *testing.T) {
	ds := newTestDatastore(t)
	forceRev(t, ds, "doc1", "1-a")

	missing, err := ds.RevsDiff(map[string][]string{"doc1": {"2-a", "2-a", "2-a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"2-a"}, missing["doc1"])
}

func TestRevsDiff_ManyMissingRevisions(t *testing.T) {
	ds := newTestDatastore(t)
	forceRev(t, ds, "doc1", "1-a")
	forceRev(t, ds, "doc2", "1-a")

	offered := make([]string, 0, 99999)
	for i := 1; i <= 99999; i++ {
		offered = append(offered, fmt.Sprintf("%d-a", i))
	}

	missing, err := ds.RevsDiff(map[string][]string{
		"doc1": offered,
		"doc2": {"1-a"},
	})
	require.NoError(t, err)
	require.Len(t, missing, 1, "doc2 has nothing missing and must be absent")
	require.Len(t, missing["doc1"], 99998)

	set := make(map[string]struct{}, len(missing["doc1"]))
	for _, rev := range missing["doc1"] {
		set[rev] = struct{}{}
	}
	assert.Contains(t, set, "2-a")
	assert.Contains(t, set, "499-a")
	assert.Contains(t, set, "99999-a")
	assert.NotContains(t, set, "1-a")
}

// Result pairs are always a subset of the offered pairs, and every reported
// pair is genuinely absent locally.
func TestRevsDiff_SubsetAndAbsenceProperties(t *testing.T) {
	ds := newTestDatastore(t)
	forceRev(t, ds, "doc1", "1-a", "2-b")

	offered := map[string][]string{
		"doc1": {"1-a", "2-b", "3-c", "4-d"},
		"doc2": {"1-x"},
	}
	missing, err := ds.RevsDiff(offered)
	require.NoError(t, err)

	for docID, revs := range missing {
		offeredSet := make(map[string]struct{})
		for _, rev := range offered[docID] {
			offeredSet[rev] = struct{}{}
		}
		for _, rev := range revs {
			assert.Contains(t, offeredSet, rev, "reported pair was never offered")
			tree, treeErr := ds.GetDocumentTree(docID)
			if treeErr == nil {
				assert.Nil(t, tree.Lookup(docID, rev), "reported pair is stored locally")
			}
		}
	}
}
