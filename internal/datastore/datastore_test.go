package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/syncdb/internal/errors"
	"github.com/kartikbazzad/syncdb/internal/eventbus"
	"github.com/kartikbazzad/syncdb/internal/types"
)

func bodyOne() types.DocumentBody {
	return types.NewDocumentBody([]byte(`{"a": "haha"}`))
}

func bodyTwo() types.DocumentBody {
	return types.NewDocumentBody([]byte(`{"b": "hehe"}`))
}

func newTestDatastore(t *testing.T) *Datastore {
	t.Helper()
	ds, err := newTestManager(t).Open("testdb")
	require.NoError(t, err)
	return ds
}

func TestCreateDocument(t *testing.T) {
	ds := newTestDatastore(t)

	rev, err := ds.CreateDocument("doc1", bodyOne())
	require.NoError(t, err)
	assert.Equal(t, "doc1", rev.DocID)
	assert.Equal(t, 1, rev.Generation())
	assert.True(t, rev.Current)
	assert.False(t, rev.Deleted)
	assert.Greater(t, rev.Sequence, int64(0))

	got, err := ds.GetDocument("doc1")
	require.NoError(t, err)
	assert.Equal(t, rev.RevID, got.RevID)
	assert.True(t, got.Body.Equal(bodyOne()))
}

func TestCreateDocument_GeneratesID(t *testing.T) {
	ds := newTestDatastore(t)

	rev, err := ds.CreateDocument("", bodyOne())
	require.NoError(t, err)
	assert.NotEmpty(t, rev.DocID)

	got, err := ds.GetDocument(rev.DocID)
	require.NoError(t, err)
	assert.Equal(t, rev.RevID, got.RevID)
}

func TestCreateDocument_ExistingLiveDocument(t *testing.T) {
	ds := newTestDatastore(t)

	_, err := ds.CreateDocument("doc1", bodyOne())
	require.NoError(t, err)
	_, err = ds.CreateDocument("doc1", bodyTwo())
	assert.Equal(t, errors.ErrDocumentExists, err)
}

func TestUpdateDocument(t *testing.T) {
	ds := newTestDatastore(t)

	rev1, err := ds.CreateDocument("doc1", bodyOne())
	require.NoError(t, err)

	rev2, err := ds.UpdateDocument("doc1", rev1.RevID, bodyTwo())
	require.NoError(t, err)
	assert.Equal(t, 2, rev2.Generation())
	assert.Equal(t, rev1.Sequence, rev2.ParentSequence)

	got, err := ds.GetDocument("doc1")
	require.NoError(t, err)
	assert.Equal(t, rev2.RevID, got.RevID)
	assert.True(t, got.Body.Equal(bodyTwo()))

	// The superseded revision stays readable by id.
	old, err := ds.GetDocumentRevision("doc1", rev1.RevID)
	require.NoError(t, err)
	assert.False(t, old.Current)
	assert.True(t, old.Body.Equal(bodyOne()))
}

func TestUpdateDocument_StaleRevision(t *testing.T) {
	ds := newTestDatastore(t)

	rev1, err := ds.CreateDocument("doc1", bodyOne())
	require.NoError(t, err)
	_, err = ds.UpdateDocument("doc1", rev1.RevID, bodyTwo())
	require.NoError(t, err)

	// Updating through the superseded revision is a conflict.
	_, err = ds.UpdateDocument("doc1", rev1.RevID, bodyTwo())
	assert.Equal(t, errors.ErrConflict, err)
}

func TestUpdateDocument_MissingDocument(t *testing.T) {
	ds := newTestDatastore(t)
	_, err := ds.UpdateDocument("ghost", "1-a", bodyOne())
	assert.Equal(t, errors.ErrDocumentNotFound, err)
}

func TestDeleteDocument(t *testing.T) {
	ds := newTestDatastore(t)

	rev1, err := ds.CreateDocument("doc1", bodyOne())
	require.NoError(t, err)

	tomb, err := ds.DeleteDocument("doc1", rev1.RevID)
	require.NoError(t, err)
	assert.True(t, tomb.Deleted)
	assert.Equal(t, 2, tomb.Generation())

	// The tombstone is the winner; the document reads as deleted.
	got, err := ds.GetDocument("doc1")
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Equal(t, tomb.RevID, got.RevID)
}

func TestDeleteDocument_WrongRevision(t *testing.T) {
	ds := newTestDatastore(t)

	_, err := ds.CreateDocument("doc1", bodyOne())
	require.NoError(t, err)
	_, err = ds.DeleteDocument("doc1", "1-bogus")
	assert.Equal(t, errors.ErrConflict, err)
}

func TestCreateDocument_RevivesDeletedDocument(t *testing.T) {
	ds := newTestDatastore(t)

	rev1, err := ds.CreateDocument("doc1", bodyOne())
	require.NoError(t, err)
	tomb, err := ds.DeleteDocument("doc1", rev1.RevID)
	require.NoError(t, err)

	revived, err := ds.CreateDocument("doc1", bodyTwo())
	require.NoError(t, err)
	assert.Equal(t, tomb.Generation()+1, revived.Generation())
	assert.Equal(t, tomb.Sequence, revived.ParentSequence)

	got, err := ds.GetDocument("doc1")
	require.NoError(t, err)
	assert.False(t, got.Deleted)
	assert.True(t, got.Body.Equal(bodyTwo()))
}

func TestSequencesActAsLogicalClock(t *testing.T) {
	ds := newTestDatastore(t)

	var last int64
	for i := 0; i < 5; i++ {
		rev, err := ds.CreateDocument("", bodyOne())
		require.NoError(t, err)
		assert.Greater(t, rev.Sequence, last)
		last = rev.Sequence
	}

	seq, err := ds.LastSequence()
	require.NoError(t, err)
	assert.Equal(t, last, seq)
}

func TestDocumentEvents(t *testing.T) {
	m := newTestManager(t)
	ds, err := m.Open("testdb")
	require.NoError(t, err)
	events := collectEvents(m)

	rev1, err := ds.CreateDocument("doc1", bodyOne())
	require.NoError(t, err)
	waitForEvent(t, events, eventbus.DocumentCreated{Datastore: "testdb", DocID: "doc1", RevID: rev1.RevID})

	rev2, err := ds.UpdateDocument("doc1", rev1.RevID, bodyTwo())
	require.NoError(t, err)
	waitForEvent(t, events, eventbus.DocumentUpdated{Datastore: "testdb", DocID: "doc1", RevID: rev2.RevID})

	tomb, err := ds.DeleteDocument("doc1", rev2.RevID)
	require.NoError(t, err)
	waitForEvent(t, events, eventbus.DocumentDeleted{Datastore: "testdb", DocID: "doc1", RevID: tomb.RevID})
}

func TestListDocumentIDs(t *testing.T) {
	ds := newTestDatastore(t)

	_, err := ds.CreateDocument("beta", bodyOne())
	require.NoError(t, err)
	_, err = ds.CreateDocument("alpha", bodyOne())
	require.NoError(t, err)

	ids, err := ds.ListDocumentIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, ids)
}

func TestConcurrentWritersOnDistinctDocuments(t *testing.T) {
	ds := newTestDatastore(t)

	const writers = 8
	done := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			_, err := ds.CreateDocument("", bodyOne())
			done <- err
		}()
	}
	for i := 0; i < writers; i++ {
		require.NoError(t, <-done)
	}

	ids, err := ds.ListDocumentIDs()
	require.NoError(t, err)
	assert.Len(t, ids, writers)
}
