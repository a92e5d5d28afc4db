package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/syncdb/internal/errors"
	"github.com/kartikbazzad/syncdb/internal/types"
)

func TestLocalDocuments(t *testing.T) {
	ds := newTestDatastore(t)

	_, err := ds.GetLocalDocument("_checkpoint")
	assert.Equal(t, errors.ErrLocalDocumentNotFound, err)

	revID, err := ds.PutLocalDocument("_checkpoint", types.NewDocumentBody([]byte(`{"seq": 10}`)))
	require.NoError(t, err)
	assert.Equal(t, "1-local", revID)

	body, err := ds.GetLocalDocument("_checkpoint")
	require.NoError(t, err)
	m, err := body.Map()
	require.NoError(t, err)
	assert.Equal(t, float64(10), m["seq"])

	// Replacement bumps the generation.
	revID, err = ds.PutLocalDocument("_checkpoint", types.NewDocumentBody([]byte(`{"seq": 20}`)))
	require.NoError(t, err)
	assert.Equal(t, "2-local", revID)

	require.NoError(t, ds.DeleteLocalDocument("_checkpoint"))
	assert.Equal(t, errors.ErrLocalDocumentNotFound, ds.DeleteLocalDocument("_checkpoint"))
}

func TestLocalDocuments_InvisibleToReplication(t *testing.T) {
	ds := newTestDatastore(t)

	_, err := ds.PutLocalDocument("_checkpoint", types.NewDocumentBody([]byte(`{"seq": 10}`)))
	require.NoError(t, err)

	// Local documents have no revision tree ...
	_, err = ds.GetDocument("_checkpoint")
	assert.Equal(t, errors.ErrDocumentNotFound, err)

	// ... and revs-diff treats their ids as unknown documents.
	missing, err := ds.RevsDiff(map[string][]string{"_checkpoint": {"1-local"}})
	require.NoError(t, err)
	assert.Len(t, missing["_checkpoint"], 1)
}
