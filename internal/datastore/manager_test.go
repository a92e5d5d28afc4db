package datastore

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/syncdb/internal/config"
	"github.com/kartikbazzad/syncdb/internal/errors"
	"github.com/kartikbazzad/syncdb/internal/eventbus"
	"github.com/kartikbazzad/syncdb/internal/logger"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	m, err := NewManager(cfg.DataDir, cfg, logger.New(io.Discard, logger.LevelError))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// eventCollector records everything published on a bus. Deliveries are
// asynchronous and unordered, so assertions scan the collected set instead
// of consuming a stream.
type eventCollector struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (c *eventCollector) OnEvent(e eventbus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *eventCollector) seen(want eventbus.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e == want {
			return true
		}
	}
	return false
}

func collectEvents(m *Manager) *eventCollector {
	c := &eventCollector{}
	m.EventBus().Subscribe(c)
	return c
}

func waitForEvent(t *testing.T, c *eventCollector, want eventbus.Event) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.seen(want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %#v", want)
}

func TestManager_OpenValidatesNames(t *testing.T) {
	m := newTestManager(t)

	for _, name := range []string{"", "1db", "_db", "my-db", "my db", "db!", "db/evil"} {
		_, err := m.Open(name)
		assert.Equal(t, errors.ErrInvalidDatastoreName, err, "name %q", name)
	}

	for _, name := range []string{"A", "db1", "Replication_target_2"} {
		ds, err := m.Open(name)
		require.NoError(t, err, "name %q", name)
		assert.Equal(t, name, ds.Name())
	}
}

func TestManager_OpenIsIdempotent(t *testing.T) {
	m := newTestManager(t)

	ds1, err := m.Open("mydb")
	require.NoError(t, err)
	ds2, err := m.Open("mydb")
	require.NoError(t, err)
	assert.Same(t, ds1, ds2, "same name must yield the same instance")
}

func TestManager_ConcurrentOpensShareInstance(t *testing.T) {
	m := newTestManager(t)

	const n = 8
	results := make(chan *Datastore, n)
	for i := 0; i < n; i++ {
		go func() {
			ds, err := m.Open("shared")
			if err != nil {
				results <- nil
				return
			}
			results <- ds
		}()
	}

	first := <-results
	require.NotNil(t, first)
	for i := 1; i < n; i++ {
		assert.Same(t, first, <-results)
	}
}

func TestManager_OpenCreatesLayout(t *testing.T) {
	m := newTestManager(t)

	ds, err := m.Open("mydb")
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(m.Path(), "mydb"))
	assert.DirExists(t, filepath.Join(m.Path(), "mydb", "attachments"))
	assert.FileExists(t, filepath.Join(m.Path(), "mydb", "db.sqlite"))
	assert.Equal(t, filepath.Join(m.Path(), "mydb"), ds.Dir())
}

func TestManager_DeleteMissingDatastore(t *testing.T) {
	m := newTestManager(t)
	assert.Equal(t, errors.ErrDatastoreNotFound, m.Delete("ghost"))
}

func TestManager_DeleteRemovesFiles(t *testing.T) {
	m := newTestManager(t)

	ds, err := m.Open("mydb")
	require.NoError(t, err)
	_, err = ds.CreateDocument("doc1", bodyOne())
	require.NoError(t, err)

	require.NoError(t, m.Delete("mydb"))
	_, statErr := os.Stat(filepath.Join(m.Path(), "mydb"))
	assert.True(t, os.IsNotExist(statErr), "directory should be gone")

	// Reopening starts from scratch.
	ds2, err := m.Open("mydb")
	require.NoError(t, err)
	_, err = ds2.GetDocument("doc1")
	assert.Equal(t, errors.ErrDocumentNotFound, err)
}

func TestManager_LifecycleEvents(t *testing.T) {
	m := newTestManager(t)
	events := collectEvents(m)

	_, err := m.Open("mydb")
	require.NoError(t, err)
	waitForEvent(t, events, eventbus.DatastoreCreated{Name: "mydb"})
	waitForEvent(t, events, eventbus.DatastoreOpened{Name: "mydb"})

	require.NoError(t, m.Delete("mydb"))
	waitForEvent(t, events, eventbus.DatastoreClosed{Name: "mydb"})
	waitForEvent(t, events, eventbus.DatastoreDeleted{Name: "mydb"})

	// Opening another name publishes DatastoreOpened for that name.
	_, err = m.Open("other")
	require.NoError(t, err)
	waitForEvent(t, events, eventbus.DatastoreOpened{Name: "other"})
}

func TestManager_CloseRemovesFromOpenMap(t *testing.T) {
	m := newTestManager(t)

	ds, err := m.Open("mydb")
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	// A closed datastore rejects operations ...
	_, err = ds.GetDocument("doc1")
	assert.Equal(t, errors.ErrDatastoreClosed, err)

	// ... and the manager hands out a fresh instance.
	ds2, err := m.Open("mydb")
	require.NoError(t, err)
	assert.NotSame(t, ds, ds2)
}

func TestManager_ListDatastores(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Open("alpha")
	require.NoError(t, err)
	_, err = m.Open("beta")
	require.NoError(t, err)

	names, err := m.ListDatastores()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, names)
}
