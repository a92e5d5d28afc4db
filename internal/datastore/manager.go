package datastore

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/kartikbazzad/syncdb/internal/config"
	"github.com/kartikbazzad/syncdb/internal/errors"
	"github.com/kartikbazzad/syncdb/internal/eventbus"
	"github.com/kartikbazzad/syncdb/internal/logger"
)

// legalNames validates datastore names: a leading letter followed by
// letters, digits and underscores.
var legalNames = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Manager owns a root directory of datastores, one subdirectory per name.
// The directory should hold nothing else; the manager assumes every entry
// belongs to it. Running two managers against the same directory is
// undefined behavior (advisory, not enforced).
//
// Opens are idempotent: while a datastore stays open the same name yields
// the same *Datastore instance, guarded by the open-map mutex. Closing a
// datastore drops it from the open map; a later Open returns a new instance.
type Manager struct {
	path   string
	cfg    *config.Config
	logger *logger.Logger
	bus    *eventbus.Bus

	mu   sync.Mutex
	open map[string]*Datastore
}

// NewManager creates a manager rooted at path, creating the directory if
// needed. A nil cfg or log falls back to defaults.
func NewManager(path string, cfg *config.Config, log *logger.Logger) (*Manager, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.Default()
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}

	bus, err := eventbus.New(cfg.Events.Workers, log.WithComponent("events"))
	if err != nil {
		return nil, err
	}

	log.Info("Datastore manager rooted at %s", path)
	return &Manager{
		path:   path,
		cfg:    cfg,
		logger: log,
		bus:    bus,
		open:   make(map[string]*Datastore),
	}, nil
}

// Path returns the directory this manager owns.
func (m *Manager) Path() string {
	return m.path
}

// EventBus returns the bus lifecycle events are published on.
func (m *Manager) EventBus() *eventbus.Bus {
	return m.bus
}

// Open opens the named datastore, creating it on first use. Concurrent
// opens of the same name return the same instance. Publishes
// DatastoreCreated the first time the directory appears, and DatastoreOpened
// each time a datastore is actually opened; returning an instance that is
// already open publishes nothing.
func (m *Manager) Open(name string) (*Datastore, error) {
	if !legalNames.MatchString(name) {
		return nil, errors.ErrInvalidDatastoreName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ds, ok := m.open[name]; ok {
		return ds, nil
	}

	dir := filepath.Join(m.path, name)
	_, statErr := os.Stat(dir)
	created := os.IsNotExist(statErr)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	ds, err := openDatastore(dir, name, m.cfg, m.bus, m.logger)
	if err != nil {
		return nil, err
	}
	ds.closeHook = m.dropOpen
	m.open[name] = ds

	if created {
		m.bus.Publish(eventbus.DatastoreCreated{Name: name})
	}
	m.bus.Publish(eventbus.DatastoreOpened{Name: name})
	m.logger.Info("Opened datastore %s", name)
	return ds, nil
}

// dropOpen is installed as each datastore's close hook so a directly closed
// datastore leaves the open map.
func (m *Manager) dropOpen(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.open, name)
}

// Delete removes the named datastore's entire directory. Deleting a
// datastore that does not exist on disk fails with not-found. An open
// instance is closed first; other references to it become unusable.
func (m *Manager) Delete(name string) error {
	if !legalNames.MatchString(name) {
		return errors.ErrInvalidDatastoreName
	}

	m.mu.Lock()
	ds := m.open[name]
	m.mu.Unlock()

	if ds != nil {
		if err := ds.Close(); err != nil {
			m.logger.Warn("Close before delete of %s: %v", name, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dir := filepath.Join(m.path, name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return errors.ErrDatastoreNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	delete(m.open, name)

	m.bus.Publish(eventbus.DatastoreDeleted{Name: name})
	m.logger.Info("Deleted datastore %s", name)
	return nil
}

// ListDatastores returns the names of datastores present on disk.
func (m *Manager) ListDatastores() ([]string, error) {
	entries, err := os.ReadDir(m.path)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && legalNames.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Close closes every open datastore and drains the event bus.
func (m *Manager) Close() error {
	m.mu.Lock()
	open := make([]*Datastore, 0, len(m.open))
	for _, ds := range m.open {
		open = append(open, ds)
	}
	m.mu.Unlock()

	var firstErr error
	for _, ds := range open {
		if err := ds.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	m.bus.Close()
	return firstErr
}
