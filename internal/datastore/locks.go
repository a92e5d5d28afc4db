package datastore

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// docLocks serializes mutating operations per document. Striping keeps the
// lock table fixed-size; two documents hashing to the same stripe simply
// serialize, which is safe.
type docLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *docLocks) lock(docID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(docID))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu
}
