package datastore

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// RevsDiff computes which of the offered revisions the local store lacks.
// The input maps document ids to candidate revision ids; the result holds
// exactly the (doc, rev) pairs not stored locally. Documents with nothing
// missing are omitted, so an empty result means the remote has nothing new.
// Duplicate candidates collapse; result order is unspecified.
//
// Lookups are batched per document (one query each), so the cost scales
// with the offered set rather than the store.
func (d *Datastore) RevsDiff(offered map[string][]string) (map[string][]string, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	missing := make(map[string][]string)
	for docID, candidates := range offered {
		if len(candidates) == 0 {
			continue
		}

		offeredSet := mapset.NewThreadUnsafeSet[string](candidates...)
		known, err := d.store.KnownRevisions(docID)
		if err != nil {
			return nil, err
		}

		diff := offeredSet.Difference(mapset.NewThreadUnsafeSet[string](known...))
		if diff.Cardinality() > 0 {
			missing[docID] = diff.ToSlice()
		}
	}
	return missing, nil
}
