package types

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kartikbazzad/syncdb/internal/errors"
)

// ParseRevisionID splits a revision id "<generation>-<suffix>" into its
// parts. Generation must be a decimal integer >= 1; the suffix is opaque but
// must be non-empty and free of whitespace and further separators.
func ParseRevisionID(rev string) (int, string, error) {
	dash := strings.IndexByte(rev, '-')
	if dash <= 0 || dash == len(rev)-1 {
		return 0, "", errors.ErrInvalidRevisionID
	}

	genPart := rev[:dash]
	suffix := rev[dash+1:]

	for i := 0; i < len(genPart); i++ {
		if genPart[i] < '0' || genPart[i] > '9' {
			return 0, "", errors.ErrInvalidRevisionID
		}
	}

	gen, err := strconv.Atoi(genPart)
	if err != nil || gen < 1 {
		return 0, "", errors.ErrInvalidRevisionID
	}

	if strings.ContainsAny(suffix, "- \t\n\r") {
		return 0, "", errors.ErrInvalidRevisionID
	}

	return gen, suffix, nil
}

// ValidRevisionID reports whether rev parses as a revision id.
func ValidRevisionID(rev string) bool {
	_, _, err := ParseRevisionID(rev)
	return err == nil
}

// CompareRevisionIDs orders revision ids by (generation, suffix), with the
// generation compared numerically. This is the ordering used for winner
// election; malformed ids sort lowest.
func CompareRevisionIDs(a, b string) int {
	genA, sufA, errA := ParseRevisionID(a)
	genB, sufB, errB := ParseRevisionID(b)

	if errA != nil || errB != nil {
		switch {
		case errA == nil:
			return 1
		case errB == nil:
			return -1
		default:
			return strings.Compare(a, b)
		}
	}

	if genA != genB {
		if genA < genB {
			return -1
		}
		return 1
	}
	return strings.Compare(sufA, sufB)
}

// NewRevisionID builds a revision id for the given generation with a random
// hex suffix.
func NewRevisionID(generation int) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strconv.Itoa(generation) + "-" + suffix
}

// NextRevisionID returns a fresh revision id one generation above rev.
func NextRevisionID(rev string) (string, error) {
	gen, _, err := ParseRevisionID(rev)
	if err != nil {
		return "", err
	}
	return NewRevisionID(gen + 1), nil
}
