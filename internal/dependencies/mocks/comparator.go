package mocks

import (
	"strconv"
	"sync/atomic"

	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/rating"
)

// PlainComparator compares ratings stored as decimal strings. Anything that
// does not parse is reported as a DataError for its owner.
type PlainComparator struct {
	calls atomic.Int64
}

// Ensure PlainComparator implements Comparator
var _ rating.Comparator = (*PlainComparator)(nil)

// NewPlainComparator creates a new PlainComparator
func NewPlainComparator() *PlainComparator {
	return &PlainComparator{}
}

// PlainRating encodes value the way PlainComparator reads it
func PlainRating(value int) model.EncryptedRating {
	return model.EncryptedRating(strconv.Itoa(value))
}

// Compatible returns true if |a - b| <= threshold
func (c *PlainComparator) Compatible(a, b rating.Claim, threshold int) (bool, error) {
	c.calls.Add(1)

	av, err := strconv.Atoi(string(a.Value))
	if err != nil {
		return false, &rating.DataError{Owner: a.Owner, Err: err}
	}
	bv, err := strconv.Atoi(string(b.Value))
	if err != nil {
		return false, &rating.DataError{Owner: b.Owner, Err: err}
	}

	diff := av - bv
	if diff < 0 {
		diff = -diff
	}
	return diff <= threshold, nil
}

// Calls returns how many comparisons were made
func (c *PlainComparator) Calls() int {
	return int(c.calls.Load())
}
