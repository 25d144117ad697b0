package rating

import (
	"fmt"

	"github.com/mcoot/fairmatch/internal/model"
)

// Claim is an encrypted rating together with the player it was issued to
type Claim struct {
	Owner model.PlayerID
	Value model.EncryptedRating
}

// Comparator answers whether two encrypted ratings are within threshold of
// each other. Implementations never expose either value or their difference.
type Comparator interface {
	Compatible(a, b Claim, threshold int) (bool, error)
}

// DataError reports a rating that could not be opened. It matches
// model.ErrDataError and names the owner so callers can skip just that player.
type DataError struct {
	Owner model.PlayerID
	Err   error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: owner %s", model.ErrDataError, e.Owner)
}

func (e *DataError) Is(target error) bool {
	return target == model.ErrDataError
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// AEADComparator compares ratings sealed by a Sealer
type AEADComparator struct {
	sealer *Sealer
}

// Ensure AEADComparator implements Comparator
var _ Comparator = (*AEADComparator)(nil)

// NewAEADComparator creates a comparator that opens ratings with sealer
func NewAEADComparator(sealer *Sealer) *AEADComparator {
	return &AEADComparator{sealer: sealer}
}

// Compatible returns true if |a - b| <= threshold.
// A negative threshold matches nothing.
func (c *AEADComparator) Compatible(a, b Claim, threshold int) (bool, error) {
	av, err := c.sealer.open(a.Owner, a.Value)
	if err != nil {
		return false, &DataError{Owner: a.Owner, Err: err}
	}
	bv, err := c.sealer.open(b.Owner, b.Value)
	if err != nil {
		return false, &DataError{Owner: b.Owner, Err: err}
	}

	diff := av - bv
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(threshold), nil
}
