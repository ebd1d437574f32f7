package intindex

import (
	"errors"
	"fmt"
)

// ErrInvalidThreadCount is returned when a thread count below 1 is requested.
var ErrInvalidThreadCount = errors.New("intindex: thread count must be at least 1")

// DuplicateKeyError reports a key that occurs more than once in the key array.
//
// First and Second are the positions of the first two occurrences. When the
// key array contains several duplicates, the one with the lowest Second is
// reported.
type DuplicateKeyError struct {
	Key    int64
	First  int
	Second int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("intindex: duplicate key %d at positions %d and %d", e.Key, e.First, e.Second)
}
