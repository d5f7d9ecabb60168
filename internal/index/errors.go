package index

import "github.com/mdvault/mdvault/internal/mderrors"

var errIndex = mderrors.ErrIndex

// IntegrityError reports a link-graph consistency violation (spec.md §8:
// "for every link row with target_id != null, the target note exists").
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return "index integrity violation: " + e.Reason
}
