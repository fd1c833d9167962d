package opool

import "fmt"

// ClaimState represents the current position of a Claim in its lifecycle.
//
// The state machine is:
//
//	Claimed -> Claimed    (extend succeeds; lease renewed)
//	Claimed -> Released   (release succeeds)
//	Claimed -> Requeued   (requeue succeeds)
//	Claimed -> Expired    (any transition fails: session already lost)
//
// Extending, Releasing and Requeuing are transient states held only while
// the corresponding store call is in flight (including its retry loop);
// no external observer can act on a Claim while it is in one of them,
// since the claim's own mutex is held for the duration.
//
// Released, Requeued and Expired are terminal: once entered, no further
// transition is admitted and the Claim's state stream is closed.
type ClaimState uint8

const (
	// Claimed is the initial state: the objects are leased and available
	// for a terminal action or a lease extension.
	Claimed ClaimState = iota

	// Extending indicates an Extend call (user-initiated or from the
	// auto-extension timer) is in flight.
	Extending

	// Releasing indicates a Release call is in flight.
	Releasing

	// Requeuing indicates a Requeue call is in flight.
	Requeuing

	// Released is terminal: the objects were permanently removed from the
	// pool.
	Released

	// Requeued is terminal: the objects were returned to the pool for
	// future reclaim.
	Requeued

	// Expired is terminal: a transition failed because the lease had
	// already been lost (a concurrent janitor pass or a separate,
	// conflicting transition won the race).
	Expired
)

func claimStateString(s ClaimState) string {
	switch s {
	case Claimed:
		return "Claimed"
	case Extending:
		return "Extending"
	case Releasing:
		return "Releasing"
	case Requeuing:
		return "Requeuing"
	case Released:
		return "Released"
	case Requeued:
		return "Requeued"
	case Expired:
		return "Expired"
	default:
		return fmt.Sprintf("ClaimState(%d)", uint8(s))
	}
}

// String returns the canonical name of the state.
func (s ClaimState) String() string {
	return claimStateString(s)
}

// Terminal reports whether s is one of the three states from which no
// further transition is admitted.
func (s ClaimState) Terminal() bool {
	return s == Released || s == Requeued || s == Expired
}
