package opool

import "errors"

// ErrEmptyObject indicates that an empty string was supplied as an
// object identifier. Objects must be non-empty per the object identity
// rule: an object is an opaque non-empty string. Claim transition
// failures are deliberately not modeled as errors — spec.md §7 encodes
// them as boolean return values instead, since a session mismatch or a
// claim already past Claimed is a normal outcome, not a fault.
var ErrEmptyObject = errors.New("opool: object identifier must not be empty")
