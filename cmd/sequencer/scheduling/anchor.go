package scheduling

import (
	"time"
)

// AnchorKind tells how an anchor lookup ended
type AnchorKind int

const (
	// AnchorNotFound means the line has no committed scheduled order yet
	AnchorNotFound AnchorKind = iota
	// AnchorFound carries the last committed scheduled time
	AnchorFound
	// AnchorLookupFailed means the lookup itself failed; it is not "none"
	AnchorLookupFailed
)

func (k AnchorKind) String() string {
	switch k {
	case AnchorFound:
		return "found"
	case AnchorLookupFailed:
		return "failed"
	default:
		return "none"
	}
}

// Anchor is the result of looking up the last scheduled time for a line
type Anchor struct {
	kind AnchorKind
	at   time.Time
	err  error
}

// FoundAnchor returns an anchor at t
func FoundAnchor(t time.Time) Anchor {
	return Anchor{kind: AnchorFound, at: t}
}

// NoAnchor returns the "no prior order" anchor
func NoAnchor() Anchor {
	return Anchor{kind: AnchorNotFound}
}

// FailedAnchor records a lookup failure
func FailedAnchor(err error) Anchor {
	return Anchor{kind: AnchorLookupFailed, err: err}
}

// AnchorFromLookup lifts a (time, found, err) storage result into an Anchor
func AnchorFromLookup(t time.Time, found bool, err error) Anchor {
	switch {
	case err != nil:
		return FailedAnchor(err)
	case !found:
		return NoAnchor()
	default:
		return FoundAnchor(t)
	}
}

// Kind reports how the lookup ended
func (a Anchor) Kind() AnchorKind {
	return a.kind
}

// Time returns the anchor time and whether one was found
func (a Anchor) Time() (time.Time, bool) {
	return a.at, a.kind == AnchorFound
}

// Err returns the lookup failure, if any
func (a Anchor) Err() error {
	return a.err
}

// Ptr returns the anchor time as a nullable value
func (a Anchor) Ptr() *time.Time {
	if a.kind != AnchorFound {
		return nil
	}
	t := a.at
	return &t
}
