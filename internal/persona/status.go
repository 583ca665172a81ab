package persona

import "fmt"

// Status is the lifecycle state of a persisted persona version.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusBuilt    Status = "built"
	StatusDeployed Status = "deployed"
	StatusFailed   Status = "failed"
)

// transitions lists the legal forward moves. Anything absent is illegal,
// including every move out of deployed or failed.
var transitions = map[Status][]Status{
	StatusDraft: {StatusBuilt, StatusFailed},
	StatusBuilt: {StatusDeployed, StatusFailed},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusBuilt, StatusDeployed, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDeployed || s == StatusFailed
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown persona status %q", s)
	}
	return st, nil
}

// IllegalTransitionError is returned when a record would move backwards.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}
