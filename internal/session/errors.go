package session

import (
	"errors"
	"strings"
)

// ErrAbsent reports that the queried element genuinely does not exist in the
// document. It is a terminal, expected condition (loop exhaustion), never a
// transient one.
var ErrAbsent = errors.New("session: target absent")

// IsAbsent reports whether err means the target is structurally absent.
func IsAbsent(err error) bool {
	return errors.Is(err, ErrAbsent)
}

// staleMessages are the devtools error strings produced when a node reference
// obtained from a query is invalidated by a concurrent DOM mutation before we
// act on it. The page rewrites fragments constantly while content loads, so
// these show up routinely and must be retried, not surfaced.
var staleMessages = []string{
	"could not find node",
	"no node with given id",
	"node with given id does not belong to the document",
	"cannot find context with specified id",
	"execution context was destroyed",
	"inspected target navigated or closed",
}

// blockedMessages are the error strings produced when a click lands while an
// overlapping element (spinner, toast, half-attached fragment) briefly covers
// the target.
var blockedMessages = []string{
	"node is either not visible or not an htmlelement",
	"could not compute box model",
	"element is obscured",
}

// IsStale reports whether err means an element reference was invalidated by a
// concurrent DOM mutation. Always retryable.
func IsStale(err error) bool {
	return matchesAny(err, staleMessages)
}

// IsBlocked reports whether err means the action was briefly blocked by an
// overlapping element. Always retryable.
func IsBlocked(err error) bool {
	return matchesAny(err, blockedMessages)
}

// IsTransient reports whether err is retryable churn rather than a real failure.
func IsTransient(err error) bool {
	return IsStale(err) || IsBlocked(err)
}

func matchesAny(err error, msgs []string) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, m := range msgs {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
