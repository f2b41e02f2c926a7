package cmdtree

import (
	"errors"
	"fmt"
)

// Protocol errors.
var (
	// ErrUnknownKey means a node-group key does not name a child.
	ErrUnknownKey = errors.New("unknown node-group key")

	// ErrUnknownGroup means the parent has no such node-group.
	ErrUnknownGroup = errors.New("unknown node-group")

	// ErrWrongKind means the resolved object cannot take part in the tree.
	ErrWrongKind = errors.New("object is not a tree node")

	// ErrNotBound means a node emitted without a live binding.
	ErrNotBound = errors.New("node not bound")

	// ErrAlreadyBound means a node was resolved under a second path.
	ErrAlreadyBound = errors.New("node already bound at another path")

	// ErrNoSender means the session has nowhere to send commands.
	ErrNoSender = errors.New("no sender configured")
)

// ResolveError reports a failed node-group resolution.
type ResolveError struct {
	// Path is the address that failed to resolve.
	Path Path

	// Err is the cause; errors.Is matches the sentinels above.
	Err error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Path, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}
