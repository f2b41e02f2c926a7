package cmdtree

import (
	"context"
	"sync"
)

// Node is an object that takes part in the tree.
type Node interface {
	// Declare returns what the node wants from the remote side: property
	// reads, event subscriptions and node-group entries for its children.
	// It is called once, when the node is bound. Nil declares nothing.
	Declare() *CommandNode

	// Attach hands the node its Emitter when it is bound.
	Attach(e Emitter)

	// Detach is called when the node is deinitialized. The Emitter must not
	// be used afterwards.
	Detach()

	// HandleCommand applies the members addressed to this node (never its
	// node-groups) and returns the values to report back.
	HandleCommand(cmd *CommandNode) *ResultNode

	// HandleResult receives the members addressed to this node, filtered
	// to the names it declared or emitted.
	HandleResult(res *ResultNode)
}

// GroupResolver is implemented by nodes that own node-groups.
//
// ResolveChild returns the object at group/key. An error matching
// ErrUnknownKey or ErrUnknownGroup, or an object that is not a Node, leaves
// that branch unsynchronized.
type GroupResolver interface {
	ResolveChild(group string, key Key) (any, error)
}

// Emitter sends a command from a bound node towards the root.
type Emitter interface {
	// Emit wraps cmd in the node's path and hands it to the Sender.
	// It returns ErrNotBound once the node has been deinitialized.
	Emit(ctx context.Context, cmd *CommandNode) error

	// Path returns the node's cached address.
	Path() Path
}

// Sender delivers root-addressed commands to the remote side.
type Sender interface {
	SendCommand(ctx context.Context, cmd *CommandNode) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, cmd *CommandNode) error

// SendCommand calls f.
func (f SenderFunc) SendCommand(ctx context.Context, cmd *CommandNode) error {
	return f(ctx, cmd)
}

// Handler receives inbound trees. *Session implements it.
type Handler interface {
	HandleCommand(ctx context.Context, cmd *CommandNode) *ResultNode
	HandleResult(ctx context.Context, res *ResultNode)
}

// BaseNode is an embeddable no-op Node that keeps the Emitter.
// It must not be copied after first use.
type BaseNode struct {
	mu      sync.RWMutex
	emitter Emitter
}

// Declare declares nothing.
func (n *BaseNode) Declare() *CommandNode { return nil }

// Attach stores e.
func (n *BaseNode) Attach(e Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emitter = e
}

// Detach drops the Emitter.
func (n *BaseNode) Detach() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emitter = nil
}

// HandleCommand reports nothing.
func (n *BaseNode) HandleCommand(*CommandNode) *ResultNode { return nil }

// HandleResult ignores the result.
func (n *BaseNode) HandleResult(*ResultNode) {}

// Emitter returns the current Emitter, or nil when unbound.
func (n *BaseNode) Emitter() Emitter {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.emitter
}

// Emit sends cmd through the current Emitter.
func (n *BaseNode) Emit(ctx context.Context, cmd *CommandNode) error {
	e := n.Emitter()
	if e == nil {
		return ErrNotBound
	}
	return e.Emit(ctx, cmd)
}
