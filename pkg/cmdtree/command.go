package cmdtree

// PropertyOp is what a property request asks for.
type PropertyOp uint8

const (
	// PropertyGet asks for the current value.
	PropertyGet PropertyOp = iota + 1

	// PropertySet asks the receiver to change the value.
	PropertySet

	// PropertyChanged pushes a new value to the receiver.
	PropertyChanged
)

// String returns the op name.
func (o PropertyOp) String() string {
	switch o {
	case PropertyGet:
		return "GET"
	case PropertySet:
		return "SET"
	case PropertyChanged:
		return "CHANGED"
	default:
		return "UNKNOWN"
	}
}

// EventOp is what an event request asks for.
type EventOp uint8

const (
	// EventSubscribe asks to be told about occurrences.
	EventSubscribe EventOp = iota + 1

	// EventUnsubscribe cancels a subscription.
	EventUnsubscribe

	// EventRaised reports an occurrence.
	EventRaised
)

// String returns the op name.
func (o EventOp) String() string {
	switch o {
	case EventSubscribe:
		return "SUBSCRIBE"
	case EventUnsubscribe:
		return "UNSUBSCRIBE"
	case EventRaised:
		return "RAISED"
	default:
		return "UNKNOWN"
	}
}

// PropertyRequest reads, writes or pushes one property.
type PropertyRequest struct {
	Name  string     `cbor:"1,keyasint"`
	Op    PropertyOp `cbor:"2,keyasint"`
	Value any        `cbor:"3,keyasint,omitempty"`
}

// EventRequest subscribes to, unsubscribes from or reports one event.
type EventRequest struct {
	Name    string  `cbor:"1,keyasint"`
	Op      EventOp `cbor:"2,keyasint"`
	Payload any     `cbor:"3,keyasint,omitempty"`
}

// MethodCall invokes one method.
type MethodCall struct {
	Name string `cbor:"1,keyasint"`
	Args []any  `cbor:"2,keyasint,omitempty"`
}

// CommandEntry is one keyed child of a node-group.
type CommandEntry struct {
	Key  Key          `cbor:"1,keyasint"`
	Node *CommandNode `cbor:"2,keyasint"`
}

// CommandGroup is a named, ordered node-group.
type CommandGroup struct {
	Name    string         `cbor:"1,keyasint"`
	Entries []CommandEntry `cbor:"2,keyasint,omitempty"`
}

// CommandNode is the request half of the tree.
type CommandNode struct {
	Name       string            `cbor:"1,keyasint,omitempty"`
	Properties []PropertyRequest `cbor:"2,keyasint,omitempty"`
	Events     []EventRequest    `cbor:"3,keyasint,omitempty"`
	Methods    []MethodCall      `cbor:"4,keyasint,omitempty"`
	Groups     []*CommandGroup   `cbor:"5,keyasint,omitempty"`
}

// NewCommand returns an empty named node.
func NewCommand(name string) *CommandNode {
	return &CommandNode{Name: name}
}

// GetProperty appends a read request and returns n.
func (n *CommandNode) GetProperty(names ...string) *CommandNode {
	for _, name := range names {
		n.Properties = append(n.Properties, PropertyRequest{Name: name, Op: PropertyGet})
	}
	return n
}

// SetProperty appends a write request and returns n.
func (n *CommandNode) SetProperty(name string, value any) *CommandNode {
	n.Properties = append(n.Properties, PropertyRequest{Name: name, Op: PropertySet, Value: value})
	return n
}

// ChangedProperty appends a value push and returns n.
func (n *CommandNode) ChangedProperty(name string, value any) *CommandNode {
	n.Properties = append(n.Properties, PropertyRequest{Name: name, Op: PropertyChanged, Value: value})
	return n
}

// Subscribe appends subscription requests and returns n.
func (n *CommandNode) Subscribe(names ...string) *CommandNode {
	for _, name := range names {
		n.Events = append(n.Events, EventRequest{Name: name, Op: EventSubscribe})
	}
	return n
}

// Unsubscribe appends an unsubscription request and returns n.
func (n *CommandNode) Unsubscribe(name string) *CommandNode {
	n.Events = append(n.Events, EventRequest{Name: name, Op: EventUnsubscribe})
	return n
}

// Raise appends an event occurrence and returns n.
func (n *CommandNode) Raise(name string, payload any) *CommandNode {
	n.Events = append(n.Events, EventRequest{Name: name, Op: EventRaised, Payload: payload})
	return n
}

// Call appends a method invocation and returns n.
func (n *CommandNode) Call(name string, args ...any) *CommandNode {
	n.Methods = append(n.Methods, MethodCall{Name: name, Args: args})
	return n
}

// Group returns the node-group with the given name, or nil.
func (n *CommandNode) Group(name string) *CommandGroup {
	if n == nil {
		return nil
	}
	for _, g := range n.Groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Get returns the child at key, or nil.
func (g *CommandGroup) Get(key Key) *CommandNode {
	if g == nil {
		return nil
	}
	for _, e := range g.Entries {
		if e.Key == key {
			return e.Node
		}
	}
	return nil
}

// Keys returns the entry keys in order.
func (g *CommandGroup) Keys() []Key {
	if g == nil {
		return nil
	}
	keys := make([]Key, len(g.Entries))
	for i, e := range g.Entries {
		keys[i] = e.Key
	}
	return keys
}

// Child returns the nested node at group/key, or nil.
func (n *CommandNode) Child(group string, key Key) *CommandNode {
	return n.Group(group).Get(key)
}

// AddChild merges child into group/key, creating both as needed, and
// returns the node stored at that entry.
func (n *CommandNode) AddChild(group string, key Key, child *CommandNode) *CommandNode {
	g := n.Group(group)
	if g == nil {
		g = &CommandGroup{Name: group}
		n.Groups = append(n.Groups, g)
	}
	for i, e := range g.Entries {
		if e.Key == key {
			if e.Node == nil {
				g.Entries[i].Node = &CommandNode{}
			}
			g.Entries[i].Node.Merge(child)
			return g.Entries[i].Node
		}
	}
	stored := &CommandNode{}
	stored.Merge(child)
	g.Entries = append(g.Entries, CommandEntry{Key: key, Node: stored})
	return stored
}

// Property returns the first request for name.
func (n *CommandNode) Property(name string) (PropertyRequest, bool) {
	if n == nil {
		return PropertyRequest{}, false
	}
	for _, p := range n.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyRequest{}, false
}

// Event returns the first request for name.
func (n *CommandNode) Event(name string) (EventRequest, bool) {
	if n == nil {
		return EventRequest{}, false
	}
	for _, e := range n.Events {
		if e.Name == name {
			return e, true
		}
	}
	return EventRequest{}, false
}

// Method returns the first invocation of name.
func (n *CommandNode) Method(name string) (MethodCall, bool) {
	if n == nil {
		return MethodCall{}, false
	}
	for _, m := range n.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return MethodCall{}, false
}

// HasMembers reports whether n carries properties, events or methods.
func (n *CommandNode) HasMembers() bool {
	return n != nil && (len(n.Properties) > 0 || len(n.Events) > 0 || len(n.Methods) > 0)
}

// IsEmpty reports whether the tree below n carries no members at all.
// Bare group entries do not count; see Declares.
func (n *CommandNode) IsEmpty() bool {
	if n == nil {
		return true
	}
	if n.HasMembers() {
		return false
	}
	for _, g := range n.Groups {
		for _, e := range g.Entries {
			if !e.Node.IsEmpty() {
				return false
			}
		}
	}
	return true
}

// Declares reports whether n asks for anything, counting bare group
// entries as requests.
func (n *CommandNode) Declares() bool {
	if n == nil {
		return false
	}
	if n.HasMembers() {
		return true
	}
	for _, g := range n.Groups {
		if len(g.Entries) > 0 {
			return true
		}
	}
	return false
}

// Local returns a shallow copy of n without its node-groups.
func (n *CommandNode) Local() *CommandNode {
	if n == nil {
		return &CommandNode{}
	}
	return &CommandNode{
		Name:       n.Name,
		Properties: n.Properties,
		Events:     n.Events,
		Methods:    n.Methods,
	}
}

// Merge folds other into n. Properties and events merge by name and op,
// methods by name (later arguments win), node-groups by name and entries by
// key, recursively; new entries keep other's order after n's.
func (n *CommandNode) Merge(other *CommandNode) {
	if other == nil || n == other {
		return
	}
	if n.Name == "" {
		n.Name = other.Name
	}

	for _, p := range other.Properties {
		idx := -1
		for i, q := range n.Properties {
			if q.Name == p.Name && q.Op == p.Op {
				idx = i
				break
			}
		}
		if idx >= 0 {
			n.Properties[idx] = p
		} else {
			n.Properties = append(n.Properties, p)
		}
	}

	for _, e := range other.Events {
		idx := -1
		for i, f := range n.Events {
			if f.Name == e.Name && f.Op == e.Op {
				idx = i
				break
			}
		}
		if idx >= 0 {
			n.Events[idx] = e
		} else {
			n.Events = append(n.Events, e)
		}
	}

	for _, m := range other.Methods {
		idx := -1
		for i, k := range n.Methods {
			if k.Name == m.Name {
				idx = i
				break
			}
		}
		if idx >= 0 {
			n.Methods[idx] = m
		} else {
			n.Methods = append(n.Methods, m)
		}
	}

	for _, g := range other.Groups {
		if g == nil {
			continue
		}
		if n.Group(g.Name) == nil {
			n.Groups = append(n.Groups, &CommandGroup{Name: g.Name})
		}
		for _, e := range g.Entries {
			n.AddChild(g.Name, e.Key, e.Node)
		}
	}
}

// Clone returns a structural copy of the tree. Values and arguments are
// shared.
func (n *CommandNode) Clone() *CommandNode {
	if n == nil {
		return nil
	}
	out := &CommandNode{}
	out.Merge(n)
	out.Name = n.Name
	return out
}
