package cmdtree

// PropertyValue carries one property value.
type PropertyValue struct {
	Name  string `cbor:"1,keyasint"`
	Value any    `cbor:"2,keyasint,omitempty"`
}

// EventValue carries one event payload.
type EventValue struct {
	Name    string `cbor:"1,keyasint"`
	Payload any    `cbor:"2,keyasint,omitempty"`
}

// MethodResult carries the outcome of one method call.
type MethodResult struct {
	Name   string `cbor:"1,keyasint"`
	Return any    `cbor:"2,keyasint,omitempty"`

	// Error is the failure text; empty on success.
	Error string `cbor:"3,keyasint,omitempty"`
}

// ResultEntry is one keyed child of a result node-group.
type ResultEntry struct {
	Key  Key         `cbor:"1,keyasint"`
	Node *ResultNode `cbor:"2,keyasint"`
}

// ResultGroup is a named, ordered result node-group.
type ResultGroup struct {
	Name    string        `cbor:"1,keyasint"`
	Entries []ResultEntry `cbor:"2,keyasint,omitempty"`
}

// ResultNode is the value half of the tree. It mirrors CommandNode.
type ResultNode struct {
	Name       string          `cbor:"1,keyasint,omitempty"`
	Properties []PropertyValue `cbor:"2,keyasint,omitempty"`
	Events     []EventValue    `cbor:"3,keyasint,omitempty"`
	Methods    []MethodResult  `cbor:"4,keyasint,omitempty"`
	Groups     []*ResultGroup  `cbor:"5,keyasint,omitempty"`
}

// NewResult returns an empty named node.
func NewResult(name string) *ResultNode {
	return &ResultNode{Name: name}
}

// AddProperty appends a property value and returns r.
func (r *ResultNode) AddProperty(name string, value any) *ResultNode {
	r.Properties = append(r.Properties, PropertyValue{Name: name, Value: value})
	return r
}

// AddEvent appends an event payload and returns r.
func (r *ResultNode) AddEvent(name string, payload any) *ResultNode {
	r.Events = append(r.Events, EventValue{Name: name, Payload: payload})
	return r
}

// AddMethodResult appends a method outcome and returns r. A non-nil err
// is stored as text.
func (r *ResultNode) AddMethodResult(name string, ret any, err error) *ResultNode {
	m := MethodResult{Name: name, Return: ret}
	if err != nil {
		m.Error = err.Error()
	}
	r.Methods = append(r.Methods, m)
	return r
}

// Group returns the node-group with the given name, or nil.
func (r *ResultNode) Group(name string) *ResultGroup {
	if r == nil {
		return nil
	}
	for _, g := range r.Groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Get returns the child at key, or nil.
func (g *ResultGroup) Get(key Key) *ResultNode {
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

// Child returns the nested node at group/key, or nil.
func (r *ResultNode) Child(group string, key Key) *ResultNode {
	return r.Group(group).Get(key)
}

// AddChild merges child into group/key and returns the stored node.
func (r *ResultNode) AddChild(group string, key Key, child *ResultNode) *ResultNode {
	g := r.Group(group)
	if g == nil {
		g = &ResultGroup{Name: group}
		r.Groups = append(r.Groups, g)
	}
	for i, e := range g.Entries {
		if e.Key == key {
			if e.Node == nil {
				g.Entries[i].Node = &ResultNode{}
			}
			g.Entries[i].Node.Merge(child)
			return g.Entries[i].Node
		}
	}
	stored := &ResultNode{}
	stored.Merge(child)
	g.Entries = append(g.Entries, ResultEntry{Key: key, Node: stored})
	return stored
}

// Property returns the value for name.
func (r *ResultNode) Property(name string) (PropertyValue, bool) {
	if r == nil {
		return PropertyValue{}, false
	}
	for _, p := range r.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyValue{}, false
}

// Method returns the outcome for name.
func (r *ResultNode) Method(name string) (MethodResult, bool) {
	if r == nil {
		return MethodResult{}, false
	}
	for _, m := range r.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return MethodResult{}, false
}

// HasMembers reports whether r carries properties, events or methods.
func (r *ResultNode) HasMembers() bool {
	return r != nil && (len(r.Properties) > 0 || len(r.Events) > 0 || len(r.Methods) > 0)
}

// IsEmpty reports whether the tree below r carries no values at all.
func (r *ResultNode) IsEmpty() bool {
	if r == nil {
		return true
	}
	if r.HasMembers() {
		return false
	}
	for _, g := range r.Groups {
		for _, e := range g.Entries {
			if !e.Node.IsEmpty() {
				return false
			}
		}
	}
	return true
}

// Local returns a shallow copy of r without its node-groups.
func (r *ResultNode) Local() *ResultNode {
	if r == nil {
		return &ResultNode{}
	}
	return &ResultNode{
		Name:       r.Name,
		Properties: r.Properties,
		Events:     r.Events,
		Methods:    r.Methods,
	}
}

// Merge folds other into r. Property values replace earlier values of the
// same name; events and method results are appended; groups merge by name
// and key.
func (r *ResultNode) Merge(other *ResultNode) {
	if other == nil || r == other {
		return
	}
	if r.Name == "" {
		r.Name = other.Name
	}

	for _, p := range other.Properties {
		replaced := false
		for i, q := range r.Properties {
			if q.Name == p.Name {
				r.Properties[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			r.Properties = append(r.Properties, p)
		}
	}
	r.Events = append(r.Events, other.Events...)
	r.Methods = append(r.Methods, other.Methods...)

	for _, g := range other.Groups {
		if g == nil {
			continue
		}
		if r.Group(g.Name) == nil {
			r.Groups = append(r.Groups, &ResultGroup{Name: g.Name})
		}
		for _, e := range g.Entries {
			r.AddChild(g.Name, e.Key, e.Node)
		}
	}
}
