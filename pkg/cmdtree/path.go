package cmdtree

import (
	"strings"
)

// Segment is one node-group hop: group name and key.
type Segment struct {
	Group string
	Key   Key
}

// String renders "Group[key]".
func (s Segment) String() string {
	return s.Group + "[" + s.Key.String() + "]"
}

// Path addresses a node from the root. The empty path is the root.
type Path []Segment

// Child returns a new path extended by one segment.
func (p Path) Child(group string, key Key) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Group: group, Key: key})
}

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Equal reports whether both paths name the same node.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders "root/Controls[2]".
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("root")
	for _, s := range p {
		b.WriteByte('/')
		b.WriteString(s.String())
	}
	return b.String()
}

// WrapCommand nests leaf inside the node-group entries of p so that the
// returned tree is valid from the root.
func (p Path) WrapCommand(leaf *CommandNode) *CommandNode {
	node := leaf
	for i := len(p) - 1; i >= 0; i-- {
		node = wrapCommand(p[i], node)
	}
	return node
}

// WrapResult nests leaf inside the node-group entries of p.
func (p Path) WrapResult(leaf *ResultNode) *ResultNode {
	node := leaf
	for i := len(p) - 1; i >= 0; i-- {
		node = &ResultNode{Groups: []*ResultGroup{{
			Name:    p[i].Group,
			Entries: []ResultEntry{{Key: p[i].Key, Node: node}},
		}}}
	}
	return node
}

// Command returns the node at p inside root, or nil.
func (p Path) Command(root *CommandNode) *CommandNode {
	node := root
	for _, s := range p {
		node = node.Child(s.Group, s.Key)
		if node == nil {
			return nil
		}
	}
	return node
}

// Result returns the node at p inside root, or nil.
func (p Path) Result(root *ResultNode) *ResultNode {
	node := root
	for _, s := range p {
		node = node.Child(s.Group, s.Key)
		if node == nil {
			return nil
		}
	}
	return node
}

func wrapCommand(s Segment, child *CommandNode) *CommandNode {
	return &CommandNode{Groups: []*CommandGroup{{
		Name:    s.Group,
		Entries: []CommandEntry{{Key: s.Key, Node: child}},
	}}}
}
